package account

import "sync"

// Cond 可中断的条件变量
//
// 与 sync.Cond 的区别：
//   - Wait 可以被 interrupt 通道唤醒（例如 ctx.Done()）
//   - 等待者按到达顺序排队，Signal 总是唤醒最早的等待者
//   - Signal / Broadcast 必须在持有 L 时调用（队列由 L 保护）
type Cond struct {
	L sync.Locker

	waiters []chan struct{}
}

// NewCond 创建绑定到 l 的条件变量
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l}
}

// Wait 原子地释放 L 并挂起，直到被 Signal/Broadcast 唤醒或 interrupt 关闭，
// 返回前重新获取 L。被通知返回 true，被中断返回 false。
// 已被通知又被中断的等待者把通知转交给队列中的下一个等待者。
//
// 返回后调用方必须重新检查条件。
func (c *Cond) Wait(interrupt <-chan struct{}) bool {
	ch := make(chan struct{})
	c.waiters = append(c.waiters, ch)

	c.L.Unlock()
	notified := true
	select {
	case <-ch:
		// 通知与中断同时到达时以中断为准
		select {
		case <-interrupt:
			notified = false
		default:
		}
	case <-interrupt:
		notified = false
	}
	c.L.Lock()

	if !notified && !c.remove(ch) {
		// 通知已经消费了本等待者，转交给下一个
		c.Signal()
	}
	return notified
}

// Signal 唤醒最早的一个等待者
func (c *Cond) Signal() {
	if len(c.waiters) == 0 {
		return
	}
	close(c.waiters[0])
	c.waiters[0] = nil
	c.waiters = c.waiters[1:]
}

// Broadcast 按到达顺序唤醒所有等待者
func (c *Cond) Broadcast() {
	for _, ch := range c.waiters {
		close(ch)
	}
	c.waiters = nil
}

// Len 返回当前等待者数量（需持有 L）
func (c *Cond) Len() int {
	return len(c.waiters)
}

// remove 从队列中移除 ch，若 ch 已不在队列中返回 false
func (c *Cond) remove(ch chan struct{}) bool {
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}
