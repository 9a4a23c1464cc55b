package actor

import (
	"context"
	"log/slog"
	"time"
)

// Message Actor 消息接口
// 所有 Actor 间传递的消息都必须实现此接口
type Message interface {
	// Kind 返回消息类型标识，用于日志和死信
	Kind() string
}

// PID (Process ID) Actor 进程标识符
type PID struct {
	// ID Actor 唯一标识
	ID string

	system *System
	done   chan struct{}
}

// String 返回 PID 的字符串表示
func (p *PID) String() string {
	return p.ID
}

// Tell 发送消息（fire-and-forget）
func (p *PID) Tell(msg Message) {
	if p.system != nil {
		p.system.Send(p, msg)
	}
}

// Done 返回 Actor 终止时关闭的通道
// 未经 System 创建的 PID 返回 nil（永不关闭）
func (p *PID) Done() <-chan struct{} {
	return p.done
}

// Actor Actor 接口
type Actor interface {
	// Receive 处理接收到的消息
	Receive(ctx *Context, msg Message)
}

// ActorFunc 函数式 Actor
type ActorFunc func(ctx *Context, msg Message)

// Receive 实现 Actor 接口
func (f ActorFunc) Receive(ctx *Context, msg Message) {
	f(ctx, msg)
}

// BaseActor 基础 Actor 实现，方便嵌入
type BaseActor struct{}

// Receive 默认实现，不处理任何消息
func (b *BaseActor) Receive(_ *Context, _ Message) {}

// Context Actor 执行上下文
// 每条消息一个实例，不要在 Receive 之外持有
type Context struct {
	// Self 当前 Actor 的 PID
	Self *PID

	system  *System
	ctx     context.Context
	message Message
	logger  *slog.Logger
	failure error
}

// Context 获取 Actor 生命周期 context
// Actor 被停止或系统关闭时取消，阻塞操作应当监听它
func (c *Context) Context() context.Context {
	return c.ctx
}

// Message 获取当前正在处理的消息
func (c *Context) Message() Message {
	return c.message
}

// System 获取 Actor 系统引用
func (c *Context) System() *System {
	return c.system
}

// Logger 返回带 actor 字段的日志器
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Stop 停止指定 Actor
func (c *Context) Stop(pid *PID) {
	c.system.Stop(pid)
}

// StopSelf 停止当前 Actor（在当前消息处理完后生效）
func (c *Context) StopSelf() {
	c.system.Stop(c.Self)
}

// Err 向监督策略报告失败，不需要 panic
// 当前消息处理结束后由监督策略决定 Resume / Restart / Stop / Escalate
func (c *Context) Err(err error) {
	if err != nil && c.failure == nil {
		c.failure = err
	}
}

// ScheduleOnce 延迟 delay 后把 msg 发给自己
// Actor 停止或系统关闭时定时器随之取消
func (c *Context) ScheduleOnce(msg Message, delay time.Duration) {
	if delay <= 0 {
		c.Self.Tell(msg)
		return
	}
	c.system.schedule(c.ctx, c.Self, msg, delay)
}

// Props Actor 属性配置
type Props struct {
	// Name Actor 名称
	Name string
	// MailboxSize 邮箱大小
	MailboxSize int
	// SupervisorStrategy 监督策略，nil 使用默认策略
	SupervisorStrategy SupervisorStrategy
}

// DefaultProps 默认属性
func DefaultProps(name string) *Props {
	return &Props{
		Name:        name,
		MailboxSize: 100,
	}
}

// WithMailboxSize 设置邮箱大小
func (p *Props) WithMailboxSize(size int) *Props {
	p.MailboxSize = size
	return p
}

// WithSupervisor 设置监督策略
func (p *Props) WithSupervisor(strategy SupervisorStrategy) *Props {
	p.SupervisorStrategy = strategy
	return p
}

// ============== 系统消息 ==============

// Started Actor 启动完成消息（重启后也会再次收到）
type Started struct{}

// Kind 实现 Message 接口
func (s *Started) Kind() string { return "system.started" }

// Stopping Actor 正在停止消息
type Stopping struct{}

// Kind 实现 Message 接口
func (s *Stopping) Kind() string { return "system.stopping" }

// Stopped Actor 已停止消息
type Stopped struct{}

// Kind 实现 Message 接口
func (s *Stopped) Kind() string { return "system.stopped" }

// Restarting Actor 正在重启消息
type Restarting struct{}

// Kind 实现 Message 接口
func (r *Restarting) Kind() string { return "system.restarting" }

// PoisonPill 毒丸消息，优雅停止 Actor
type PoisonPill struct{}

// Kind 实现 Message 接口
func (p *PoisonPill) Kind() string { return "system.poison_pill" }
