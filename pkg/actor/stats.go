package actor

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ═══════════════════════════════════════════════════════════════════════════
// Actor 统计信息
// ═══════════════════════════════════════════════════════════════════════════

// ActorStats Actor 运行时统计信息
type ActorStats struct {
	// 消息计数
	MessagesReceived int64 // 接收的消息总数
	MessagesHandled  int64 // 处理完成的消息数
	Errors           int64 // 失败数（panic 或 Context.Err）

	// 延迟统计（处理一条消息的耗时，阻塞等待也计入）
	TotalLatency   time.Duration
	AverageLatency time.Duration
	MaxLatency     time.Duration
	MinLatency     time.Duration

	StartedAt     time.Time
	LastMessageAt time.Time
	LastErrorAt   time.Time

	LastError error
}

// ═══════════════════════════════════════════════════════════════════════════
// StatsCollector 统计收集器
// ═══════════════════════════════════════════════════════════════════════════

// StatsCollector 线程安全的统计收集器
// 计数走原子操作，时间戳与极值由锁保护
type StatsCollector struct {
	received     atomic.Int64
	handled      atomic.Int64
	errors       atomic.Int64
	totalLatency atomic.Duration

	mu            sync.RWMutex
	maxLatency    time.Duration
	minLatency    time.Duration
	startedAt     time.Time
	lastMessageAt time.Time
	lastErrorAt   time.Time
	lastError     error
}

// NewStatsCollector 创建统计收集器
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{startedAt: time.Now()}
}

// RecordReceived 记录接收消息
func (c *StatsCollector) RecordReceived() {
	c.received.Inc()
	c.mu.Lock()
	c.lastMessageAt = time.Now()
	c.mu.Unlock()
}

// RecordHandled 记录消息处理完成
func (c *StatsCollector) RecordHandled(latency time.Duration) {
	c.handled.Inc()
	c.totalLatency.Add(latency)

	c.mu.Lock()
	defer c.mu.Unlock()
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
}

// RecordError 记录错误
func (c *StatsCollector) RecordError(err error) {
	c.errors.Inc()
	c.mu.Lock()
	c.lastError = err
	c.lastErrorAt = time.Now()
	c.mu.Unlock()
}

// Stats 获取统计快照
func (c *StatsCollector) Stats() ActorStats {
	handled := c.handled.Load()
	total := c.totalLatency.Load()

	var avg time.Duration
	if handled > 0 {
		avg = total / time.Duration(handled)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return ActorStats{
		MessagesReceived: c.received.Load(),
		MessagesHandled:  handled,
		Errors:           c.errors.Load(),
		TotalLatency:     total,
		AverageLatency:   avg,
		MaxLatency:       c.maxLatency,
		MinLatency:       c.minLatency,
		StartedAt:        c.startedAt,
		LastMessageAt:    c.lastMessageAt,
		LastErrorAt:      c.lastErrorAt,
		LastError:        c.lastError,
	}
}

// Reset 重置统计
func (c *StatsCollector) Reset() {
	c.received.Store(0)
	c.handled.Store(0)
	c.errors.Store(0)
	c.totalLatency.Store(0)

	c.mu.Lock()
	c.maxLatency = 0
	c.minLatency = 0
	c.startedAt = time.Now()
	c.lastMessageAt = time.Time{}
	c.lastErrorAt = time.Time{}
	c.lastError = nil
	c.mu.Unlock()
}

// ═══════════════════════════════════════════════════════════════════════════
// StatsActor 统计装饰器
// ═══════════════════════════════════════════════════════════════════════════

// StatsActor 包装任意 Actor 添加统计功能
type StatsActor struct {
	inner     Actor
	collector *StatsCollector
}

// NewStatsActor 创建带统计的 Actor 包装器
func NewStatsActor(inner Actor) *StatsActor {
	return &StatsActor{
		inner:     inner,
		collector: NewStatsCollector(),
	}
}

// Receive 实现 Actor 接口
func (s *StatsActor) Receive(ctx *Context, msg Message) {
	s.collector.RecordReceived()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				s.collector.RecordError(err)
			}
			panic(r) // 交给监督策略
		}
		if ctx.failure != nil {
			s.collector.RecordError(ctx.failure)
		}
		s.collector.RecordHandled(time.Since(start))
	}()

	s.inner.Receive(ctx, msg)
}

// Stats 获取统计信息
func (s *StatsActor) Stats() ActorStats {
	return s.collector.Stats()
}

// Inner 获取内部 Actor
func (s *StatsActor) Inner() Actor {
	return s.inner
}
