package actor

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ErrSystemFailed 有 Actor 的失败被上报到系统
var ErrSystemFailed = errors.New("actor system failed")

// System Actor 系统
// 管理所有 Actor 的生命周期、消息投递和监督
type System struct {
	name string

	// Actor 注册表
	actors   map[string]*actorCell
	actorsMu sync.RWMutex

	// 死信队列（无法投递的消息）
	deadLetters chan envelope

	// 生命周期控制
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning atomic.Bool

	// 上报到系统的第一个失败
	failOnce sync.Once
	failed   chan struct{}
	failure  error

	config *SystemConfig
	stats  systemCounters
	logger *slog.Logger
}

// SystemConfig 系统配置
type SystemConfig struct {
	// DeadLetterSize 死信队列大小
	DeadLetterSize int
	// DefaultActorMailboxSize 默认 Actor 邮箱大小
	DefaultActorMailboxSize int
	// EnableDeadLetterLogging 是否记录死信
	EnableDeadLetterLogging bool
	// PanicHandler panic 处理函数
	PanicHandler func(actor *PID, msg Message, err any)
	// Logger 自定义日志器
	Logger *slog.Logger
}

// DefaultSystemConfig 默认系统配置
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DeadLetterSize:          1000,
		DefaultActorMailboxSize: 100,
		EnableDeadLetterLogging: true,
	}
}

// SystemStats 系统统计
type SystemStats struct {
	TotalActors   int64
	TotalMessages int64
	DeadLetters   int64
	ProcessedMsgs int64
	Failures      int64
	StartTime     time.Time
}

type systemCounters struct {
	totalActors   atomic.Int64
	totalMessages atomic.Int64
	deadLetters   atomic.Int64
	processedMsgs atomic.Int64
	failures      atomic.Int64
	startTime     time.Time
}

// actorCell Actor 单元，包含 Actor 及其运行时状态
type actorCell struct {
	pid     *PID
	actor   Actor
	mailbox chan envelope

	state    atomic.Int32
	restarts atomic.Int64

	supervisor SupervisorStrategy

	ctx    context.Context
	cancel context.CancelFunc
}

type actorState int32

const (
	actorStateIdle actorState = iota
	actorStateRunning
	actorStateStopping
	actorStateStopped
)

func (c *actorCell) setState(s actorState) {
	c.state.Store(int32(s))
}

func (c *actorCell) getState() actorState {
	return actorState(c.state.Load())
}

// restart 延迟重启请求（内部消息）
type restart struct{}

func (r *restart) Kind() string { return "system.restart" }

// envelope 消息信封
type envelope struct {
	target  *PID
	message Message
	sentAt  time.Time
}

// NewSystem 创建新的 Actor 系统
func NewSystem(name string) *System {
	return NewSystemWithConfig(name, DefaultSystemConfig())
}

// NewSystemWithConfig 使用配置创建 Actor 系统
func NewSystemWithConfig(name string, config *SystemConfig) *System {
	if config == nil {
		config = DefaultSystemConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &System{
		name:        name,
		actors:      make(map[string]*actorCell),
		deadLetters: make(chan envelope, config.DeadLetterSize),
		ctx:         ctx,
		cancel:      cancel,
		failed:      make(chan struct{}),
		config:      config,
		logger:      logger,
	}
	s.stats.startTime = time.Now()
	s.isRunning.Store(true)

	if config.EnableDeadLetterLogging {
		s.wg.Add(1)
		go s.deadLetterHandler()
	}

	s.logger.Debug("actor system started", "name", name)
	return s
}

// Name 返回系统名称
func (s *System) Name() string {
	return s.name
}

// Spawn 创建 Actor
func (s *System) Spawn(actor Actor, name string) *PID {
	return s.SpawnWithProps(actor, DefaultProps(name))
}

// SpawnWithProps 使用属性创建 Actor
// 名称已存在时返回已有的 PID；系统已关闭时返回 nil
func (s *System) SpawnWithProps(actor Actor, props *Props) *PID {
	s.actorsMu.Lock()
	defer s.actorsMu.Unlock()

	if !s.isRunning.Load() {
		s.logger.Warn("spawn on stopped actor system", "name", props.Name)
		return nil
	}

	if cell, exists := s.actors[props.Name]; exists {
		s.logger.Warn("actor already exists, returning existing PID", "name", props.Name)
		return cell.pid
	}

	pid := &PID{
		ID:     props.Name,
		system: s,
		done:   make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(s.ctx)

	mailboxSize := props.MailboxSize
	if mailboxSize <= 0 {
		mailboxSize = s.config.DefaultActorMailboxSize
	}
	if mailboxSize <= 0 {
		mailboxSize = 1
	}

	cell := &actorCell{
		pid:        pid,
		actor:      actor,
		mailbox:    make(chan envelope, mailboxSize),
		supervisor: props.SupervisorStrategy,
		ctx:        ctx,
		cancel:     cancel,
	}

	s.actors[props.Name] = cell
	s.stats.totalActors.Inc()

	// Started 先入邮箱，保证是第一条消息
	cell.mailbox <- envelope{target: pid, message: &Started{}, sentAt: time.Now()}
	s.stats.totalMessages.Inc()

	s.wg.Add(1)
	go s.actorLoop(cell)

	s.logger.Debug("spawned actor", "name", props.Name)
	return pid
}

// Send 发送消息
func (s *System) Send(target *PID, msg Message) {
	if !s.isRunning.Load() {
		return
	}
	s.deliver(target, msg)
}

// TrySend 尝试发送消息（非阻塞）
// 系统已关闭、目标不存在或邮箱已满时返回 false
func (s *System) TrySend(target *PID, msg Message) bool {
	if !s.isRunning.Load() {
		return false
	}
	return s.deliver(target, msg)
}

// deliver 投递到目标邮箱，失败时转入死信
func (s *System) deliver(target *PID, msg Message) bool {
	env := envelope{target: target, message: msg, sentAt: time.Now()}

	s.actorsMu.RLock()
	cell, exists := s.actors[target.ID]
	s.actorsMu.RUnlock()

	if exists {
		select {
		case cell.mailbox <- env:
			s.stats.totalMessages.Inc()
			return true
		default:
			s.logger.Warn("actor mailbox full, message queued to dead letter", "actor", target.ID)
		}
	}

	select {
	case s.deadLetters <- env:
		s.stats.deadLetters.Inc()
	default:
		s.logger.Warn("dead letter queue full, message dropped",
			"kind", msg.Kind(), "target", target.ID)
	}
	return false
}

// schedule 延迟投递，受 ctx 约束
func (s *System) schedule(ctx context.Context, target *PID, msg Message, delay time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		case <-timer.C:
			s.Send(target, msg)
		}
	}()
}

// Stop 停止 Actor
// PoisonPill 进入邮箱，当前消息处理完后生效
func (s *System) Stop(pid *PID) {
	s.actorsMu.RLock()
	cell, exists := s.actors[pid.ID]
	s.actorsMu.RUnlock()

	if !exists {
		return
	}

	cell.setState(actorStateStopping)
	s.deliver(pid, &PoisonPill{})
}

// StopGracefully 停止 Actor 并等待其终止
func (s *System) StopGracefully(pid *PID, timeout time.Duration) error {
	s.Stop(pid)

	if pid.done == nil {
		return nil
	}

	select {
	case <-pid.done:
		return nil
	case <-time.After(timeout):
		return errors.Errorf("timeout waiting for actor %s to stop", pid.ID)
	}
}

// Shutdown 关闭整个 Actor 系统
func (s *System) Shutdown() {
	_ = s.ShutdownWithTimeout(30 * time.Second)
}

// ShutdownWithTimeout 带超时的关闭
// 先向所有 Actor 发送 PoisonPill，再取消 context 唤醒阻塞中的 Receive，
// 最后等待所有 goroutine 退出。超时返回错误。
func (s *System) ShutdownWithTimeout(timeout time.Duration) error {
	if !s.isRunning.CompareAndSwap(true, false) {
		return nil
	}

	s.logger.Debug("actor system shutting down", "name", s.name)

	for _, pid := range s.ListActors() {
		s.Stop(pid)
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("actor system shutdown complete", "name", s.name)
		return nil
	case <-time.After(timeout):
		s.logger.Warn("actor system shutdown timeout", "name", s.name, "remaining", s.Count())
		return errors.Errorf("actor system %s: shutdown timed out after %s", s.name, timeout)
	}
}

// Failed 返回系统失败时关闭的通道
func (s *System) Failed() <-chan struct{} {
	return s.failed
}

// Err 返回第一个上报到系统的失败
func (s *System) Err() error {
	select {
	case <-s.failed:
		return s.failure
	default:
		return nil
	}
}

// fail 记录系统级失败
func (s *System) fail(pid *PID, reason any) {
	s.failOnce.Do(func() {
		if err, ok := reason.(error); ok {
			s.failure = errors.Wrapf(err, "actor %s", pid.ID)
		} else {
			s.failure = errors.Wrapf(ErrSystemFailed, "actor %s: %v", pid.ID, reason)
		}
		s.logger.Error("actor failure escalated", "actor", pid.ID, "error", s.failure)
		close(s.failed)
	})
}

// actorLoop Actor 消息处理循环
func (s *System) actorLoop(cell *actorCell) {
	defer s.wg.Done()
	defer s.cleanupActor(cell)

	if cell.getState() == actorStateIdle {
		cell.setState(actorStateRunning)
	}

	for {
		select {
		case <-cell.ctx.Done():
			return
		case env := <-cell.mailbox:
			s.processMessage(cell, env)

			if _, ok := env.message.(*PoisonPill); ok {
				return
			}
		}
	}
}

// processMessage 处理单条消息
func (s *System) processMessage(cell *actorCell, env envelope) {
	ctx := &Context{
		Self:    cell.pid,
		system:  s,
		ctx:     cell.ctx,
		message: env.message,
		logger:  s.logger.With("actor", cell.pid.ID),
	}

	defer func() {
		if r := recover(); r != nil {
			if s.config.PanicHandler != nil {
				s.config.PanicHandler(cell.pid, env.message, r)
			} else {
				s.logger.Error("panic in actor",
					"actor", cell.pid.ID,
					"message", env.message.Kind(),
					"error", r,
					"stack", string(debug.Stack()))
			}
			s.handleFailure(cell, env.message, r)
		}
	}()

	switch env.message.(type) {
	case *PoisonPill:
		cell.actor.Receive(ctx, &Stopping{})
		return
	case *restart:
		s.applyDirective(cell, DirectiveRestart, nil)
		return
	}

	cell.actor.Receive(ctx, env.message)
	s.stats.processedMsgs.Inc()

	if ctx.failure != nil {
		s.handleFailure(cell, env.message, ctx.failure)
	}
}

// handleFailure 处理 Actor 失败
func (s *System) handleFailure(cell *actorCell, msg Message, reason any) {
	s.stats.failures.Inc()

	supervisor := cell.supervisor
	if supervisor == nil {
		supervisor = DefaultSupervisorStrategy()
		cell.supervisor = supervisor
	}

	result := supervisor.HandleFailure(s, cell.pid, msg, reason)
	s.logger.Debug("supervisor decision", "actor", cell.pid.ID, "decision", result, "reason", reason)

	switch r := result.(type) {
	case DirectiveWithDelay:
		s.schedule(cell.ctx, cell.pid, &restart{}, r.Delay)
	case Directive:
		s.applyDirective(cell, r, reason)
	}
}

// applyDirective 应用监督指令
func (s *System) applyDirective(cell *actorCell, directive Directive, reason any) {
	switch directive {
	case DirectiveResume:
		s.logger.Debug("actor resumed after failure", "actor", cell.pid.ID)

	case DirectiveRestart:
		// 通过邮箱重启，保证仍在 Actor 自己的 goroutine 中处理
		restarts := cell.restarts.Inc()
		s.deliver(cell.pid, &Restarting{})
		s.deliver(cell.pid, &Started{})
		s.logger.Info("actor restarted", "actor", cell.pid.ID, "restarts", restarts)

	case DirectiveStop:
		s.Stop(cell.pid)

	case DirectiveEscalate:
		// 没有父 Actor，上报到系统
		s.fail(cell.pid, reason)
		s.Stop(cell.pid)
	}
}

// cleanupActor 清理 Actor
func (s *System) cleanupActor(cell *actorCell) {
	cell.setState(actorStateStopped)

	ctx := &Context{
		Self:    cell.pid,
		system:  s,
		ctx:     cell.ctx,
		message: &Stopped{},
		logger:  s.logger.With("actor", cell.pid.ID),
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in actor while stopping", "actor", cell.pid.ID, "error", r)
			}
		}()
		cell.actor.Receive(ctx, &Stopped{})
	}()

	s.actorsMu.Lock()
	if s.actors[cell.pid.ID] == cell {
		delete(s.actors, cell.pid.ID)
	}
	s.actorsMu.Unlock()

	cell.cancel()
	close(cell.pid.done)

	s.stats.totalActors.Dec()
	s.logger.Debug("actor stopped", "actor", cell.pid.ID, "restarts", cell.restarts.Load())
}

// deadLetterHandler 死信处理器
func (s *System) deadLetterHandler() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.deadLetters:
			s.logger.Debug("dead letter",
				"message", env.message.Kind(),
				"target", env.target.ID,
				"age", time.Since(env.sentAt))
		}
	}
}

// Stats 获取统计信息
func (s *System) Stats() *SystemStats {
	return &SystemStats{
		TotalActors:   s.stats.totalActors.Load(),
		TotalMessages: s.stats.totalMessages.Load(),
		DeadLetters:   s.stats.deadLetters.Load(),
		ProcessedMsgs: s.stats.processedMsgs.Load(),
		Failures:      s.stats.failures.Load(),
		StartTime:     s.stats.startTime,
	}
}

// GetActor 获取 Actor
func (s *System) GetActor(name string) (*PID, bool) {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()

	if cell, ok := s.actors[name]; ok {
		return cell.pid, true
	}
	return nil, false
}

// Restarts 返回 Actor 被重启的次数
func (s *System) Restarts(pid *PID) int64 {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()

	if cell, ok := s.actors[pid.ID]; ok {
		return cell.restarts.Load()
	}
	return 0
}

// ListActors 列出所有 Actor
func (s *System) ListActors() []*PID {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()

	pids := make([]*PID, 0, len(s.actors))
	for _, cell := range s.actors {
		pids = append(pids, cell.pid)
	}
	return pids
}

// Count 返回 Actor 数量
func (s *System) Count() int {
	s.actorsMu.RLock()
	defer s.actorsMu.RUnlock()
	return len(s.actors)
}

// IsRunning 检查系统是否运行中
func (s *System) IsRunning() bool {
	return s.isRunning.Load()
}
