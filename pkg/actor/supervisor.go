package actor

import (
	"fmt"
	"sync"
	"time"
)

// Directive 监督指令
type Directive int

const (
	// DirectiveResume 忽略失败，继续处理下一条消息
	DirectiveResume Directive = iota
	// DirectiveRestart 重启 Actor（重新收到 Restarting 与 Started）
	DirectiveRestart
	// DirectiveStop 停止 Actor
	DirectiveStop
	// DirectiveEscalate 上报到系统，System.Failed() 随之关闭
	DirectiveEscalate
)

// DirectiveWithDelay 带延迟的指令（目前只用于重启）
type DirectiveWithDelay struct {
	Directive Directive
	Delay     time.Duration
}

// String 返回指令名称
func (d Directive) String() string {
	switch d {
	case DirectiveResume:
		return "Resume"
	case DirectiveRestart:
		return "Restart"
	case DirectiveStop:
		return "Stop"
	case DirectiveEscalate:
		return "Escalate"
	default:
		return fmt.Sprintf("Directive(%d)", int(d))
	}
}

// String 返回带延迟的指令描述
func (d DirectiveWithDelay) String() string {
	return fmt.Sprintf("%s after %s", d.Directive, d.Delay)
}

// SupervisorStrategy 监督策略接口
type SupervisorStrategy interface {
	// HandleFailure 处理 Actor 失败
	// reason 为 panic 值或 Context.Err 报告的错误
	// 返回 Directive 或 DirectiveWithDelay
	HandleFailure(system *System, child *PID, msg Message, reason any) any
}

// Decider 决策函数类型
type Decider func(reason any) Directive

// ============== 内置监督策略 ==============

// OneForOneStrategy 一对一策略
// 时间窗口内重启次数超过上限后改为停止
type OneForOneStrategy struct {
	MaxRestarts    int
	WithinDuration time.Duration
	Decider        Decider

	mu            sync.Mutex
	restartWindow []time.Time
}

// NewOneForOneStrategy 创建一对一策略
func NewOneForOneStrategy(maxRestarts int, within time.Duration, decider Decider) *OneForOneStrategy {
	if decider == nil {
		decider = DefaultDecider
	}
	return &OneForOneStrategy{
		MaxRestarts:    maxRestarts,
		WithinDuration: within,
		Decider:        decider,
	}
}

// HandleFailure 实现 SupervisorStrategy
func (s *OneForOneStrategy) HandleFailure(_ *System, _ *PID, _ Message, reason any) any {
	directive := s.Decider(reason)
	if directive != DirectiveRestart {
		return directive
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-s.WithinDuration)

	valid := s.restartWindow[:0]
	for _, t := range s.restartWindow {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	s.restartWindow = valid

	if len(s.restartWindow) >= s.MaxRestarts {
		return DirectiveStop
	}

	s.restartWindow = append(s.restartWindow, now)
	return directive
}

// ExponentialBackoffStrategy 指数退避策略
// 重启间隔逐次翻倍，直到 MaxDelay
type ExponentialBackoffStrategy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRestarts  int
	Decider      Decider

	mu           sync.Mutex
	currentDelay time.Duration
	restartCount int
}

// NewExponentialBackoffStrategy 创建指数退避策略
func NewExponentialBackoffStrategy(initialDelay, maxDelay time.Duration, maxRestarts int, decider Decider) *ExponentialBackoffStrategy {
	if decider == nil {
		decider = DefaultDecider
	}
	return &ExponentialBackoffStrategy{
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		MaxRestarts:  maxRestarts,
		Decider:      decider,
		currentDelay: initialDelay,
	}
}

// HandleFailure 实现 SupervisorStrategy
func (s *ExponentialBackoffStrategy) HandleFailure(_ *System, _ *PID, _ Message, reason any) any {
	directive := s.Decider(reason)
	if directive != DirectiveRestart {
		return directive
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restartCount >= s.MaxRestarts {
		return DirectiveStop
	}

	delay := s.currentDelay
	s.currentDelay *= 2
	if s.currentDelay > s.MaxDelay {
		s.currentDelay = s.MaxDelay
	}
	s.restartCount++

	return DirectiveWithDelay{
		Directive: DirectiveRestart,
		Delay:     delay,
	}
}

// Reset 重置退避状态
func (s *ExponentialBackoffStrategy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDelay = s.InitialDelay
	s.restartCount = 0
}

// ============== 默认策略和决策器 ==============

// DefaultDecider 对所有失败重启
func DefaultDecider(_ any) Directive {
	return DirectiveRestart
}

// StoppingDecider 对所有失败停止
func StoppingDecider(_ any) Directive {
	return DirectiveStop
}

// EscalatingDecider 对所有失败上报
func EscalatingDecider(_ any) Directive {
	return DirectiveEscalate
}

// ResumingDecider 忽略失败继续运行
func ResumingDecider(_ any) Directive {
	return DirectiveResume
}

// DefaultSupervisorStrategy 1 分钟内允许 3 次重启
func DefaultSupervisorStrategy() SupervisorStrategy {
	return NewOneForOneStrategy(3, time.Minute, DefaultDecider)
}

// StrictSupervisorStrategy 任何失败都停止 Actor
func StrictSupervisorStrategy() SupervisorStrategy {
	return NewOneForOneStrategy(0, time.Second, StoppingDecider)
}
