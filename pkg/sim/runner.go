package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lwmacct/251216-go-pkg-bank/pkg/account"
	"github.com/lwmacct/251216-go-pkg-bank/pkg/actor"
	"github.com/lwmacct/251216-go-pkg-bank/pkg/config"
)

// 结束原因
const (
	ReasonCompleted = "completed" // 两个 Actor 都已自行结束
	ReasonDuration  = "duration"  // 达到运行时长
	ReasonCanceled  = "canceled"  // 外部取消
	ReasonFailure   = "failure"   // 有失败被上报
)

// ErrActorStopped Actor 在完成之前被监督策略停止（重启次数用尽）
var ErrActorStopped = errors.New("actor stopped by supervisor")

// Result 一次运行的结果
type Result struct {
	RunID      uuid.UUID
	Reason     string
	Elapsed    time.Duration
	Seed       uint64
	Account    account.Snapshot
	Depositor  actor.ActorStats
	Withdrawer actor.ActorStats
}

// Runner 创建账户与两个 Actor，运行到边界后停止并等待它们退出
type Runner struct {
	cfg        *config.Config
	reporter   Reporter
	logger     *slog.Logger
	registerer prometheus.Registerer

	deposits    AmountSource
	withdrawals AmountSource

	// depositor 替换存款方使用的账户视图，测试注入故障用
	depositor func(*account.Account) Depositor
}

// RunnerOption Runner 选项
type RunnerOption func(*Runner)

// WithReporter 设置事件输出
func WithReporter(r Reporter) RunnerOption {
	return func(rn *Runner) {
		rn.reporter = r
	}
}

// WithLogger 设置日志器
func WithLogger(l *slog.Logger) RunnerOption {
	return func(rn *Runner) {
		rn.logger = l
	}
}

// WithRegisterer 把账户指标注册到 reg
func WithRegisterer(reg prometheus.Registerer) RunnerOption {
	return func(rn *Runner) {
		rn.registerer = reg
	}
}

// WithDepositAmounts 替换存款金额来源
func WithDepositAmounts(src AmountSource) RunnerOption {
	return func(rn *Runner) {
		rn.deposits = src
	}
}

// WithWithdrawAmounts 替换取款金额来源
func WithWithdrawAmounts(src AmountSource) RunnerOption {
	return func(rn *Runner) {
		rn.withdrawals = src
	}
}

// NewRunner 创建 Runner，cfg 为 nil 时使用默认配置
func NewRunner(cfg *config.Config, opts ...RunnerOption) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Runner{
		cfg:      cfg,
		reporter: discard{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 运行直到 ctx 取消、时长用尽、两个 Actor 都结束或有失败上报
//
// 返回前保证两个 Actor 都已退出。ctx 取消属于正常结束，不返回错误。
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger := r.logger.With("run", runID.String())

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	var opts []account.Option
	if r.registerer != nil {
		opts = append(opts, account.WithMetrics(account.NewMetrics(r.registerer)))
	}
	acct, err := account.New(cfg.InitialBalance, opts...)
	if err != nil {
		return nil, err
	}

	deposits := r.deposits
	if deposits == nil {
		deposits = NewRandomAmounts(cfg.MinAmount, cfg.MaxAmount, seed)
	}
	withdrawals := r.withdrawals
	if withdrawals == nil {
		withdrawals = NewRandomAmounts(cfg.MinAmount, cfg.MaxAmount, seed+1)
	}

	var dep Depositor = acct
	if r.depositor != nil {
		dep = r.depositor(acct)
	}

	reporter := &sequencer{out: r.reporter}
	depActor := NewDepositActor(dep, deposits, reporter, cfg.DepositInterval, cfg.Steps)
	wdActor := NewWithdrawActor(acct, withdrawals, reporter, cfg.Steps)
	depositor := actor.NewStatsActor(depActor)
	withdrawer := actor.NewStatsActor(wdActor)

	sys := actor.NewSystemWithConfig("bank", &actor.SystemConfig{
		DeadLetterSize:          cfg.MailboxSize,
		DefaultActorMailboxSize: cfg.MailboxSize,
		EnableDeadLetterLogging: true,
		Logger:                  logger,
	})

	logger.Info("run started",
		"seed", seed,
		"initial_balance", cfg.InitialBalance,
		"duration", cfg.Duration,
		"steps", cfg.Steps)

	start := time.Now()
	depPID := sys.SpawnWithProps(depositor, r.props(DepositorName))
	wdPID := sys.SpawnWithProps(withdrawer, r.props(WithdrawerName))

	reason, stopErr := r.wait(ctx, sys, acct,
		participant{pid: depPID, actor: depActor},
		participant{pid: wdPID, actor: wdActor})

	// 最后一次通知：唤醒仍在等待、且再也等不到存款的取款
	acct.Close()
	shutdownErr := sys.ShutdownWithTimeout(cfg.ShutdownTimeout)

	result := &Result{
		RunID:      runID,
		Reason:     reason,
		Elapsed:    time.Since(start),
		Seed:       seed,
		Account:    acct.Snapshot(),
		Depositor:  depositor.Stats(),
		Withdrawer: withdrawer.Stats(),
	}

	if err := sys.Err(); err != nil {
		result.Reason = ReasonFailure
		logger.Error("run failed", "error", err)
		return result, err
	}
	if stopErr != nil {
		result.Reason = ReasonFailure
		logger.Error("run failed", "error", stopErr)
		return result, stopErr
	}
	if shutdownErr != nil {
		return result, errors.Wrap(shutdownErr, "stop actors")
	}
	if err := acct.Verify(); err != nil {
		return result, err
	}

	logger.Info("run finished",
		"reason", result.Reason,
		"balance", result.Account.Balance,
		"deposits", result.Account.Deposits,
		"withdrawals", result.Account.Withdrawals,
		"elapsed", result.Elapsed)
	return result, nil
}

func (r *Runner) props(name string) *actor.Props {
	return actor.DefaultProps(name).
		WithMailboxSize(r.cfg.MailboxSize).
		WithSupervisor(SupervisorStrategy())
}

// participant 被 Runner 等待的 Actor
type participant struct {
	pid   *actor.PID
	actor interface{ Finished() bool }
}

// stopped 在 Actor 终止后判断它是否自行正常结束
func (p participant) stopped() error {
	if p.actor.Finished() {
		return nil
	}
	return errors.Wrapf(ErrActorStopped, "actor %s", p.pid.ID)
}

// wait 阻塞到任一结束条件成立，返回结束原因
// Actor 不是自行结束（被监督策略停止）时返回 ReasonFailure 与错误
func (r *Runner) wait(ctx context.Context, sys *actor.System, acct *account.Account, dep, wd participant) (string, error) {
	var deadline <-chan time.Time
	if r.cfg.Duration > 0 {
		timer := time.NewTimer(r.cfg.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	depDone, wdDone := dep.pid.Done(), wd.pid.Done()
	for {
		select {
		case <-ctx.Done():
			return ReasonCanceled, nil
		case <-deadline:
			return ReasonDuration, nil
		case <-sys.Failed():
			return ReasonFailure, nil
		case <-depDone:
			if err := dep.stopped(); err != nil {
				return ReasonFailure, err
			}
			// 不会再有存款，剩余取款要么已有资金，要么应当结束
			depDone = nil
			acct.Close()
			if wdDone == nil {
				return ReasonCompleted, nil
			}
		case <-wdDone:
			if err := wd.stopped(); err != nil {
				return ReasonFailure, err
			}
			wdDone = nil
			if depDone == nil {
				return ReasonCompleted, nil
			}
		}
	}
}
