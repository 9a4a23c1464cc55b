package sim

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/lwmacct/251216-go-pkg-bank/pkg/account"
	"github.com/lwmacct/251216-go-pkg-bank/pkg/actor"
)

// Actor 名称
const (
	DepositorName  = "depositor"
	WithdrawerName = "withdrawer"
)

// Depositor 存款方需要的账户能力
type Depositor interface {
	Deposit(amount int64) (int64, error)
}

// Withdrawer 取款方需要的账户能力
type Withdrawer interface {
	Withdraw(ctx context.Context, amount int64) (int64, error)
}

// tick 驱动一次迭代的自消息
type tick struct{}

func (t *tick) Kind() string { return "sim.tick" }

// loop 两个 Actor 共用的迭代计数与停止判断
type loop struct {
	amounts  AmountSource
	reporter Reporter
	steps    int // 0 表示不限
	done     int
	finished bool
}

// exhausted 迭代上限已到
func (l *loop) exhausted() bool {
	return l.steps > 0 && l.done >= l.steps
}

// finish 正常结束：迭代用尽、金额耗尽或账户已关闭
func (l *loop) finish(ctx *actor.Context) {
	l.finished = true
	ctx.StopSelf()
}

// Finished 报告 Actor 是否自行正常结束
// 被监督策略停止的 Actor 返回 false。需在 PID.Done() 关闭后读取。
func (l *loop) Finished() bool {
	return l.finished
}

// ═══════════════════════════════════════════════════════════════════════════
// DepositActor
// ═══════════════════════════════════════════════════════════════════════════

// DepositActor 每隔 interval 存入一笔随机金额
type DepositActor struct {
	loop
	account  Depositor
	interval time.Duration
}

// NewDepositActor 创建存款 Actor
func NewDepositActor(acct Depositor, amounts AmountSource, reporter Reporter, interval time.Duration, steps int) *DepositActor {
	if reporter == nil {
		reporter = discard{}
	}
	return &DepositActor{
		loop:     loop{amounts: amounts, reporter: reporter, steps: steps},
		account:  acct,
		interval: interval,
	}
}

// Receive 实现 actor.Actor
func (a *DepositActor) Receive(ctx *actor.Context, msg actor.Message) {
	switch msg.(type) {
	case *actor.Started:
		ctx.Self.Tell(&tick{})
	case *tick:
		a.step(ctx)
	case *actor.Stopping:
		ctx.Logger().Debug("depositor stopping", "deposits", a.done)
	}
}

func (a *DepositActor) step(ctx *actor.Context) {
	// 停止信号只在迭代边界检查
	if ctx.Context().Err() != nil {
		return
	}
	if a.exhausted() {
		a.finish(ctx)
		return
	}

	amount, ok := a.amounts.Next()
	if !ok {
		a.finish(ctx)
		return
	}

	balance, err := a.account.Deposit(amount)
	switch {
	case errors.Is(err, account.ErrClosed):
		a.finish(ctx)
		return
	case err != nil:
		ctx.Err(errors.Wrapf(err, "deposit %d", amount))
		return
	}

	a.done++
	a.reporter.Report(Event{Actor: ctx.Self.ID, Kind: KindDeposit, Amount: amount, Balance: balance})

	if a.exhausted() {
		a.finish(ctx)
		return
	}
	ctx.ScheduleOnce(&tick{}, a.interval)
}

// ═══════════════════════════════════════════════════════════════════════════
// WithdrawActor
// ═══════════════════════════════════════════════════════════════════════════

// WithdrawActor 连续取款，余额不足时阻塞在账户里
type WithdrawActor struct {
	loop
	account Withdrawer
}

// NewWithdrawActor 创建取款 Actor
func NewWithdrawActor(acct Withdrawer, amounts AmountSource, reporter Reporter, steps int) *WithdrawActor {
	if reporter == nil {
		reporter = discard{}
	}
	return &WithdrawActor{
		loop:    loop{amounts: amounts, reporter: reporter, steps: steps},
		account: acct,
	}
}

// Receive 实现 actor.Actor
func (a *WithdrawActor) Receive(ctx *actor.Context, msg actor.Message) {
	switch msg.(type) {
	case *actor.Started:
		ctx.Self.Tell(&tick{})
	case *tick:
		a.step(ctx)
	case *actor.Stopping:
		ctx.Logger().Debug("withdrawer stopping", "withdrawals", a.done)
	}
}

func (a *WithdrawActor) step(ctx *actor.Context) {
	if ctx.Context().Err() != nil {
		return
	}
	if a.exhausted() {
		a.finish(ctx)
		return
	}

	amount, ok := a.amounts.Next()
	if !ok {
		a.finish(ctx)
		return
	}

	// 阻塞点：余额不足时挂起，Actor 停止时 context 取消将其唤醒
	balance, err := a.account.Withdraw(ctx.Context(), amount)
	switch {
	case actor.IsContextError(err):
		ctx.Logger().Debug("withdraw abandoned", "amount", amount)
		return
	case errors.Is(err, account.ErrClosed):
		ctx.Logger().Debug("withdraw cannot be funded, account closed", "amount", amount)
		a.finish(ctx)
		return
	case err != nil:
		ctx.Err(errors.Wrapf(err, "withdraw %d", amount))
		return
	}

	a.done++
	a.reporter.Report(Event{Actor: ctx.Self.ID, Kind: KindWithdraw, Amount: amount, Balance: balance})

	if a.exhausted() {
		a.finish(ctx)
		return
	}
	ctx.Self.Tell(&tick{})
}

// ═══════════════════════════════════════════════════════════════════════════
// 监督
// ═══════════════════════════════════════════════════════════════════════════

// SupervisorStrategy 账户不变式被破坏、金额非法或溢出说明程序有缺陷，直接上报；
// 其余失败在 1 分钟内最多重启 3 次
func SupervisorStrategy() actor.SupervisorStrategy {
	return actor.NewOneForOneStrategy(3, time.Minute, decide)
}

func decide(reason any) actor.Directive {
	err, ok := reason.(error)
	if !ok || account.IsFatal(err) {
		return actor.DirectiveEscalate
	}
	return actor.DirectiveRestart
}
