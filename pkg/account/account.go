package account

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"
)

// Account 由互斥锁与条件变量保护的单一余额（监视器模式）
//
// 所有读写都在 mu 内完成；Withdraw 在余额不足时通过 cond 挂起，
// 挂起期间释放 mu，被 Deposit / Close 唤醒后重新检查条件。
//
// 公平性：mu 为 sync.Mutex，等待超过 1ms 后进入饥饿模式按 FIFO 交接；
// cond 的等待者按到达顺序唤醒。整体为尽力而为的 FIFO，不保证严格顺序。
type Account struct {
	mu   sync.Mutex
	cond *Cond

	balance int64
	initial int64

	// 累计值，用于守恒校验
	deposited   int64
	withdrawn   int64
	deposits    int64
	withdrawals int64

	closed  bool
	metrics *Metrics
}

// Snapshot 账户状态快照
type Snapshot struct {
	Balance     int64 `json:"balance"`
	Initial     int64 `json:"initial"`
	Deposited   int64 `json:"deposited"`
	Withdrawn   int64 `json:"withdrawn"`
	Deposits    int64 `json:"deposits"`
	Withdrawals int64 `json:"withdrawals"`
	Waiting     int   `json:"waiting"`
	Closed      bool  `json:"closed"`
}

// Option 账户选项
type Option func(*Account)

// WithMetrics 挂载 prometheus 指标
func WithMetrics(m *Metrics) Option {
	return func(a *Account) {
		a.metrics = m
	}
}

// New 以初始余额创建账户，初始余额不得为负
func New(initial int64, opts ...Option) (*Account, error) {
	if initial < 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "initial balance %d", initial)
	}
	a := &Account{
		balance: initial,
		initial: initial,
	}
	a.cond = NewCond(&a.mu)
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics != nil {
		a.metrics.Balance.Set(float64(initial))
	}
	return a, nil
}

// Deposit 存款并唤醒所有等待中的取款，返回存款后的余额
func (a *Account) Deposit(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errors.Wrapf(ErrInvalidAmount, "deposit %d", amount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return a.balance, ErrClosed
	}
	// 状态已损坏时先报告不变量，避免被误判为溢出
	if err := a.verifyLocked(); err != nil {
		return a.balance, err
	}
	if a.balance > math.MaxInt64-amount || a.deposited > math.MaxInt64-amount {
		return a.balance, errors.Wrapf(ErrOverflow, "deposit %d onto %d", amount, a.balance)
	}

	a.balance += amount
	a.deposited += amount
	a.deposits++

	if err := a.verifyLocked(); err != nil {
		return a.balance, err
	}

	if m := a.metrics; m != nil {
		m.Deposits.Inc()
		m.DepositedAmount.Add(float64(amount))
		m.Balance.Set(float64(a.balance))
	}

	a.cond.Broadcast()
	return a.balance, nil
}

// Withdraw 取款，余额不足时阻塞直到有足够存款，返回取款后的余额
//
// 阻塞期间不持有锁。以下情况放弃等待并返回错误：
//   - ctx 被取消：返回 ctx.Err()
//   - 账户已关闭且余额仍不足：返回 ErrClosed
//
// 条件一旦满足即完成扣款，不再检查 ctx。
func (a *Account) Withdraw(ctx context.Context, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errors.Wrapf(ErrInvalidAmount, "withdraw %d", amount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	waited := false
	for a.balance < amount {
		if a.closed {
			return a.balance, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return a.balance, err
		}
		if !waited {
			waited = true
			if a.metrics != nil {
				a.metrics.WithdrawWaits.Inc()
			}
		}
		a.parkLocked(ctx.Done())
	}

	a.balance -= amount
	a.withdrawn += amount
	a.withdrawals++

	if err := a.verifyLocked(); err != nil {
		return a.balance, err
	}

	if m := a.metrics; m != nil {
		m.Withdrawals.Inc()
		m.WithdrawnAmount.Add(float64(amount))
		m.Balance.Set(float64(a.balance))
	}
	return a.balance, nil
}

// parkLocked 在 cond 上挂起一次，维护等待者计数
func (a *Account) parkLocked(interrupt <-chan struct{}) {
	if a.metrics != nil {
		a.metrics.WaitingWithdraws.Inc()
		defer a.metrics.WaitingWithdraws.Dec()
	}
	a.cond.Wait(interrupt)
}

// Close 关闭账户：不再接受存款，并唤醒所有等待者
// 余额足够的取款仍可完成，其余等待者返回 ErrClosed。可重复调用。
func (a *Account) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.cond.Broadcast()
}

// Balance 返回当前余额
func (a *Account) Balance() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Snapshot 返回当前状态快照
func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Balance:     a.balance,
		Initial:     a.initial,
		Deposited:   a.deposited,
		Withdrawn:   a.withdrawn,
		Deposits:    a.deposits,
		Withdrawals: a.withdrawals,
		Waiting:     a.cond.Len(),
		Closed:      a.closed,
	}
}

// Verify 校验不变量：余额非负且收支守恒
func (a *Account) Verify() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verifyLocked()
}

func (a *Account) verifyLocked() error {
	if a.balance < 0 {
		return errors.Wrapf(ErrInvariantViolation, "negative balance %d", a.balance)
	}
	if want := a.initial + a.deposited - a.withdrawn; a.balance != want {
		return errors.Wrapf(ErrInvariantViolation,
			"balance %d != initial %d + deposited %d - withdrawn %d",
			a.balance, a.initial, a.deposited, a.withdrawn)
	}
	return nil
}
