package sim

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/lwmacct/251216-go-pkg-bank/pkg/account"
	"github.com/lwmacct/251216-go-pkg-bank/pkg/actor"
)

// flakyDepositor 前 failures 次存款返回 err，之后转发给账户
type flakyDepositor struct {
	next     Depositor
	err      error
	failures int32
	calls    atomic.Int32
}

func (f *flakyDepositor) Deposit(amount int64) (int64, error) {
	if f.calls.Add(1) <= f.failures {
		return 0, f.err
	}
	return f.next.Deposit(amount)
}

func newAccount(t *testing.T, initial int64) *account.Account {
	t.Helper()
	acct, err := account.New(initial)
	require.NoError(t, err)
	return acct
}

func spawn(t *testing.T, sys *actor.System, a actor.Actor, name string) *actor.PID {
	t.Helper()
	pid := sys.SpawnWithProps(a, actor.DefaultProps(name).WithSupervisor(SupervisorStrategy()))
	require.NotNil(t, pid)
	return pid
}

func waitStopped(t *testing.T, pid *actor.PID) {
	t.Helper()
	select {
	case <-pid.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not stop", pid)
	}
}

func TestDepositActorSteps(t *testing.T) {
	sys := actor.NewSystem("test")
	defer sys.Shutdown()

	acct := newAccount(t, 0)
	rec := NewRecorder()
	dep := NewDepositActor(acct, NewRandomAmounts(1, 10, 1), rec, 0, 5)
	pid := spawn(t, sys, dep, DepositorName)

	waitStopped(t, pid)
	assert.True(t, dep.Finished())

	count, total := rec.Sum(KindDeposit)
	assert.Equal(t, int64(5), count)
	assert.Equal(t, total, acct.Balance())
}

func TestDepositActorStoppedBySupervisorIsNotFinished(t *testing.T) {
	sys := actor.NewSystem("test")
	defer sys.Shutdown()

	acct := newAccount(t, 0)
	flaky := &flakyDepositor{next: acct, err: errors.New("transient"), failures: 100}
	dep := NewDepositActor(flaky, NewRandomAmounts(1, 10, 1), nil, 0, 0)
	pid := spawn(t, sys, dep, DepositorName)

	// 3 次重启后第 4 次失败被停止
	waitStopped(t, pid)
	assert.False(t, dep.Finished())
	assert.Equal(t, int32(4), flaky.calls.Load())
	assert.NoError(t, sys.Err())
}

func TestDepositActorInterval(t *testing.T) {
	sys := actor.NewSystem("test")
	defer sys.Shutdown()

	acct := newAccount(t, 0)
	start := time.Now()
	pid := spawn(t, sys, NewDepositActor(acct, NewSequenceAmounts(1, 1, 1), nil, 20*time.Millisecond, 0), DepositorName)

	waitStopped(t, pid)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, int64(3), acct.Balance())
}

func TestDepositActorStopsOnClose(t *testing.T) {
	sys := actor.NewSystem("test")
	defer sys.Shutdown()

	acct := newAccount(t, 0)
	acct.Close()
	pid := spawn(t, sys, NewDepositActor(acct, NewRandomAmounts(1, 10, 1), nil, 0, 0), DepositorName)

	waitStopped(t, pid)
	assert.NoError(t, sys.Err())
	assert.Zero(t, acct.Balance())
}

func TestWithdrawActorDrains(t *testing.T) {
	sys := actor.NewSystem("test")
	defer sys.Shutdown()

	acct := newAccount(t, 10)
	rec := NewRecorder()
	pid := spawn(t, sys, NewWithdrawActor(acct, NewSequenceAmounts(4, 3, 2), rec, 0), WithdrawerName)

	waitStopped(t, pid)
	assert.Equal(t, int64(1), acct.Balance())

	count, total := rec.Sum(KindWithdraw)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(9), total)
}

func TestWithdrawActorStopsOnClose(t *testing.T) {
	sys := actor.NewSystem("test")
	defer sys.Shutdown()

	acct := newAccount(t, 0)
	wd := NewWithdrawActor(acct, NewSequenceAmounts(5), nil, 0)
	pid := spawn(t, sys, wd, WithdrawerName)

	require.Eventually(t, func() bool {
		return acct.Snapshot().Waiting == 1
	}, time.Second, 5*time.Millisecond)

	acct.Close()
	waitStopped(t, pid)
	assert.True(t, wd.Finished())
	assert.NoError(t, sys.Err())
	assert.Zero(t, acct.Snapshot().Withdrawals)
}

func TestWithdrawActorWakesOnShutdown(t *testing.T) {
	sys := actor.NewSystem("test")

	acct := newAccount(t, 0)
	pid := spawn(t, sys, NewWithdrawActor(acct, NewSequenceAmounts(5), nil, 0), WithdrawerName)

	require.Eventually(t, func() bool {
		return acct.Snapshot().Waiting == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sys.ShutdownWithTimeout(time.Second))
	waitStopped(t, pid)
	assert.NoError(t, sys.Err())
	assert.Zero(t, acct.Snapshot().Waiting)
}

func TestDepositActorRestartsOnTransientError(t *testing.T) {
	sys := actor.NewSystem("test")
	defer sys.Shutdown()

	acct := newAccount(t, 0)
	flaky := &flakyDepositor{next: acct, err: errors.New("transient"), failures: 1}
	rec := NewRecorder()
	pid := spawn(t, sys, NewDepositActor(flaky, NewSequenceAmounts(1, 2, 3, 4), rec, 0, 0), DepositorName)

	waitStopped(t, pid)
	assert.NoError(t, sys.Err())

	// 第一笔金额随失败丢弃，重启后继续
	count, total := rec.Sum(KindDeposit)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(9), total)
	assert.Equal(t, int32(4), flaky.calls.Load())
}

func TestDepositActorEscalatesFatal(t *testing.T) {
	sys := actor.NewSystem("test")
	defer sys.Shutdown()

	acct := newAccount(t, 0)
	broken := &flakyDepositor{next: acct, err: account.ErrInvariantViolation, failures: 1}
	pid := spawn(t, sys, NewDepositActor(broken, NewRandomAmounts(1, 10, 1), nil, 0, 0), DepositorName)

	select {
	case <-sys.Failed():
	case <-time.After(time.Second):
		t.Fatal("invariant violation was not escalated")
	}
	assert.ErrorIs(t, sys.Err(), account.ErrInvariantViolation)
	waitStopped(t, pid)
}

func TestDecide(t *testing.T) {
	assert.Equal(t, actor.DirectiveEscalate, decide(errors.Wrap(account.ErrInvariantViolation, "x")))
	assert.Equal(t, actor.DirectiveEscalate, decide(account.ErrInvalidAmount))
	assert.Equal(t, actor.DirectiveEscalate, decide(account.ErrOverflow))
	assert.Equal(t, actor.DirectiveEscalate, decide("panic value"))
	assert.Equal(t, actor.DirectiveRestart, decide(errors.New("transient")))
	assert.Equal(t, actor.DirectiveRestart, decide(context.DeadlineExceeded))
}
