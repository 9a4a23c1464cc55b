package sim

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwmacct/251216-go-pkg-bank/pkg/account"
	"github.com/lwmacct/251216-go-pkg-bank/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Duration = 10 * time.Second
	cfg.DepositInterval = 0
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.Seed = 42
	return cfg
}

func TestRunnerScenario(t *testing.T) {
	cfg := testConfig()
	cfg.DepositInterval = 20 * time.Millisecond

	rec := NewRecorder()
	runner := NewRunner(cfg,
		WithReporter(rec),
		WithDepositAmounts(NewSequenceAmounts(5, 3, 4)),
		WithWithdrawAmounts(NewSequenceAmounts(6, 5)))

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonCompleted, result.Reason)
	assert.Equal(t, int64(1), result.Account.Balance)
	assert.Equal(t, int64(3), result.Account.Deposits)
	assert.Equal(t, int64(2), result.Account.Withdrawals)

	_, deposited := rec.Sum(KindDeposit)
	_, withdrawn := rec.Sum(KindWithdraw)
	assert.Equal(t, int64(12), deposited)
	assert.Equal(t, int64(11), withdrawn)
}

func TestRunnerConservation(t *testing.T) {
	cfg := testConfig()
	cfg.Steps = 500 // 每个 Actor 500 次，共 1000 次操作

	rec := NewRecorder()
	result, err := NewRunner(cfg, WithReporter(rec)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonCompleted, result.Reason)

	deposits, deposited := rec.Sum(KindDeposit)
	withdrawals, withdrawn := rec.Sum(KindWithdraw)

	assert.Equal(t, int64(500), deposits)
	assert.LessOrEqual(t, withdrawals, int64(500))
	assert.Equal(t, cfg.InitialBalance+deposited-withdrawn, result.Account.Balance)
	assert.Equal(t, deposited, result.Account.Deposited)
	assert.Equal(t, withdrawn, result.Account.Withdrawn)

	seen := make(map[int64]bool)
	for _, e := range rec.Events() {
		assert.GreaterOrEqual(t, e.Balance, int64(0))
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
	}
	assert.Len(t, seen, int(deposits+withdrawals))

	assert.Zero(t, result.Depositor.Errors)
	assert.Zero(t, result.Withdrawer.Errors)
	assert.GreaterOrEqual(t, result.Depositor.MessagesHandled, deposits)
}

func TestRunnerDurationWithParkedWithdrawer(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = 50 * time.Millisecond
	cfg.DepositInterval = time.Hour

	runner := NewRunner(cfg,
		WithDepositAmounts(NewRandomAmounts(1, 1, 1)),
		WithWithdrawAmounts(NewSequenceAmounts(100)))

	start := time.Now()
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonDuration, result.Reason)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(1), result.Account.Balance)
	assert.Zero(t, result.Account.Withdrawals)
	assert.Zero(t, result.Account.Waiting)
	assert.True(t, result.Account.Closed)
}

func TestRunnerCanceled(t *testing.T) {
	cfg := testConfig()
	cfg.Duration = time.Minute
	cfg.DepositInterval = time.Hour

	runner := NewRunner(cfg,
		WithDepositAmounts(NewRandomAmounts(1, 1, 1)),
		WithWithdrawAmounts(NewSequenceAmounts(100)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReasonCanceled, result.Reason)
	assert.Zero(t, result.Account.Withdrawals)
}

func TestRunnerEscalatesInvariantViolation(t *testing.T) {
	runner := NewRunner(testConfig())
	runner.depositor = func(a *account.Account) Depositor {
		return &flakyDepositor{next: a, err: account.ErrInvariantViolation, failures: 1}
	}

	result, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrInvariantViolation)
	require.NotNil(t, result)
	assert.Equal(t, ReasonFailure, result.Reason)
}

func TestRunnerFailsWhenSupervisorStopsActor(t *testing.T) {
	runner := NewRunner(testConfig())
	runner.depositor = func(a *account.Account) Depositor {
		return &flakyDepositor{next: a, err: errors.New("transient"), failures: 100}
	}

	result, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrActorStopped)
	assert.Contains(t, err.Error(), DepositorName)
	require.NotNil(t, result)
	assert.Equal(t, ReasonFailure, result.Reason)
	assert.Equal(t, int64(4), result.Depositor.Errors)
	assert.Zero(t, result.Account.Deposits)
}

func TestRunnerInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MinAmount, cfg.MaxAmount = 10, 1

	_, err := NewRunner(cfg).Run(context.Background())
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunnerTimeSeed(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = 0
	cfg.Steps = 5

	result, err := NewRunner(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, result.Seed)
	assert.NotEqual(t, uuid.Nil, result.RunID)
}

func TestRunnerWritesEventLines(t *testing.T) {
	cfg := testConfig()
	cfg.Steps = 10

	var buf bytes.Buffer
	result, err := NewRunner(cfg, WithReporter(NewWriterReporter(&buf))).Run(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, int(result.Account.Deposits+result.Account.Withdrawals))
}

func TestRunnerMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Steps = 20

	reg := prometheus.NewRegistry()
	result, err := NewRunner(cfg, WithRegisterer(reg)).Run(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, float64(result.Account.Deposits), values["bank_account_deposits_total"])
	assert.Equal(t, float64(result.Account.Withdrawals), values["bank_account_withdrawals_total"])
	assert.Equal(t, float64(result.Account.Balance), values["bank_account_balance"])
}
