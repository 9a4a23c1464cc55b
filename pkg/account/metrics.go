package account

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bank"

// Metrics 账户的 prometheus 指标
type Metrics struct {
	Deposits         prometheus.Counter
	Withdrawals      prometheus.Counter
	DepositedAmount  prometheus.Counter
	WithdrawnAmount  prometheus.Counter
	Balance          prometheus.Gauge
	WithdrawWaits    prometheus.Counter
	WaitingWithdraws prometheus.Gauge
}

// NewMetrics 创建并注册账户指标
// reg 为 nil 时只创建不注册（测试中可直接读取）
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Deposits: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "account",
			Name:      "deposits_total",
			Help:      "Number of completed deposits.",
		}),
		Withdrawals: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "account",
			Name:      "withdrawals_total",
			Help:      "Number of completed withdrawals.",
		}),
		DepositedAmount: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "account",
			Name:      "deposited_amount_total",
			Help:      "Sum of all deposited amounts.",
		}),
		WithdrawnAmount: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "account",
			Name:      "withdrawn_amount_total",
			Help:      "Sum of all withdrawn amounts.",
		}),
		Balance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "account",
			Name:      "balance",
			Help:      "Current account balance.",
		}),
		WithdrawWaits: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "account",
			Name:      "withdraw_waits_total",
			Help:      "Number of withdrawals that had to wait for funds.",
		}),
		WaitingWithdraws: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "account",
			Name:      "waiting_withdrawers",
			Help:      "Withdrawals currently parked on insufficient funds.",
		}),
	}
}
