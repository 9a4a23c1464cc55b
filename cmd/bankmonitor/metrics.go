package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// logMetrics 在结束时把采集到的指标写入日志
func logMetrics(logger *slog.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("gather metrics", "error", err)
		return
	}

	attrs := make([]any, 0, len(families)*2)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs = append(attrs, mf.GetName(), metricValue(mf.GetType(), m))
		}
	}
	logger.Info("account metrics", attrs...)
}

func metricValue(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return 0
	}
}
