package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Domain metrics for the subscription core: ledger calls and cron job runs.

type LedgerMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

type CronMetrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	ledgerOnce sync.Once
	ledgerInst *LedgerMetrics

	cronOnce sync.Once
	cronInst *CronMetrics
)

// Ledger returns the process-wide ledger call metrics.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerInst = &LedgerMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_calls_total",
				Help: "Ledger calls partitioned by operation and outcome.",
			}, []string{"op", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name: "ledger_call_dur_ms",
				Help: "Ledger call latencies in milliseconds.",
			}, []string{"op"}),
		}
		prometheus.MustRegister(ledgerInst.calls, ledgerInst.duration)
	})
	return ledgerInst
}

func (m *LedgerMetrics) ObserveCall(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(float64(d.Milliseconds()))
}

// Cron returns the process-wide cron job metrics.
func Cron() *CronMetrics {
	cronOnce.Do(func() {
		cronInst = &CronMetrics{
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cron_job_runs_total",
				Help: "Cron job executions partitioned by job name.",
			}, []string{"job"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cron_job_failures_total",
				Help: "Failed cron job executions partitioned by job name.",
			}, []string{"job"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name: "cron_job_dur_ms",
				Help: "Cron job run durations in milliseconds.",
			}, []string{"job"}),
		}
		prometheus.MustRegister(cronInst.runs, cronInst.failures, cronInst.duration)
	})
	return cronInst
}

func (m *CronMetrics) ObserveRun(job string, d time.Duration, err error) {
	m.runs.WithLabelValues(job).Inc()
	if err != nil {
		m.failures.WithLabelValues(job).Inc()
	}
	m.duration.WithLabelValues(job).Observe(float64(d.Milliseconds()))
}
