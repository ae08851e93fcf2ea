package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

const namespace = "vault"

// PipelineMetrics implements ports.PipelineMetrics.
type PipelineMetrics struct {
	service string

	submissionsTotal  *prometheus.CounterVec
	promotionsTotal   *prometheus.CounterVec
	promotionDuration *prometheus.HistogramVec
	discardWarnings   *prometheus.CounterVec
	batchItemsTotal   *prometheus.CounterVec
	analysisTotal     *prometheus.CounterVec
}

func NewPipelineMetrics(registerer prometheus.Registerer, service string) *PipelineMetrics {
	m := &PipelineMetrics{
		service: service,
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "submissions_total",
				Help:      "Submissions settled by the automated validator, by resulting status.",
			},
			[]string{"service", "status"},
		),
		promotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "promotions_total",
				Help:      "Staging to vault promotions by outcome.",
			},
			[]string{"service", "outcome"},
		),
		promotionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "promotion_duration_seconds",
				Help:      "Promotion duration in seconds by outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "outcome"},
		),
		discardWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "discard_warnings_total",
				Help:      "Rejections whose staged file could not be removed.",
			},
			[]string{"service"},
		),
		batchItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "batch_items_total",
				Help:      "Approve-all items by result.",
			},
			[]string{"service", "result"},
		),
		analysisTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "analysis_total",
				Help:      "Content analysis runs by status.",
			},
			[]string{"service", "status"},
		),
	}

	registerer.MustRegister(
		m.submissionsTotal,
		m.promotionsTotal,
		m.promotionDuration,
		m.discardWarnings,
		m.batchItemsTotal,
		m.analysisTotal,
	)
	return m
}

func (m *PipelineMetrics) ObserveSubmission(status domain.Status) {
	m.submissionsTotal.WithLabelValues(m.service, string(status)).Inc()
}

func (m *PipelineMetrics) ObservePromotion(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.promotionsTotal.WithLabelValues(m.service, outcome).Inc()
	m.promotionDuration.WithLabelValues(m.service, outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveDiscardWarning() {
	m.discardWarnings.WithLabelValues(m.service).Inc()
}

func (m *PipelineMetrics) ObserveBatch(succeeded, failed int) {
	if succeeded > 0 {
		m.batchItemsTotal.WithLabelValues(m.service, "succeeded").Add(float64(succeeded))
	}
	if failed > 0 {
		m.batchItemsTotal.WithLabelValues(m.service, "failed").Add(float64(failed))
	}
}

func (m *PipelineMetrics) ObserveAnalysis(status string) {
	if status == "" {
		status = "unknown"
	}
	m.analysisTotal.WithLabelValues(m.service, status).Inc()
}
