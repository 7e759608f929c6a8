package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain/repository.Metrics using Prometheus.
type Recorder struct {
	stepDuration    *prometheus.HistogramVec
	stepResults     *prometheus.CounterVec
	forecastsSaved  *prometheus.CounterVec
	recsUpserted    *prometheus.CounterVec
	ruleFallbacks   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastRunRowCount *prometheus.GaugeVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		stepDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "revenue_step_duration_seconds",
				Help:    "Duration of pipeline steps in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"step"},
		),
		stepResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revenue_step_results_total",
				Help: "Pipeline step outcomes",
			},
			[]string{"step", "result"},
		),
		forecastsSaved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revenue_forecasts_persisted_total",
				Help: "Forecast rows written to the store",
			},
			[]string{"room_type"},
		),
		recsUpserted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revenue_recommendations_upserted_total",
				Help: "Tariff recommendations inserted or updated",
			},
			[]string{"channel"},
		),
		ruleFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revenue_rule_fallbacks_total",
				Help: "Rules evaluated as neutral because their parameters were malformed",
			},
			[]string{"kind"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "revenue_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastRunRowCount: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "revenue_last_run_rows",
				Help: "Rows produced by the last run of a step",
			},
			[]string{"step"},
		),
	}
}

// RecordStep records a step outcome and its duration.
func (r *Recorder) RecordStep(step string, ok bool, seconds float64) {
	result := "success"
	if !ok {
		result = "failure"
	}
	r.stepResults.WithLabelValues(step, result).Inc()
	r.stepDuration.WithLabelValues(step).Observe(seconds)
}

// RecordRows sets the row count produced by the last run of a step.
func (r *Recorder) RecordRows(step string, n int) {
	r.lastRunRowCount.WithLabelValues(step).Set(float64(n))
}

func (r *Recorder) RecordForecasts(roomType string, n int) {
	r.forecastsSaved.WithLabelValues(roomType).Add(float64(n))
}

func (r *Recorder) RecordRecommendations(channel string, n int) {
	r.recsUpserted.WithLabelValues(channel).Add(float64(n))
}

func (r *Recorder) RecordRuleFallback(kind string) {
	r.ruleFallbacks.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
