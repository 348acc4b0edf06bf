package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

// PipelineMetrics instruments annotation pipeline runs. It is registered on
// the owning binary's registry (API or worker) and implements
// ports.PipelineObserver, so the usecase layer reports retrieval and parse
// outcomes directly instead of callers reconstructing them from responses.
type PipelineMetrics struct {
	service string

	runsTotal         *prometheus.CounterVec
	retrievalHitTotal *prometheus.CounterVec
	noContextTotal    *prometheus.CounterVec
	retrievedPassages *prometheus.HistogramVec
	duration          *prometheus.HistogramVec
	parseFailures     *prometheus.CounterVec
}

func newPipelineMetrics(service string, reg prometheus.Registerer) *PipelineMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bb",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total successful annotation pipeline runs by flavor.",
		},
		[]string{"service", "flavor"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bb",
			Subsystem: "pipeline",
			Name:      "retrieval_hit_total",
			Help:      "Total pipeline runs with at least one retrieved passage.",
		},
		[]string{"service", "flavor"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bb",
			Subsystem: "pipeline",
			Name:      "no_context_total",
			Help:      "Total pipeline runs without retrieved passages.",
		},
		[]string{"service", "flavor"},
	)
	retrievedPassages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bb",
			Subsystem: "pipeline",
			Name:      "retrieved_passages",
			Help:      "Distribution of retrieved passages per pipeline run.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "flavor"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bb",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Annotation pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "flavor"},
	)
	parseFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bb",
			Subsystem: "pipeline",
			Name:      "parse_failures_total",
			Help:      "Total model outputs rejected as malformed or schema-violating.",
		},
		[]string{"service", "flavor"},
	)

	reg.MustRegister(
		runsTotal,
		retrievalHitTotal,
		noContextTotal,
		retrievedPassages,
		duration,
		parseFailures,
	)

	return &PipelineMetrics{
		service:           service,
		runsTotal:         runsTotal,
		retrievalHitTotal: retrievalHitTotal,
		noContextTotal:    noContextTotal,
		retrievedPassages: retrievedPassages,
		duration:          duration,
		parseFailures:     parseFailures,
	}
}

// ObserveRun records one completed pipeline run. passageCount is the number
// of retrieved passages the model was actually prompted with.
func (m *PipelineMetrics) ObserveRun(flavor domain.Flavor, passageCount int, duration time.Duration) {
	f := string(flavor)
	m.runsTotal.WithLabelValues(m.service, f).Inc()
	m.retrievedPassages.WithLabelValues(m.service, f).Observe(float64(passageCount))
	m.duration.WithLabelValues(m.service, f).Observe(duration.Seconds())

	if passageCount > 0 {
		m.retrievalHitTotal.WithLabelValues(m.service, f).Inc()
		return
	}
	m.noContextTotal.WithLabelValues(m.service, f).Inc()
}

func (m *PipelineMetrics) ObserveParseFailure(flavor domain.Flavor) {
	m.parseFailures.WithLabelValues(m.service, string(flavor)).Inc()
}
