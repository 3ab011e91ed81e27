package tracking

import "github.com/prometheus/client_golang/prometheus"

// Submission outcomes reported on the submissions counter.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Metrics counts tracking submissions by outcome.
type Metrics struct {
	submissions *prometheus.CounterVec
}

// NewMetrics registers the tracking collectors with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	submissions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slidetrack",
			Subsystem: "tracking",
			Name:      "submissions_total",
			Help:      "Tracking submissions by outcome.",
		},
		[]string{"outcome"},
	)
	registerer.MustRegister(submissions)

	for _, outcome := range []string{OutcomeRecorded, OutcomeDuplicate, OutcomeFailed} {
		submissions.WithLabelValues(outcome)
	}
	return &Metrics{submissions: submissions}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
