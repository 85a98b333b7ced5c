package assess

import (
	"time"

	"github.com/WessleyAI/motor-risk/pkg/metrics"
)

// Metrics tracks assessment outcomes. A nil *Metrics records nothing.
type Metrics struct {
	OK       *metrics.Counter
	Failed   *metrics.Counter
	Duration *metrics.Histogram
}

// NewMetrics registers the assessment metrics on reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		OK:       reg.Counter(metrics.WithLabels("motor_assessments_total", "outcome", "ok"), "Assessments by outcome"),
		Failed:   reg.Counter(metrics.WithLabels("motor_assessments_total", "outcome", "error"), "Assessments by outcome"),
		Duration: reg.Histogram("motor_assessment_seconds", "End-to-end assessment latency", nil),
	}
}

func (m *Metrics) observe(start time.Time, err error) {
	if m == nil {
		return
	}
	m.Duration.Since(start)
	if err != nil {
		m.Failed.Inc()
		return
	}
	m.OK.Inc()
}
