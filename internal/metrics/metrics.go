// Package metrics exposes attendance counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements attendance.Metrics.
type Prometheus struct {
	windowsOpened *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	absences      *prometheus.CounterVec
}

// New registers the attendance collectors with reg.
func New(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		windowsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classattend",
			Name:      "windows_opened_total",
			Help:      "Attendance windows opened, by course.",
		}, []string{"course_id"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classattend",
			Name:      "submissions_total",
			Help:      "Student submissions, by result.",
		}, []string{"result"}),
		absences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "classattend",
			Name:      "absences_reconciled_total",
			Help:      "Absences inserted by reconciliation, by course.",
		}, []string{"course_id"}),
	}
	reg.MustRegister(m.windowsOpened, m.submissions, m.absences)
	return m
}

func (m *Prometheus) WindowOpened(courseID string) {
	m.windowsOpened.WithLabelValues(courseID).Inc()
}

func (m *Prometheus) Submission(result string) {
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Prometheus) AbsencesReconciled(courseID string, n int) {
	if n <= 0 {
		return
	}
	m.absences.WithLabelValues(courseID).Add(float64(n))
}
