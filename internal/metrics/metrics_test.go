package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"classattend/internal/attendance"
)

var _ attendance.Metrics = (*Prometheus)(nil)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.WindowOpened("CS101")
	m.WindowOpened("CS101")
	m.Submission(attendance.ResultRecorded)
	m.Submission(attendance.ResultWrongCode)
	m.Submission(attendance.ResultRecorded)
	m.AbsencesReconciled("CS101", 3)
	m.AbsencesReconciled("CS101", 0)

	if got := testutil.ToFloat64(m.windowsOpened.WithLabelValues("CS101")); got != 2 {
		t.Fatalf("windows opened = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues(attendance.ResultRecorded)); got != 2 {
		t.Fatalf("recorded submissions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues(attendance.ResultWrongCode)); got != 1 {
		t.Fatalf("wrong code submissions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.absences.WithLabelValues("CS101")); got != 3 {
		t.Fatalf("absences = %v, want 3", got)
	}
}
