package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// Summary counts statuses of a course's current session over its roster.
// Unmarked counts roster students without a record, which only happens
// before reconciliation.
type Summary struct {
	CourseID       string  `json:"course_id"`
	SessionID      string  `json:"session_id,omitempty"`
	Present        int     `json:"present"`
	Late           int     `json:"late"`
	Absent         int     `json:"absent"`
	Excused        int     `json:"excused"`
	Unmarked       int     `json:"unmarked"`
	Total          int     `json:"total"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// Stats aggregates ledger records into percentages and summaries.
type Stats struct {
	registry *Registry
	ledger   *Ledger
}

// Percentage is the share of lessons in which studentID was present, over
// every session of the course. Late and excused do not count.
func (s *Stats) Percentage(ctx context.Context, courseID, studentID string, lessons []string) (float64, error) {
	if len(lessons) == 0 {
		return 0, nil
	}
	recs, err := s.ledger.ListByCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return PercentageOf(recs, studentID, lessons), nil
}

// CourseSummary summarizes the course's current session. A course without
// an active window yields zero counts over the roster.
func (s *Stats) CourseSummary(ctx context.Context, courseID string, roster []string) (Summary, error) {
	w, err := s.registry.ActiveWindow(ctx, courseID)
	if errors.Is(err, ErrNoActiveSession) {
		sum := Summarize(nil, roster)
		sum.CourseID = courseID
		return sum, nil
	}
	if err != nil {
		return Summary{}, err
	}
	recs, err := s.ledger.ListBySession(ctx, courseID, w.ID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summarize(recs, roster)
	sum.CourseID = courseID
	sum.SessionID = w.ID
	return sum, nil
}

// PercentageOf computes Percentage over already loaded records.
func PercentageOf(recs []Record, studentID string, lessons []string) float64 {
	if len(lessons) == 0 {
		return 0
	}
	present := make(map[string]struct{})
	for _, r := range recs {
		if r.StudentID == studentID && r.Status == StatusPresent {
			present[r.LessonID] = struct{}{}
		}
	}
	n := 0
	for _, l := range lessons {
		if _, ok := present[l]; ok {
			n++
		}
	}
	return float64(n) / float64(len(lessons)) * 100
}

// Summarize counts one session's records for the students in roster.
// Records of students outside the roster are ignored.
func Summarize(recs []Record, roster []string) Summary {
	byStudent := make(map[string]Status, len(recs))
	for _, r := range recs {
		byStudent[r.StudentID] = r.Status
	}
	var sum Summary
	seen := make(map[string]struct{}, len(roster))
	for _, id := range roster {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sum.Total++
		st, ok := byStudent[id]
		if !ok {
			sum.Unmarked++
			continue
		}
		switch st {
		case StatusPresent:
			sum.Present++
		case StatusLate:
			sum.Late++
		case StatusAbsent:
			sum.Absent++
		case StatusExcused:
			sum.Excused++
		}
	}
	if sum.Total > 0 {
		sum.AttendanceRate = float64(sum.Present+sum.Late+sum.Excused) / float64(sum.Total) * 100
	}
	return sum
}
