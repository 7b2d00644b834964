package attendance

import (
	"context"
	"strings"
	"time"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// ParseStatus accepts the four statuses case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPresent, StatusLate, StatusAbsent, StatusExcused:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// Record is the attendance of one student in one session of a course.
// (CourseID, SessionID, StudentID) is unique.
type Record struct {
	CourseID  string    `json:"course_id"`
	SessionID string    `json:"session_id"`
	LessonID  string    `json:"lesson_id"`
	StudentID string    `json:"student_id"`
	Status    Status    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	MarkedAt  time.Time `json:"marked_at"`
}

// Store persists windows and records. Every method is a single atomic
// operation; a failed call leaves no partial state behind.
type Store interface {
	// SaveWindow inserts or replaces w. When w is active, every other
	// window of w.CourseID is deactivated in the same operation.
	SaveWindow(ctx context.Context, w Window) error
	// LoadActiveWindow returns ErrNotFound when the course has none.
	LoadActiveWindow(ctx context.Context, courseID string) (Window, error)
	ListActiveWindows(ctx context.Context) ([]Window, error)

	// SaveRecord inserts or overwrites the record for its key.
	SaveRecord(ctx context.Context, r Record) error
	// SaveRecordIfAbsent inserts r only when its key is free.
	SaveRecordIfAbsent(ctx context.Context, r Record) (bool, error)
	// LoadRecord returns ErrNotFound when the key is free.
	LoadRecord(ctx context.Context, courseID, sessionID, studentID string) (Record, error)
	LoadRecordsByCourse(ctx context.Context, courseID string) ([]Record, error)
	LoadRecordsBySession(ctx context.Context, courseID, sessionID string) ([]Record, error)
}

// RosterProvider lists the students enrolled in a course.
type RosterProvider interface {
	EnrolledStudents(ctx context.Context, courseID string) ([]string, error)
}

// LessonProvider lists the ordered lesson ids of a course.
type LessonProvider interface {
	Lessons(ctx context.Context, courseID string) ([]string, error)
}

// Catalog is the course catalog the service reads rosters and lessons from.
type Catalog interface {
	RosterProvider
	LessonProvider
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the local wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Metrics receives counters from the engine. All methods must be safe for
// concurrent use.
type Metrics interface {
	WindowOpened(courseID string)
	Submission(result string)
	AbsencesReconciled(courseID string, n int)
}

type nopMetrics struct{}

func (nopMetrics) WindowOpened(string)            {}
func (nopMetrics) Submission(string)              {}
func (nopMetrics) AbsencesReconciled(string, int) {}
