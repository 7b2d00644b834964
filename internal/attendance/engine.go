package attendance

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Submission is a student's attempt to mark attendance.
type Submission struct {
	CourseID  string
	Code      string
	StudentID string
	Status    Status
	MarkedBy  string
}

// Submission results reported to Metrics.
const (
	ResultRecorded      = "recorded"
	ResultNoSession     = "no_session"
	ResultWrongCode     = "wrong_code"
	ResultNotYetOpen    = "not_yet_open"
	ResultClosed        = "closed"
	ResultInvalid       = "invalid"
	ResultStorageFailed = "storage_failed"
)

// Engine validates submissions against the active window and records them.
type Engine struct {
	registry *Registry
	ledger   *Ledger
	clock    Clock
	locks    *courseLocks
	metrics  Metrics
	log      *zap.Logger
}

// Submit records sub when the course has an active window, the code matches
// and the window is open. A rejected submission writes nothing.
func (e *Engine) Submit(ctx context.Context, sub Submission) (Record, error) {
	rec, err := e.submit(ctx, sub)
	result := resultOf(err)
	e.metrics.Submission(result)
	if err != nil {
		e.log.Debug("submission rejected",
			zap.String("course_id", sub.CourseID),
			zap.String("student_id", sub.StudentID),
			zap.String("result", result),
			zap.Error(err),
		)
		return Record{}, err
	}
	e.log.Debug("submission recorded",
		zap.String("course_id", rec.CourseID),
		zap.String("session_id", rec.SessionID),
		zap.String("student_id", rec.StudentID),
		zap.String("status", string(rec.Status)),
	)
	return rec, nil
}

func (e *Engine) submit(ctx context.Context, sub Submission) (Record, error) {
	if strings.TrimSpace(sub.StudentID) == "" {
		return Record{}, errors.Wrap(ErrInvalidRequest, "student id required")
	}
	if sub.Status != StatusPresent && sub.Status != StatusLate {
		return Record{}, errors.Wrapf(ErrInvalidStatus, "students may submit %q or %q, got %q", StatusPresent, StatusLate, sub.Status)
	}
	if sub.MarkedBy == "" {
		sub.MarkedBy = sub.StudentID
	}

	mu := e.locks.get(sub.CourseID)
	mu.RLock()
	defer mu.RUnlock()

	w, err := e.registry.ActiveWindow(ctx, sub.CourseID)
	if err != nil {
		return Record{}, err
	}
	if sub.Code != w.Code {
		return Record{}, ErrWrongCode
	}
	now := e.clock.Now()
	if phase := w.PhaseAt(now); phase != PhaseOpen {
		return Record{}, &WindowClosedError{Phase: phase, Start: w.Start, End: w.End, At: TimeOfDayOf(now)}
	}
	return e.ledger.Upsert(ctx, w, sub.StudentID, sub.Status, sub.MarkedBy)
}

// Override sets any status for a student in the course's active session,
// bypassing the code and the time bounds.
func (e *Engine) Override(ctx context.Context, courseID, studentID string, status Status, markedBy string) (Record, error) {
	if strings.TrimSpace(studentID) == "" {
		return Record{}, errors.Wrap(ErrInvalidRequest, "student id required")
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return Record{}, err
	}
	mu := e.locks.get(courseID)
	mu.RLock()
	defer mu.RUnlock()

	w, err := e.registry.ActiveWindow(ctx, courseID)
	if err != nil {
		return Record{}, err
	}
	rec, err := e.ledger.Upsert(ctx, w, studentID, status, markedBy)
	if err != nil {
		return Record{}, err
	}
	e.log.Info("attendance overridden",
		zap.String("course_id", courseID),
		zap.String("student_id", studentID),
		zap.String("status", string(status)),
		zap.String("marked_by", markedBy),
	)
	return rec, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultRecorded
	case errors.Is(err, ErrNoActiveSession):
		return ResultNoSession
	case errors.Is(err, ErrWrongCode):
		return ResultWrongCode
	case errors.Is(err, ErrWindowNotYetOpen):
		return ResultNotYetOpen
	case errors.Is(err, ErrWindowAlreadyClosed):
		return ResultClosed
	case errors.Is(err, ErrStorageUnavailable):
		return ResultStorageFailed
	}
	return ResultInvalid
}
