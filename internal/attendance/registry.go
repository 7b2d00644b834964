package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxCodeAttempts = 8

// OpenRequest describes a window a teacher wants to open.
type OpenRequest struct {
	CourseID string
	LessonID string
	Date     time.Time
	Start    TimeOfDay
	End      TimeOfDay
	OpenedBy string
}

// Registry owns attendance windows and keeps at most one active per course.
type Registry struct {
	store   Store
	codes   *CodeGenerator
	clock   Clock
	locks   *courseLocks
	metrics Metrics
	log     *zap.Logger
}

// OpenWindow validates req, deactivates the course's current window and
// stores a new active one with a fresh code.
func (r *Registry) OpenWindow(ctx context.Context, req OpenRequest) (Window, error) {
	req.CourseID = strings.TrimSpace(req.CourseID)
	if req.CourseID == "" {
		return Window{}, errors.Wrap(ErrInvalidRequest, "course id required")
	}
	if !req.Start.Valid() || !req.End.Valid() {
		return Window{}, ErrInvalidTimeFormat
	}
	if req.Start > req.End {
		return Window{}, errors.Wrapf(ErrInvalidTimeRange, "start %s is after end %s", req.Start, req.End)
	}
	now := r.clock.Now()
	today := dateOnly(now)
	date := today
	if !req.Date.IsZero() {
		date = dateOnly(req.Date)
	}
	if date.After(today) {
		return Window{}, errors.Wrapf(ErrInvalidTimeRange, "session date %s is in the future", date.Format(DateLayout))
	}

	mu := r.locks.get(req.CourseID)
	mu.Lock()
	defer mu.Unlock()

	code, err := r.freshCode(ctx, req.CourseID)
	if err != nil {
		return Window{}, err
	}
	w := Window{
		ID:          uuid.NewString(),
		CourseID:    req.CourseID,
		LessonID:    strings.TrimSpace(req.LessonID),
		SessionDate: date,
		Start:       req.Start,
		End:         req.End,
		Code:        code,
		Active:      true,
		OpenedBy:    req.OpenedBy,
		CreatedAt:   now.UTC(),
	}
	if w.LessonID == "" {
		w.LessonID = w.ID
	}
	if err := r.store.SaveWindow(ctx, w); err != nil {
		return Window{}, storageErr("save window", err)
	}
	r.metrics.WindowOpened(w.CourseID)
	r.log.Info("attendance window opened",
		zap.String("course_id", w.CourseID),
		zap.String("session_id", w.ID),
		zap.String("date", w.Date()),
		zap.Stringer("start", w.Start),
		zap.Stringer("end", w.End),
	)
	return w, nil
}

// ActiveWindow returns the course's active window or ErrNoActiveSession.
func (r *Registry) ActiveWindow(ctx context.Context, courseID string) (Window, error) {
	w, err := r.store.LoadActiveWindow(ctx, courseID)
	if errors.Is(err, ErrNotFound) {
		return Window{}, ErrNoActiveSession
	}
	if err != nil {
		return Window{}, storageErr("load active window", err)
	}
	return w, nil
}

// freshCode avoids handing out a code that another course's active window
// still uses. After maxCodeAttempts it settles for the last candidate.
func (r *Registry) freshCode(ctx context.Context, courseID string) (string, error) {
	active, err := r.store.ListActiveWindows(ctx)
	if err != nil {
		return "", storageErr("list active windows", err)
	}
	taken := make(map[string]struct{}, len(active))
	for _, w := range active {
		if w.CourseID != courseID {
			taken[w.Code] = struct{}{}
		}
	}
	var code string
	for i := 0; i < maxCodeAttempts; i++ {
		code = r.codes.Generate()
		if _, dup := taken[code]; !dup {
			return code, nil
		}
	}
	r.log.Warn("reusing session code held by another course", zap.String("course_id", courseID))
	return code, nil
}
