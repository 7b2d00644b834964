package attendance

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Service wires the attendance components around one Store and Catalog.
// It is the only entry point callers need; construct it once per process.
type Service struct {
	Codes      *CodeGenerator
	Registry   *Registry
	Ledger     *Ledger
	Engine     *Engine
	Reconciler *Reconciler
	Stats      *Stats

	catalog Catalog
	clock   Clock
	log     *zap.Logger
}

type options struct {
	clock   Clock
	source  rand.Source
	log     *zap.Logger
	metrics Metrics
}

type Option func(*options)

func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithCodeSource seeds the code generator, for deterministic codes.
func WithCodeSource(src rand.Source) Option { return func(o *options) { o.source = src } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func WithMetrics(m Metrics) Option { return func(o *options) { o.metrics = m } }

// NewService builds a Service backed by store and catalog.
func NewService(store Store, catalog Catalog, opts ...Option) *Service {
	o := options{clock: SystemClock, log: zap.NewNop(), metrics: nopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	locks := newCourseLocks()
	codes := NewCodeGenerator(o.source)
	registry := &Registry{store: store, codes: codes, clock: o.clock, locks: locks, metrics: o.metrics, log: o.log}
	ledger := &Ledger{store: store, clock: o.clock}
	return &Service{
		Codes:      codes,
		Registry:   registry,
		Ledger:     ledger,
		Engine:     &Engine{registry: registry, ledger: ledger, clock: o.clock, locks: locks, metrics: o.metrics, log: o.log},
		Reconciler: &Reconciler{registry: registry, ledger: ledger, clock: o.clock, locks: locks, metrics: o.metrics, log: o.log},
		Stats:      &Stats{registry: registry, ledger: ledger},
		catalog:    catalog,
		clock:      o.clock,
		log:        o.log,
	}
}

// Now reads the service clock.
func (s *Service) Now() time.Time { return s.clock.Now() }

// CanManage reports whether a may open windows and read reports for courseID.
func CanManage(a Actor, courseID string) bool {
	_, ok := teacherOf(a, courseID)
	return ok
}

// OpenWindow opens a window on behalf of a teacher of req.CourseID. When the
// catalog lists lessons for the course, req.LessonID must name one of them so
// the session counts towards percentages.
func (s *Service) OpenWindow(ctx context.Context, a Actor, req OpenRequest) (Window, error) {
	t, ok := teacherOf(a, req.CourseID)
	if !ok {
		return Window{}, ErrForbidden
	}
	lessons, err := s.lessons(ctx, req.CourseID)
	if err != nil {
		return Window{}, err
	}
	req.LessonID = strings.TrimSpace(req.LessonID)
	if len(lessons) > 0 {
		if req.LessonID == "" {
			return Window{}, errors.Wrapf(ErrInvalidRequest, "lesson id required, %s has lessons %s",
				req.CourseID, strings.Join(lessons, ", "))
		}
		if !contains(lessons, req.LessonID) {
			return Window{}, errors.Wrapf(ErrInvalidRequest, "%q is not a lesson of %s", req.LessonID, req.CourseID)
		}
	}
	req.OpenedBy = t.ID
	return s.Registry.OpenWindow(ctx, req)
}

// ActiveWindow returns the course's active window. Only teachers of the
// course see the code.
func (s *Service) ActiveWindow(ctx context.Context, a Actor, courseID string) (Window, error) {
	w, err := s.Registry.ActiveWindow(ctx, courseID)
	if err != nil {
		return Window{}, err
	}
	if !CanManage(a, courseID) {
		w = w.Redacted()
	}
	return w, nil
}

// Submit marks the calling student in courseID's active session.
func (s *Service) Submit(ctx context.Context, a Actor, courseID, code string, status Status) (Record, error) {
	st, ok := a.(Student)
	if !ok {
		return Record{}, ErrForbidden
	}
	roster, err := s.roster(ctx, courseID)
	if err != nil {
		return Record{}, err
	}
	if !contains(roster, st.ID) {
		return Record{}, errors.Wrapf(ErrForbidden, "student %s is not enrolled in %s", st.ID, courseID)
	}
	return s.Engine.Submit(ctx, Submission{
		CourseID:  courseID,
		Code:      code,
		StudentID: st.ID,
		Status:    status,
		MarkedBy:  st.ID,
	})
}

// Override lets a teacher of courseID set any status for a student.
func (s *Service) Override(ctx context.Context, a Actor, courseID, studentID string, status Status) (Record, error) {
	t, ok := teacherOf(a, courseID)
	if !ok {
		return Record{}, ErrForbidden
	}
	return s.Engine.Override(ctx, courseID, studentID, status, t.ID)
}

// Reconcile marks unmarked enrolled students absent if the window closed.
func (s *Service) Reconcile(ctx context.Context, courseID string) (int, error) {
	roster, err := s.roster(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return s.Reconciler.Reconcile(ctx, courseID, roster)
}

// ReconcileClosed reconciles every course whose active window has closed.
// Failures of one course do not stop the others; the first error is returned.
func (s *Service) ReconcileClosed(ctx context.Context) (int, error) {
	windows, err := s.Registry.store.ListActiveWindows(ctx)
	if err != nil {
		return 0, storageErr("list active windows", err)
	}
	now := s.clock.Now()
	var (
		total    int
		firstErr error
	)
	for _, w := range windows {
		if !w.IsClosed(now) {
			continue
		}
		n, err := s.Reconcile(ctx, w.CourseID)
		total += n
		if err != nil {
			s.log.Error("reconcile failed", zap.String("course_id", w.CourseID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return total, firstErr
}

// Percentage is the share of the course's lessons studentID attended.
func (s *Service) Percentage(ctx context.Context, courseID, studentID string) (float64, error) {
	lessons, err := s.lessons(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return s.Stats.Percentage(ctx, courseID, studentID, lessons)
}

// CourseSummary reconciles the course and summarizes its current session.
func (s *Service) CourseSummary(ctx context.Context, courseID string) (Summary, error) {
	roster, err := s.roster(ctx, courseID)
	if err != nil {
		return Summary{}, err
	}
	if _, err := s.Reconciler.Reconcile(ctx, courseID, roster); err != nil {
		return Summary{}, err
	}
	return s.Stats.CourseSummary(ctx, courseID, roster)
}

// ReportRow is a display projection of one roster student. Status is empty
// for a student without a record.
type ReportRow struct {
	StudentID  string    `json:"student_id"`
	Status     Status    `json:"status,omitempty"`
	MarkedBy   string    `json:"marked_by,omitempty"`
	MarkedAt   time.Time `json:"marked_at,omitempty"`
	Percentage float64   `json:"percentage"`
}

// Report is a reconciled view of a course's current session.
type Report struct {
	Window      *Window     `json:"window,omitempty"`
	Summary     Summary     `json:"summary"`
	Rows        []ReportRow `json:"rows"`
	Lessons     int         `json:"lessons"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// Report reconciles the course and builds rows sorted by student id.
func (s *Service) Report(ctx context.Context, courseID string) (Report, error) {
	roster, err := s.roster(ctx, courseID)
	if err != nil {
		return Report{}, err
	}
	lessons, err := s.lessons(ctx, courseID)
	if err != nil {
		return Report{}, err
	}
	if _, err := s.Reconciler.Reconcile(ctx, courseID, roster); err != nil {
		return Report{}, err
	}
	sum, err := s.Stats.CourseSummary(ctx, courseID, roster)
	if err != nil {
		return Report{}, err
	}
	all, err := s.Ledger.ListByCourse(ctx, courseID)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Summary: sum, Lessons: len(lessons), GeneratedAt: s.clock.Now().UTC()}
	current := map[string]Record{}
	if w, err := s.Registry.ActiveWindow(ctx, courseID); err == nil {
		rep.Window = &w
		for _, r := range all {
			if r.SessionID == w.ID {
				current[r.StudentID] = r
			}
		}
	} else if !errors.Is(err, ErrNoActiveSession) {
		return Report{}, err
	}

	ids := uniqueSorted(roster)
	rep.Rows = make([]ReportRow, 0, len(ids))
	for _, id := range ids {
		row := ReportRow{StudentID: id, Percentage: PercentageOf(all, id, lessons)}
		if r, ok := current[id]; ok {
			row.Status = r.Status
			row.MarkedBy = r.MarkedBy
			row.MarkedAt = r.MarkedAt
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

func (s *Service) roster(ctx context.Context, courseID string) ([]string, error) {
	roster, err := s.catalog.EnrolledStudents(ctx, courseID)
	if err != nil {
		return nil, storageErr("load roster", err)
	}
	return roster, nil
}

func (s *Service) lessons(ctx context.Context, courseID string) ([]string, error) {
	lessons, err := s.catalog.Lessons(ctx, courseID)
	if err != nil {
		return nil, storageErr("load lessons", err)
	}
	return lessons, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
