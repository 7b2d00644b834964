package attendance

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// staticCatalog is a map-backed Catalog.
type staticCatalog struct {
	students map[string][]string
	lessons  map[string][]string
	err      error
}

func (c staticCatalog) EnrolledStudents(_ context.Context, courseID string) ([]string, error) {
	return c.students[courseID], c.err
}

func (c staticCatalog) Lessons(_ context.Context, courseID string) ([]string, error) {
	return c.lessons[courseID], c.err
}

type fixture struct {
	t     *testing.T
	svc   *Service
	store *MemoryStore
	now   time.Time
}

func newFixture(t *testing.T, cat Catalog) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		store: NewMemoryStore(),
		now:   time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, cat,
		WithClock(ClockFunc(func() time.Time { return f.now })),
		WithCodeSource(rand.NewSource(1)),
		WithLogger(zap.NewNop()),
	)
	return f
}

func defaultCatalog() staticCatalog {
	return staticCatalog{
		students: map[string][]string{"C1": {"S1", "S2"}},
		lessons:  map[string][]string{"C1": {"L1", "L2"}},
	}
}

func (f *fixture) at(hour, minute int) {
	f.now = time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

// putWindow stores an active window with a known code, bypassing OpenWindow.
func (f *fixture) putWindow(courseID, lessonID, code string, start, end TimeOfDay) Window {
	f.t.Helper()
	w := Window{
		ID:          courseID + "-" + lessonID,
		CourseID:    courseID,
		LessonID:    lessonID,
		SessionDate: dateOnly(f.now),
		Start:       start,
		End:         end,
		Code:        code,
		Active:      true,
		CreatedAt:   f.now,
	}
	if err := f.store.SaveWindow(context.Background(), w); err != nil {
		f.f(err)
	}
	return w
}

func (f *fixture) submit(courseID, studentID, code string, status Status) (Record, error) {
	return f.svc.Engine.Submit(context.Background(), Submission{
		CourseID: courseID, Code: code, StudentID: studentID, Status: status,
	})
}

func (f *fixture) records(courseID string) []Record {
	f.t.Helper()
	recs, err := f.store.LoadRecordsByCourse(context.Background(), courseID)
	if err != nil {
		f.f(err)
	}
	return recs
}

func (f *fixture) f(err error) {
	f.t.Helper()
	f.t.Fatalf("unexpected error: %v", err)
}

// failingStore fails every call once broken is set.
type failingStore struct {
	*MemoryStore
	broken bool
}

var errDiskGone = errors.New("disk gone")

func (s *failingStore) SaveRecord(ctx context.Context, r Record) error {
	if s.broken {
		return errDiskGone
	}
	return s.MemoryStore.SaveRecord(ctx, r)
}

func (s *failingStore) SaveRecordIfAbsent(ctx context.Context, r Record) (bool, error) {
	if s.broken {
		return false, errDiskGone
	}
	return s.MemoryStore.SaveRecordIfAbsent(ctx, r)
}

func (s *failingStore) LoadActiveWindow(ctx context.Context, courseID string) (Window, error) {
	if s.broken {
		return Window{}, errDiskGone
	}
	return s.MemoryStore.LoadActiveWindow(ctx, courseID)
}

// submitConcurrently enrolls n students, has each submit from its own
// goroutine and checks that every submission left exactly one record.
func submitConcurrently(t *testing.T, st Store, n int) {
	t.Helper()
	ctx := context.Background()
	roster := make([]string, n)
	for i := range roster {
		roster[i] = fmt.Sprintf("S%03d", i)
	}
	now := time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC)
	svc := NewService(st, staticCatalog{
		students: map[string][]string{"C1": roster},
		lessons:  map[string][]string{"C1": {"L1"}},
	}, WithClock(ClockFunc(func() time.Time { return now })))

	w, err := svc.OpenWindow(ctx, Teacher{ID: "T1", Courses: []string{"C1"}},
		OpenRequest{CourseID: "C1", LessonID: "L1", Start: Clock24(10, 0), End: Clock24(10, 15)})
	if err != nil {
		t.Fatalf("OpenWindow: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range roster {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := svc.Submit(ctx, Student{ID: id}, "C1", w.Code, StatusPresent); err != nil {
				errs <- errors.Wrap(err, id)
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("submit: %v", err)
	}

	recs, err := svc.Ledger.ListBySession(ctx, "C1", w.ID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(recs) != n {
		t.Fatalf("records = %d, want %d", len(recs), n)
	}
	seen := make(map[string]bool, n)
	for _, r := range recs {
		if seen[r.StudentID] || r.Status != StatusPresent || r.MarkedBy != r.StudentID {
			t.Fatalf("unexpected record %+v", r)
		}
		seen[r.StudentID] = true
	}
}
