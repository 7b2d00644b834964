package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestOpenWindowValidation(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	ctx := context.Background()

	cases := []struct {
		name string
		req  OpenRequest
		want error
	}{
		{"empty course", OpenRequest{CourseID: " ", Start: Clock24(10, 0), End: Clock24(10, 15)}, ErrInvalidRequest},
		{"start after end", OpenRequest{CourseID: "C1", Start: Clock24(11, 0), End: Clock24(10, 15)}, ErrInvalidTimeRange},
		{"out of range", OpenRequest{CourseID: "C1", Start: Clock24(10, 0), End: Clock24(25, 0)}, ErrInvalidTimeFormat},
		{"future date", OpenRequest{CourseID: "C1", Start: Clock24(10, 0), End: Clock24(10, 15), Date: f.now.AddDate(0, 0, 1)}, ErrInvalidTimeRange},
	}
	for _, tc := range cases {
		if _, err := f.svc.Registry.OpenWindow(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
	if _, err := f.svc.Registry.ActiveWindow(ctx, "C1"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("rejected requests must not create a window, got %v", err)
	}
}

func TestOpenWindowDefaults(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	w, err := f.svc.Registry.OpenWindow(context.Background(), OpenRequest{CourseID: "C1", Start: Clock24(10, 0), End: Clock24(10, 0)})
	if err != nil {
		t.Fatalf("OpenWindow: %v", err)
	}
	if w.Date() != "2024-03-04" {
		t.Fatalf("date defaults to today, got %s", w.Date())
	}
	if w.LessonID != w.ID {
		t.Fatalf("lesson id defaults to window id, got %q", w.LessonID)
	}
	if !w.Active || len(w.Code) != CodeLength {
		t.Fatalf("unexpected window %+v", w)
	}
	past, err := f.svc.Registry.OpenWindow(context.Background(), OpenRequest{
		CourseID: "C1", Start: Clock24(8, 0), End: Clock24(9, 0), Date: f.now.AddDate(0, 0, -7),
	})
	if err != nil || past.Date() != "2024-02-26" {
		t.Fatalf("past date should be accepted: %+v, %v", past, err)
	}
}

func TestOpeningDeactivatesPrevious(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	ctx := context.Background()
	first, err := f.svc.Registry.OpenWindow(ctx, OpenRequest{CourseID: "C1", Start: Clock24(10, 0), End: Clock24(10, 15)})
	if err != nil {
		t.Fatalf("OpenWindow: %v", err)
	}
	second, err := f.svc.Registry.OpenWindow(ctx, OpenRequest{CourseID: "C1", Start: Clock24(11, 0), End: Clock24(11, 15)})
	if err != nil {
		t.Fatalf("OpenWindow: %v", err)
	}
	active, err := f.svc.Registry.ActiveWindow(ctx, "C1")
	if err != nil || active.ID != second.ID {
		t.Fatalf("active = %+v, %v; want %s", active, err, second.ID)
	}
	if f.store.windows[first.ID].Active {
		t.Fatalf("previous window still active")
	}
	all, _ := f.store.ListActiveWindows(ctx)
	if len(all) != 1 {
		t.Fatalf("expected exactly one active window, got %d", len(all))
	}
}

func TestConcurrentOpenKeepsOneActive(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Registry.OpenWindow(ctx, OpenRequest{CourseID: "C1", Start: Clock24(10, 0), End: Clock24(10, 15)}); err != nil {
				t.Errorf("OpenWindow: %v", err)
			}
		}()
	}
	wg.Wait()

	n := 0
	for _, w := range f.store.windows {
		if w.Active {
			n++
		}
	}
	if n != 1 || len(f.store.windows) != 20 {
		t.Fatalf("active windows = %d of %d, want 1 of 20", n, len(f.store.windows))
	}
}

func TestFreshCodeAvoidsOtherCourses(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	ctx := context.Background()
	seen := map[string]string{}
	for _, course := range []string{"C1", "C2", "C3", "C4", "C5"} {
		w, err := f.svc.Registry.OpenWindow(ctx, OpenRequest{CourseID: course, Start: Clock24(10, 0), End: Clock24(10, 15)})
		if err != nil {
			t.Fatalf("OpenWindow(%s): %v", course, err)
		}
		if other, dup := seen[w.Code]; dup {
			t.Fatalf("code %s reused by %s and %s", w.Code, other, course)
		}
		seen[w.Code] = course
	}
}

func TestWindowOpenedAtMidnightBoundary(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	f.now = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.Registry.OpenWindow(context.Background(), OpenRequest{CourseID: "C1", Start: 0, End: Clock24(23, 59)}); err != nil {
		t.Fatalf("full-day window: %v", err)
	}
}
