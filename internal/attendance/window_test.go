package attendance

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in   string
		want TimeOfDay
		err  bool
	}{
		{"10:00", Clock24(10, 0), false},
		{" 23:59 ", Clock24(23, 59), false},
		{"00:00", 0, false},
		{"24:00", 0, true},
		{"9am", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.err {
			if !errors.Is(err, ErrInvalidTimeFormat) {
				t.Fatalf("ParseTimeOfDay(%q): err = %v, want ErrInvalidTimeFormat", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseTimeOfDay(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestTimeOfDayString(t *testing.T) {
	if s := Clock24(9, 5).String(); s != "09:05" {
		t.Fatalf("got %q", s)
	}
	if s := (Clock24(9, 5) + 7).String(); s != "09:05:07" {
		t.Fatalf("got %q", s)
	}
}

func TestWindowPhaseBoundsAreInclusive(t *testing.T) {
	w := Window{Start: Clock24(10, 0), End: Clock24(10, 15), Active: true}
	at := func(h, m, s int) time.Time { return time.Date(2024, 3, 4, h, m, s, 0, time.UTC) }

	cases := []struct {
		now  time.Time
		want Phase
	}{
		{at(9, 59, 59), PhasePending},
		{at(10, 0, 0), PhaseOpen},
		{at(10, 7, 30), PhaseOpen},
		{at(10, 15, 0), PhaseOpen},
		{at(10, 15, 1), PhaseClosed},
	}
	for _, tc := range cases {
		if got := w.PhaseAt(tc.now); got != tc.want {
			t.Fatalf("PhaseAt(%s) = %s, want %s", tc.now.Format("15:04:05"), got, tc.want)
		}
	}
	if w.IsClosed(at(10, 15, 0)) || !w.IsClosed(at(10, 15, 1)) {
		t.Fatalf("IsClosed boundary wrong")
	}

	w.Active = false
	if w.IsOpen(at(10, 5, 0)) {
		t.Fatalf("inactive window must not be open")
	}
}

func TestWindowRedacted(t *testing.T) {
	w := Window{Code: "AB12CD"}
	if w.Redacted().Code != "" || w.Code != "AB12CD" {
		t.Fatalf("Redacted must clear the copy only")
	}
}

func TestWindowClosedErrorMatches(t *testing.T) {
	pending := &WindowClosedError{Phase: PhasePending}
	closed := &WindowClosedError{Phase: PhaseClosed}
	if !errors.Is(pending, ErrWindowNotYetOpen) || errors.Is(pending, ErrWindowAlreadyClosed) {
		t.Fatalf("pending error matches wrong sentinel")
	}
	if !errors.Is(closed, ErrWindowAlreadyClosed) || errors.Is(closed, ErrWindowNotYetOpen) {
		t.Fatalf("closed error matches wrong sentinel")
	}
}
