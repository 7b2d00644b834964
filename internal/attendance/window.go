package attendance

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout used for session dates on the wire and in storage.
const DateLayout = "2006-01-02"

const day = TimeOfDay(24 * 60 * 60)

// TimeOfDay is a wall-clock time in seconds since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidTimeFormat
	}
	return Clock24(t.Hour(), t.Minute()), nil
}

// Clock24 builds a TimeOfDay from hour and minute.
func Clock24(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60)
}

// TimeOfDayOf returns the time-of-day part of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(h*3600 + m*60 + s)
}

// Valid reports whether t falls within one day, [00:00, 24:00).
func (t TimeOfDay) Valid() bool { return t >= 0 && t < day }

// String formats t as HH:MM, or HH:MM:SS when seconds are set.
func (t TimeOfDay) String() string {
	h, m, s := int(t)/3600, int(t)%3600/60, int(t)%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// MarshalText encodes t as its String form.
func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText accepts HH:MM.
func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Phase is where a moment falls relative to a window's bounds.
type Phase int

const (
	PhasePending Phase = iota
	PhaseOpen
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "not_yet_open"
	case PhaseOpen:
		return "open"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// Window is an attendance window for one course session. Its ID doubles as
// the session id that scopes ledger records.
type Window struct {
	ID          string    `json:"session_id"`
	CourseID    string    `json:"course_id"`
	LessonID    string    `json:"lesson_id"`
	SessionDate time.Time `json:"session_date"`
	Start       TimeOfDay `json:"start"`
	End         TimeOfDay `json:"end"`
	Code        string    `json:"code,omitempty"`
	Active      bool      `json:"active"`
	OpenedBy    string    `json:"opened_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// PhaseAt compares only the time of day of now against the bounds; the
// session date is not consulted, so an active window reopens daily.
func (w Window) PhaseAt(now time.Time) Phase {
	tod := TimeOfDayOf(now)
	switch {
	case tod < w.Start:
		return PhasePending
	case tod > w.End:
		return PhaseClosed
	}
	return PhaseOpen
}

// IsOpen reports whether submissions are accepted at now.
func (w Window) IsOpen(now time.Time) bool {
	return w.Active && w.PhaseAt(now) == PhaseOpen
}

// IsClosed reports whether now is past the end of the window.
func (w Window) IsClosed(now time.Time) bool {
	return TimeOfDayOf(now) > w.End
}

// Date returns the session date as YYYY-MM-DD.
func (w Window) Date() string { return w.SessionDate.Format(DateLayout) }

// Redacted returns a copy without the code, for actors who must not see it.
func (w Window) Redacted() Window {
	w.Code = ""
	return w
}

// ParseDate parses a YYYY-MM-DD session date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidTimeFormat
	}
	return d, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
