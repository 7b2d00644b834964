package attendance

import (
	"context"
	"testing"
)

func TestPercentageOf(t *testing.T) {
	recs := []Record{
		{StudentID: "S1", LessonID: "L1", Status: StatusPresent},
		{StudentID: "S1", LessonID: "L2", Status: StatusLate},
		{StudentID: "S1", LessonID: "L3", Status: StatusPresent},
		{StudentID: "S1", LessonID: "L3", SessionID: "again", Status: StatusPresent},
		{StudentID: "S1", LessonID: "other", Status: StatusPresent},
		{StudentID: "S2", LessonID: "L1", Status: StatusPresent},
	}
	cases := []struct {
		name    string
		student string
		lessons []string
		want    float64
	}{
		{"no lessons", "S1", nil, 0},
		{"present in all", "S2", []string{"L1"}, 100},
		{"late does not count", "S1", []string{"L1", "L2", "L3", "L4"}, 50},
		{"unknown student", "S9", []string{"L1", "L2"}, 0},
	}
	for _, tc := range cases {
		if got := PercentageOf(recs, tc.student, tc.lessons); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	recs := []Record{
		{StudentID: "S1", Status: StatusPresent},
		{StudentID: "S2", Status: StatusLate},
		{StudentID: "S3", Status: StatusAbsent},
		{StudentID: "S4", Status: StatusExcused},
		{StudentID: "outsider", Status: StatusPresent},
	}
	sum := Summarize(recs, []string{"S1", "S2", "S3", "S4", "S5", "S1"})
	want := Summary{Present: 1, Late: 1, Absent: 1, Excused: 1, Unmarked: 1, Total: 5, AttendanceRate: 60}
	if sum != want {
		t.Fatalf("got %+v, want %+v", sum, want)
	}
	if empty := Summarize(nil, nil); empty.AttendanceRate != 0 || empty.Total != 0 {
		t.Fatalf("empty roster: %+v", empty)
	}
}

func TestPercentageAcrossSessions(t *testing.T) {
	cat := staticCatalog{
		students: map[string][]string{"C1": {"S1"}},
		lessons:  map[string][]string{"C1": {"L1", "L2", "L3"}},
	}
	f := newFixture(t, cat)
	ctx := context.Background()
	for _, lesson := range []string{"L1", "L2", "L3"} {
		f.putWindow("C1", lesson, "CODE"+lesson[1:]+"X", Clock24(10, 0), Clock24(10, 15))
		if _, err := f.submit("C1", "S1", "CODE"+lesson[1:]+"X", StatusPresent); err != nil {
			t.Fatalf("submit %s: %v", lesson, err)
		}
	}
	pct, err := f.svc.Percentage(ctx, "C1", "S1")
	if err != nil || pct != 100 {
		t.Fatalf("Percentage = %v, %v; want 100", pct, err)
	}
}

func TestCourseSummaryWithoutWindow(t *testing.T) {
	f := newFixture(t, defaultCatalog())
	sum, err := f.svc.CourseSummary(context.Background(), "C1")
	if err != nil {
		t.Fatalf("CourseSummary: %v", err)
	}
	if sum.Total != 2 || sum.Unmarked != 2 || sum.SessionID != "" || sum.CourseID != "C1" {
		t.Fatalf("unexpected summary %+v", sum)
	}
}
