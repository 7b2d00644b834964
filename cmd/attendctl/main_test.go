package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/config"
)

type cliEnv struct {
	t   *testing.T
	dir string
	now time.Time
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return &cliEnv{t: t, dir: dir, now: time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC)}
}

func (e *cliEnv) run(args ...string) (string, error) {
	var out bytes.Buffer
	base := []string{
		"--config", filepath.Join(e.dir, "attendctl.toml"),
		"--db", filepath.Join(e.dir, "attendance.db"),
		"--teacher", "prof",
	}
	err := run(context.Background(), &out, func() time.Time { return e.now }, append(base, args...))
	return out.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("attendctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func field(out, name string) string {
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func TestSessionLifecycle(t *testing.T) {
	e := newCLIEnv(t)

	if out := e.mustRun("course", "enroll", "CS101", "alice", "bob"); !strings.Contains(out, "enrolled 2") {
		t.Fatalf("enroll output %q", out)
	}
	e.mustRun("course", "lessons", "CS101", "l1", "l2")
	if out := e.mustRun("-v", "course", "show", "CS101"); !strings.Contains(out, "alice, bob") || !strings.Contains(out, "l1, l2") {
		t.Fatalf("show output %q", out)
	}

	out := e.mustRun("open", "CS101", "--lesson", "l1", "--date", "2024-03-04", "--start", "10:00", "--end", "10:15")
	code := field(out, "code")
	if len(code) != attendance.CodeLength {
		t.Fatalf("open printed no code: %q", out)
	}
	if field(out, "window") != "10:00-10:15" {
		t.Fatalf("open output %q", out)
	}

	if out := e.mustRun("submit", "CS101", "alice", code); !strings.Contains(out, "alice marked present") {
		t.Fatalf("submit output %q", out)
	}
	if _, err := e.run("submit", "CS101", "bob", "WRONG1"); err == nil {
		t.Fatal("wrong code accepted")
	}

	png := filepath.Join(e.dir, "code.png")
	e.mustRun("qr", "CS101", "--out", png)
	img, err := os.ReadFile(png)
	if err != nil || !bytes.HasPrefix(img, []byte("\x89PNG")) {
		t.Fatalf("qr file: %v", err)
	}

	e.now = e.now.Add(15 * time.Minute)
	out = e.mustRun("report", "CS101")
	if !strings.Contains(out, "2024-03-04") || !strings.Contains(out, "absent") {
		t.Fatalf("report output %q", out)
	}
	if out := e.mustRun("reconcile", "CS101"); !strings.Contains(out, "marked 0") {
		t.Fatalf("second reconcile output %q", out)
	}

	if out := e.mustRun("override", "CS101", "bob", "excused"); !strings.Contains(out, "bob set to excused by prof") {
		t.Fatalf("override output %q", out)
	}

	xlsx := filepath.Join(e.dir, "report.xlsx")
	e.mustRun("export", "CS101", "--out", xlsx)
	if st, err := os.Stat(xlsx); err != nil || st.Size() == 0 {
		t.Fatalf("export: %v", err)
	}
}

func TestOpenRequiresTeacher(t *testing.T) {
	e := newCLIEnv(t)
	var out bytes.Buffer
	err := run(context.Background(), &out, func() time.Time { return e.now }, []string{
		"--config", filepath.Join(e.dir, "attendctl.toml"),
		"--db", filepath.Join(e.dir, "attendance.db"),
		"open", "CS101", "--start", "10:00", "--end", "10:15",
	})
	if err == nil || !strings.Contains(err.Error(), "no teacher configured") {
		t.Fatalf("err = %v", err)
	}
}

func TestConfigCommandWritesDefaults(t *testing.T) {
	e := newCLIEnv(t)
	path := filepath.Join(e.dir, "attendctl.toml")
	out := e.mustRun("config")
	if strings.TrimSpace(out) != path {
		t.Fatalf("config printed %q, want %q", out, path)
	}
	cfg, err := config.LoadCLI(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Teacher != "prof" || cfg.Database != filepath.Join(e.dir, "attendance.db") {
		t.Fatalf("saved config %+v", cfg)
	}
}

func TestTokenCommand(t *testing.T) {
	e := newCLIEnv(t)
	t.Setenv("JWT_SIGNING_KEY", "cli-test-signing-key-0123456789")

	out := e.mustRun("token", "prof", "--role", "teacher", "--courses", "CS101,CS102")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	claims, err := auth.Parse(strings.TrimSpace(out), cfg.JWTSigningKey, cfg.JWTIssuer)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	a, err := claims.Actor()
	if err != nil || !attendance.CanManage(a, "CS102") {
		t.Fatalf("actor = %+v, %v", a, err)
	}

	if _, err := e.run("token", "x", "--role", "admin"); err == nil {
		t.Fatal("unknown role accepted")
	}
}
