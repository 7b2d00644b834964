// Package main provides attendctl, a command line front end for running
// attendance against a local SQLite database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"classattend/internal/attendance"
	"classattend/internal/catalog"
	"classattend/internal/config"
	"classattend/internal/logger"
	"classattend/internal/store"
)

func main() {
	if err := run(context.Background(), os.Stdout, time.Now, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// run executes one command line and closes the database afterwards.
func run(ctx context.Context, out io.Writer, now func() time.Time, args []string) error {
	a := &app{out: out, now: now}
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

// app holds state shared by all commands.
type app struct {
	out        io.Writer
	now        func() time.Time
	configPath string
	dbPath     string
	teacher    string
	verbose    bool

	cfg     config.CLI
	db      *store.DB
	catalog *catalog.SQL
	svc     *attendance.Service
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "attendctl",
		Short:             "Run class attendance from the terminal",
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
	}
	rootCmd.SetOut(a.out)
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultCLIConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default from config)")
	rootCmd.PersistentFlags().StringVar(&a.teacher, "teacher", "", "teacher id recorded on windows and overrides (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log service events to stderr")

	rootCmd.AddCommand(a.newConfigCmd())
	rootCmd.AddCommand(a.newCourseCmd())
	rootCmd.AddCommand(a.newOpenCmd())
	rootCmd.AddCommand(a.newQRCmd())
	rootCmd.AddCommand(a.newSubmitCmd())
	rootCmd.AddCommand(a.newOverrideCmd())
	rootCmd.AddCommand(a.newReconcileCmd())
	rootCmd.AddCommand(a.newReportCmd())
	rootCmd.AddCommand(a.newExportCmd())
	rootCmd.AddCommand(a.newTokenCmd())
	return rootCmd
}

// open loads the config file and opens the database. Flags win over the file.
func (a *app) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadCLI(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database = a.dbPath
	}
	if a.teacher != "" {
		cfg.Teacher = a.teacher
	}
	a.cfg = cfg
	if cmd.Annotations["db"] == "none" {
		return nil
	}

	clock, err := a.clock()
	if err != nil {
		return err
	}
	log := zap.NewNop()
	if a.verbose {
		if log, err = logger.New("debug", "console"); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	db, err := store.OpenSQLite(ctx, cfg.Database)
	if err != nil {
		return err
	}
	repo := attendance.NewRepository(db.Client)
	cat := catalog.NewSQL(db.Client)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := cat.Migrate(ctx); err != nil {
		_ = db.Close()
		return err
	}
	a.db, a.catalog = db, cat
	a.svc = attendance.NewService(repo, cat, attendance.WithClock(clock), attendance.WithLogger(log))
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// clock reads a.now in the configured timezone.
func (a *app) clock() (attendance.Clock, error) {
	if a.cfg.Timezone == "" {
		return attendance.ClockFunc(a.now), nil
	}
	loc, err := time.LoadLocation(a.cfg.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timezone %q", a.cfg.Timezone)
	}
	return attendance.ClockFunc(func() time.Time { return a.now().In(loc) }), nil
}

// teacherFor acts as the configured teacher of courseID. The local database
// belongs to whoever runs the tool, so any course may be managed.
func (a *app) teacherFor(courseID string) (attendance.Teacher, error) {
	if strings.TrimSpace(a.cfg.Teacher) == "" {
		return attendance.Teacher{}, errors.New("no teacher configured; pass --teacher or set teacher in the config file")
	}
	return attendance.Teacher{ID: a.cfg.Teacher, Courses: []string{courseID}}, nil
}

func (a *app) printf(format string, args ...any) error {
	if _, err := fmt.Fprintf(a.out, format, args...); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}
