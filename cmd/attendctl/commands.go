package main

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/config"
	"classattend/internal/report"
)

var noDB = map[string]string{"db": "none"}

func (a *app) newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "config",
		Short:       "Create the config file if missing and print its path",
		Args:        cobra.NoArgs,
		Annotations: noDB,
		RunE: func(*cobra.Command, []string) error {
			if _, err := os.Stat(a.configPath); os.IsNotExist(err) {
				if err := config.SaveCLI(a.configPath, a.cfg); err != nil {
					return err
				}
			}
			return a.printf("%s\n", a.configPath)
		},
	}
}

func (a *app) newCourseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Manage course rosters and lessons",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "enroll COURSE STUDENT...",
		Short: "Enroll students in a course",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.catalog.Enroll(cmd.Context(), args[0], args[1:]...); err != nil {
				return err
			}
			return a.printf("enrolled %d student(s) in %s\n", len(args)-1, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "lessons COURSE LESSON...",
		Short: "Append lessons to a course",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.catalog.AddLessons(cmd.Context(), args[0], args[1:]...); err != nil {
				return err
			}
			return a.printf("added %d lesson(s) to %s\n", len(args)-1, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show COURSE",
		Short: "List enrolled students and lessons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			students, err := a.catalog.EnrolledStudents(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			lessons, err := a.catalog.Lessons(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printf("students: %s\nlessons:  %s\n", strings.Join(students, ", "), strings.Join(lessons, ", "))
		},
	})
	return cmd
}

func (a *app) newOpenCmd() *cobra.Command {
	var lesson, date, start, end string
	cmd := &cobra.Command{
		Use:   "open COURSE",
		Short: "Open an attendance window and print its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.teacherFor(args[0])
			if err != nil {
				return err
			}
			req := attendance.OpenRequest{CourseID: args[0], LessonID: lesson}
			if req.Start, err = attendance.ParseTimeOfDay(start); err != nil {
				return errors.Wrap(err, "--start")
			}
			if req.End, err = attendance.ParseTimeOfDay(end); err != nil {
				return errors.Wrap(err, "--end")
			}
			if date != "" {
				if req.Date, err = attendance.ParseDate(date); err != nil {
					return errors.Wrap(err, "--date")
				}
			}
			w, err := a.svc.OpenWindow(cmd.Context(), t, req)
			if err != nil {
				return err
			}
			return a.printf("session: %s\nlesson:  %s\ndate:    %s\nwindow:  %s-%s\ncode:    %s\n",
				w.ID, w.LessonID, w.Date(), w.Start, w.End, w.Code)
		},
	}
	cmd.Flags().StringVar(&lesson, "lesson", "", "catalog lesson id (required when the course has lessons)")
	cmd.Flags().StringVar(&date, "date", "", "session date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&start, "start", "", "window start HH:MM")
	cmd.Flags().StringVar(&end, "end", "", "window end HH:MM")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func (a *app) newQRCmd() *cobra.Command {
	var out, link string
	var size int
	cmd := &cobra.Command{
		Use:   "qr COURSE",
		Short: "Write the active session code as a QR code PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.teacherFor(args[0])
			if err != nil {
				return err
			}
			w, err := a.svc.ActiveWindow(cmd.Context(), t, args[0])
			if err != nil {
				return err
			}
			png, err := report.QRCode(report.SubmitLink(link, args[0], w.Code), size)
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + "-" + w.Date() + ".png"
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return errors.Wrap(err, "write qr code")
			}
			return a.printf("wrote %s\n", out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().StringVar(&link, "url", "", "submission URL to encode the code into")
	cmd.Flags().IntVar(&size, "size", report.DefaultQRSize, "image size in pixels")
	return cmd
}

func (a *app) newSubmitCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "submit COURSE STUDENT CODE",
		Short: "Mark a student with the session code",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := attendance.ParseStatus(status)
			if err != nil {
				return err
			}
			rec, err := a.svc.Submit(cmd.Context(), attendance.Student{ID: args[1]}, args[0], args[2], st)
			if err != nil {
				return err
			}
			return a.printf("%s marked %s at %s\n", rec.StudentID, rec.Status, rec.MarkedAt.Local().Format(time.TimeOnly))
		},
	}
	cmd.Flags().StringVar(&status, "status", string(attendance.StatusPresent), "present or late")
	return cmd
}

func (a *app) newOverrideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "override COURSE STUDENT STATUS",
		Short: "Set any status for a student in the active session",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.teacherFor(args[0])
			if err != nil {
				return err
			}
			st, err := attendance.ParseStatus(args[2])
			if err != nil {
				return err
			}
			rec, err := a.svc.Override(cmd.Context(), t, args[0], args[1], st)
			if err != nil {
				return err
			}
			return a.printf("%s set to %s by %s\n", rec.StudentID, rec.Status, rec.MarkedBy)
		},
	}
}

func (a *app) newReconcileCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reconcile [COURSE]",
		Short: "Mark unmarked students absent once the window has closed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				n   int
				err error
			)
			switch {
			case all:
				n, err = a.svc.ReconcileClosed(cmd.Context())
			case len(args) == 1:
				n, err = a.svc.Reconcile(cmd.Context(), args[0])
			default:
				return errors.New("pass a course or --all")
			}
			if err != nil {
				return err
			}
			return a.printf("marked %d student(s) absent\n", n)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reconcile every course with a closed window")
	return cmd
}

func (a *app) newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report COURSE",
		Short: "Show the current session of a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := a.svc.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rep.Window != nil {
				if err := a.printf("%s  %s  %s-%s\n", args[0], rep.Window.Date(), rep.Window.Start, rep.Window.End); err != nil {
					return err
				}
			}
			return a.printf("%s\n", report.Table(rep))
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export COURSE",
		Short: "Export the current session report as XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := a.svc.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			buf, name, err := report.WriteXLSX(args[0], rep)
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return errors.Wrap(err, "write workbook")
			}
			return a.printf("wrote %s\n", out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: attendance_<course>_<date>.xlsx)")
	return cmd
}

func (a *app) newTokenCmd() *cobra.Command {
	var role string
	var courses []string
	cmd := &cobra.Command{
		Use:         "token SUBJECT",
		Short:       "Issue an API token signed with JWT_SIGNING_KEY",
		Args:        cobra.ExactArgs(1),
		Annotations: noDB,
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			r := attendance.Role(role)
			if attendance.NewActor(r, args[0], courses) == nil {
				return errors.Errorf("unknown role %q", role)
			}
			pair, err := auth.Issue(args[0], r, courses, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
			if err != nil {
				return err
			}
			return a.printf("%s\n", pair.AccessToken)
		},
	}
	cmd.Flags().StringVar(&role, "role", string(attendance.RoleStudent), "student or teacher")
	cmd.Flags().StringSliceVar(&courses, "courses", nil, "course ids the subject attends or teaches")
	return cmd
}
