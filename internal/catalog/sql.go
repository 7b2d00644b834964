package catalog

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// SQL reads enrollments and lessons from the course tables.
type SQL struct {
	db *sqlx.DB
}

func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS course_enrollments (
		course_id  TEXT NOT NULL,
		student_id TEXT NOT NULL,
		PRIMARY KEY (course_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS course_lessons (
		course_id TEXT NOT NULL,
		lesson_id TEXT NOT NULL,
		position  INTEGER NOT NULL,
		PRIMARY KEY (course_id, lesson_id)
	)`,
}

// Migrate creates the course tables when missing.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate catalog schema")
		}
	}
	return nil
}

// Enroll adds students to courseID, ignoring ones already enrolled.
func (s *SQL) Enroll(ctx context.Context, courseID string, studentIDs ...string) error {
	q := s.db.Rebind(`INSERT INTO course_enrollments (course_id, student_id) VALUES (?, ?)
		ON CONFLICT (course_id, student_id) DO NOTHING`)
	for _, id := range studentIDs {
		if _, err := s.db.ExecContext(ctx, q, courseID, id); err != nil {
			return errors.Wrapf(err, "enroll %s in %s", id, courseID)
		}
	}
	return nil
}

// AddLessons appends lessons after the course's last one, ignoring duplicates.
func (s *SQL) AddLessons(ctx context.Context, courseID string, lessonIDs ...string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.GetContext(ctx, &next, tx.Rebind(
		`SELECT COALESCE(MAX(position), 0) + 1 FROM course_lessons WHERE course_id = ?`), courseID); err != nil {
		return errors.Wrap(err, "next lesson position")
	}
	q := tx.Rebind(`INSERT INTO course_lessons (course_id, lesson_id, position) VALUES (?, ?, ?)
		ON CONFLICT (course_id, lesson_id) DO NOTHING`)
	for _, id := range lessonIDs {
		res, err := tx.ExecContext(ctx, q, courseID, id, next)
		if err != nil {
			return errors.Wrapf(err, "add lesson %s to %s", id, courseID)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func (s *SQL) EnrolledStudents(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(
		`SELECT student_id FROM course_enrollments WHERE course_id = ? ORDER BY student_id`), courseID)
	return ids, errors.Wrap(err, "select enrollments")
}

func (s *SQL) Lessons(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(
		`SELECT lesson_id FROM course_lessons WHERE course_id = ? ORDER BY position`), courseID)
	return ids, errors.Wrap(err, "select lessons")
}
