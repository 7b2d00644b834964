package attendance

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Repository persists windows and records in Postgres or SQLite. Queries
// are written with ? placeholders and rebound for the driver.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS attendance_windows (
		id           TEXT PRIMARY KEY,
		course_id    TEXT NOT NULL,
		lesson_id    TEXT NOT NULL,
		session_date TEXT NOT NULL,
		start_sec    INTEGER NOT NULL,
		end_sec      INTEGER NOT NULL,
		code         TEXT NOT NULL,
		active       BOOLEAN NOT NULL DEFAULT FALSE,
		opened_by    TEXT NOT NULL DEFAULT '',
		created_at   BIGINT NOT NULL,
		CHECK (start_sec <= end_sec)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_attendance_windows_active
		ON attendance_windows (course_id) WHERE active`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		course_id  TEXT NOT NULL,
		session_id TEXT NOT NULL,
		lesson_id  TEXT NOT NULL,
		student_id TEXT NOT NULL,
		status     TEXT NOT NULL CHECK (status IN ('present', 'late', 'absent', 'excused')),
		marked_by  TEXT NOT NULL,
		marked_at  BIGINT NOT NULL,
		PRIMARY KEY (course_id, session_id, student_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_records_student
		ON attendance_records (course_id, student_id)`,
}

// Migrate creates the tables when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate attendance schema")
		}
	}
	return nil
}

type windowRow struct {
	ID          string `db:"id"`
	CourseID    string `db:"course_id"`
	LessonID    string `db:"lesson_id"`
	SessionDate string `db:"session_date"`
	StartSec    int    `db:"start_sec"`
	EndSec      int    `db:"end_sec"`
	Code        string `db:"code"`
	Active      bool   `db:"active"`
	OpenedBy    string `db:"opened_by"`
	CreatedAt   int64  `db:"created_at"`
}

const windowCols = `id, course_id, lesson_id, session_date, start_sec, end_sec, code, active, opened_by, created_at`

func toWindowRow(w Window) windowRow {
	return windowRow{
		ID:          w.ID,
		CourseID:    w.CourseID,
		LessonID:    w.LessonID,
		SessionDate: w.Date(),
		StartSec:    int(w.Start),
		EndSec:      int(w.End),
		Code:        w.Code,
		Active:      w.Active,
		OpenedBy:    w.OpenedBy,
		CreatedAt:   w.CreatedAt.UnixMicro(),
	}
}

func (row windowRow) window() (Window, error) {
	date, err := time.Parse(DateLayout, row.SessionDate)
	if err != nil {
		return Window{}, errors.Wrapf(err, "window %s: bad session date", row.ID)
	}
	return Window{
		ID:          row.ID,
		CourseID:    row.CourseID,
		LessonID:    row.LessonID,
		SessionDate: date,
		Start:       TimeOfDay(row.StartSec),
		End:         TimeOfDay(row.EndSec),
		Code:        row.Code,
		Active:      row.Active,
		OpenedBy:    row.OpenedBy,
		CreatedAt:   time.UnixMicro(row.CreatedAt).UTC(),
	}, nil
}

// SaveWindow deactivates the course's other windows and upserts w in one
// transaction.
func (r *Repository) SaveWindow(ctx context.Context, w Window) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if w.Active {
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`UPDATE attendance_windows SET active = ? WHERE course_id = ? AND active = ? AND id <> ?`),
			false, w.CourseID, true, w.ID)
		if err != nil {
			return errors.Wrap(err, "deactivate windows")
		}
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO attendance_windows (`+windowCols+`)
		VALUES (:id, :course_id, :lesson_id, :session_date, :start_sec, :end_sec, :code, :active, :opened_by, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			lesson_id = EXCLUDED.lesson_id,
			session_date = EXCLUDED.session_date,
			start_sec = EXCLUDED.start_sec,
			end_sec = EXCLUDED.end_sec,
			code = EXCLUDED.code,
			active = EXCLUDED.active,
			opened_by = EXCLUDED.opened_by,
			created_at = EXCLUDED.created_at
	`, toWindowRow(w))
	if err != nil {
		return errors.Wrap(err, "upsert window")
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func (r *Repository) LoadActiveWindow(ctx context.Context, courseID string) (Window, error) {
	var row windowRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT `+windowCols+` FROM attendance_windows
		WHERE course_id = ? AND active = ?
		ORDER BY created_at DESC
		LIMIT 1
	`), courseID, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Window{}, ErrNotFound
	}
	if err != nil {
		return Window{}, errors.Wrap(err, "select active window")
	}
	return row.window()
}

func (r *Repository) ListActiveWindows(ctx context.Context) ([]Window, error) {
	var rows []windowRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT `+windowCols+` FROM attendance_windows WHERE active = ? ORDER BY course_id`), true)
	if err != nil {
		return nil, errors.Wrap(err, "select active windows")
	}
	res := make([]Window, 0, len(rows))
	for _, row := range rows {
		w, err := row.window()
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, nil
}

type recordRow struct {
	CourseID  string `db:"course_id"`
	SessionID string `db:"session_id"`
	LessonID  string `db:"lesson_id"`
	StudentID string `db:"student_id"`
	Status    string `db:"status"`
	MarkedBy  string `db:"marked_by"`
	MarkedAt  int64  `db:"marked_at"`
}

const recordCols = `course_id, session_id, lesson_id, student_id, status, marked_by, marked_at`

const insertRecord = `
	INSERT INTO attendance_records (` + recordCols + `)
	VALUES (:course_id, :session_id, :lesson_id, :student_id, :status, :marked_by, :marked_at)
	ON CONFLICT (course_id, session_id, student_id) DO `

func toRecordRow(rec Record) recordRow {
	return recordRow{
		CourseID:  rec.CourseID,
		SessionID: rec.SessionID,
		LessonID:  rec.LessonID,
		StudentID: rec.StudentID,
		Status:    string(rec.Status),
		MarkedBy:  rec.MarkedBy,
		MarkedAt:  rec.MarkedAt.UnixMicro(),
	}
}

func (row recordRow) record() Record {
	return Record{
		CourseID:  row.CourseID,
		SessionID: row.SessionID,
		LessonID:  row.LessonID,
		StudentID: row.StudentID,
		Status:    Status(row.Status),
		MarkedBy:  row.MarkedBy,
		MarkedAt:  time.UnixMicro(row.MarkedAt).UTC(),
	}
}

func (r *Repository) SaveRecord(ctx context.Context, rec Record) error {
	_, err := r.db.NamedExecContext(ctx, insertRecord+`UPDATE SET
		lesson_id = EXCLUDED.lesson_id,
		status = EXCLUDED.status,
		marked_by = EXCLUDED.marked_by,
		marked_at = EXCLUDED.marked_at`, toRecordRow(rec))
	return errors.Wrap(err, "upsert record")
}

func (r *Repository) SaveRecordIfAbsent(ctx context.Context, rec Record) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, insertRecord+`NOTHING`, toRecordRow(rec))
	if err != nil {
		return false, errors.Wrap(err, "insert record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "rows affected")
	}
	return n == 1, nil
}

func (r *Repository) LoadRecord(ctx context.Context, courseID, sessionID, studentID string) (Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT `+recordCols+` FROM attendance_records
		WHERE course_id = ? AND session_id = ? AND student_id = ?
	`), courseID, sessionID, studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrap(err, "select record")
	}
	return row.record(), nil
}

func (r *Repository) LoadRecordsByCourse(ctx context.Context, courseID string) ([]Record, error) {
	return r.selectRecords(ctx, `WHERE course_id = ?`, courseID)
}

func (r *Repository) LoadRecordsBySession(ctx context.Context, courseID, sessionID string) ([]Record, error) {
	return r.selectRecords(ctx, `WHERE course_id = ? AND session_id = ?`, courseID, sessionID)
}

func (r *Repository) selectRecords(ctx context.Context, where string, args ...any) ([]Record, error) {
	var rows []recordRow
	q := r.db.Rebind(`SELECT ` + recordCols + ` FROM attendance_records ` + where)
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "select records")
	}
	res := make([]Record, len(rows))
	for i, row := range rows {
		res[i] = row.record()
	}
	return res, nil
}
