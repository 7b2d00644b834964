package attendance

import (
	"context"

	"github.com/pkg/errors"
)

// Ledger stores one record per (course, session, student).
type Ledger struct {
	store Store
	clock Clock
}

// Upsert writes status for studentID in w's session, overwriting any
// earlier record for the same student. Repeating the stored status and
// marker leaves the record untouched.
func (l *Ledger) Upsert(ctx context.Context, w Window, studentID string, status Status, markedBy string) (Record, error) {
	prev, ok, err := l.Get(ctx, w.CourseID, w.ID, studentID)
	if err != nil {
		return Record{}, err
	}
	if ok && prev.Status == status && prev.MarkedBy == markedBy {
		return prev, nil
	}
	rec := l.record(w, studentID, status, markedBy)
	if err := l.store.SaveRecord(ctx, rec); err != nil {
		return Record{}, storageErr("save record", err)
	}
	return rec, nil
}

// MarkAbsentIfUnmarked inserts an absence unless the student already has a
// record in w's session. It reports whether a record was inserted.
func (l *Ledger) MarkAbsentIfUnmarked(ctx context.Context, w Window, studentID string) (bool, error) {
	ok, err := l.store.SaveRecordIfAbsent(ctx, l.record(w, studentID, StatusAbsent, SystemActor))
	if err != nil {
		return false, storageErr("insert absence", err)
	}
	return ok, nil
}

func (l *Ledger) Get(ctx context.Context, courseID, sessionID, studentID string) (Record, bool, error) {
	rec, err := l.store.LoadRecord(ctx, courseID, sessionID, studentID)
	if errors.Is(err, ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, storageErr("load record", err)
	}
	return rec, true, nil
}

// ListByCourse returns records of every session of the course, unordered.
func (l *Ledger) ListByCourse(ctx context.Context, courseID string) ([]Record, error) {
	recs, err := l.store.LoadRecordsByCourse(ctx, courseID)
	if err != nil {
		return nil, storageErr("load course records", err)
	}
	return recs, nil
}

// ListBySession returns records of one session, unordered.
func (l *Ledger) ListBySession(ctx context.Context, courseID, sessionID string) ([]Record, error) {
	recs, err := l.store.LoadRecordsBySession(ctx, courseID, sessionID)
	if err != nil {
		return nil, storageErr("load session records", err)
	}
	return recs, nil
}

func (l *Ledger) record(w Window, studentID string, status Status, markedBy string) Record {
	return Record{
		CourseID:  w.CourseID,
		SessionID: w.ID,
		LessonID:  w.LessonID,
		StudentID: studentID,
		Status:    status,
		MarkedBy:  markedBy,
		MarkedAt:  l.clock.Now().UTC(),
	}
}
