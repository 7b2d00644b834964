package attendance

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Reconciler marks enrolled students without a record as absent once the
// course's window has closed. Running it again changes nothing.
type Reconciler struct {
	registry *Registry
	ledger   *Ledger
	clock    Clock
	locks    *courseLocks
	metrics  Metrics
	log      *zap.Logger
}

// Reconcile returns the number of absences it inserted. It is a no-op when
// the course has no active window or the window has not closed yet.
func (r *Reconciler) Reconcile(ctx context.Context, courseID string, roster []string) (int, error) {
	mu := r.locks.get(courseID)
	mu.RLock()
	defer mu.RUnlock()

	w, err := r.registry.ActiveWindow(ctx, courseID)
	if errors.Is(err, ErrNoActiveSession) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !w.IsClosed(r.clock.Now()) {
		return 0, nil
	}

	marked := 0
	seen := make(map[string]struct{}, len(roster))
	for _, studentID := range roster {
		if _, dup := seen[studentID]; dup || studentID == "" {
			continue
		}
		seen[studentID] = struct{}{}
		inserted, err := r.ledger.MarkAbsentIfUnmarked(ctx, w, studentID)
		if err != nil {
			r.log.Error("reconciliation aborted",
				zap.String("course_id", courseID),
				zap.Int("marked", marked),
				zap.Error(err),
			)
			r.metrics.AbsencesReconciled(courseID, marked)
			return marked, err
		}
		if inserted {
			marked++
		}
	}
	if marked > 0 {
		r.metrics.AbsencesReconciled(courseID, marked)
		r.log.Info("absences reconciled",
			zap.String("course_id", courseID),
			zap.String("session_id", w.ID),
			zap.Int("marked", marked),
		)
	}
	return marked, nil
}
