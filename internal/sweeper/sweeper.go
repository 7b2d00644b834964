// Package sweeper reconciles closed attendance windows in the background,
// on a cron schedule and shortly after each announced window ends.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"classattend/internal/attendance"
	"classattend/internal/queue"
)

// Reconciler is the part of attendance.Service the sweeper drives.
type Reconciler interface {
	Reconcile(ctx context.Context, courseID string) (int, error)
	ReconcileClosed(ctx context.Context) (int, error)
}

// Sweeper runs reconciliation periodically and on window.opened events.
type Sweeper struct {
	svc   Reconciler
	cron  *cron.Cron
	clock attendance.Clock
	grace time.Duration
	log   *zap.Logger

	afterFunc func(time.Duration, func()) *time.Timer

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New schedules RunOnce on schedule (standard cron expression or @every). Grace
// is added to a window's end before its course is reconciled.
func New(svc Reconciler, schedule string, grace time.Duration, clock attendance.Clock, log *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		svc:       svc,
		clock:     clock,
		grace:     grace,
		log:       log,
		afterFunc: time.AfterFunc,
		timers:    make(map[string]*time.Timer),
	}
	cl := cronLogger{log.Sugar()}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.Error("scheduled reconciliation failed", zap.Error(err))
		}
	}); err != nil {
		return nil, errors.Wrapf(err, "invalid reconcile schedule %q", schedule)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("reconciliation sweeper started", zap.Duration("grace", s.grace))
}

// Stop stops the scheduler and pending timers, and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// RunOnce reconciles every course whose active window has closed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	n, err := s.svc.ReconcileClosed(ctx)
	if n > 0 {
		s.log.Info("sweep reconciled absences", zap.Int("marked", n))
	}
	return n, err
}

// Consume handles queue messages until ctx is done or the queue closes.
func (s *Sweeper) Consume(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return errors.Wrap(err, "consume queue")
	}
	for msg := range msgs {
		if err := s.Handle(ctx, msg); err != nil {
			s.log.Warn("dropping queue message", zap.String("type", msg.Type), zap.Error(err))
		}
	}
	return ctx.Err()
}

// Handle schedules reconciliation of the announced window's course for one
// second past its end plus grace. Unknown message types are ignored.
func (s *Sweeper) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeWindowOpened {
		return nil
	}
	evt, err := queue.DecodeWindowOpened(msg)
	if err != nil {
		return err
	}
	delay := s.delayUntil(evt.End)

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[evt.SessionID]; ok {
		t.Stop()
	}
	s.timers[evt.SessionID] = s.afterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, evt.SessionID)
		s.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		n, err := s.svc.Reconcile(ctx, evt.CourseID)
		if err != nil {
			s.log.Error("reconciliation after window end failed", zap.String("course_id", evt.CourseID), zap.Error(err))
			return
		}
		s.log.Debug("reconciled after window end",
			zap.String("course_id", evt.CourseID),
			zap.String("session_id", evt.SessionID),
			zap.Int("marked", n),
		)
	})
	s.log.Debug("reconciliation scheduled",
		zap.String("course_id", evt.CourseID),
		zap.String("session_id", evt.SessionID),
		zap.Duration("in", delay),
	)
	return nil
}

// Pending returns the number of scheduled per-window reconciliations.
func (s *Sweeper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Sweeper) delayUntil(end attendance.TimeOfDay) time.Duration {
	now := s.clock.Now()
	y, m, d := now.Date()
	at := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).
		Add(time.Duration(end)*time.Second + time.Second + s.grace)
	if delay := at.Sub(now); delay > 0 {
		return delay
	}
	return 0
}

// cronLogger routes cron's logging to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
