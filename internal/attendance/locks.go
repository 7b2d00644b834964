package attendance

import "sync"

// courseLocks hands out one RWMutex per course. Opening a window takes the
// write side; submissions and reconciliation take the read side for the whole
// lookup-validate-write sequence.
type courseLocks struct {
	mu sync.Mutex
	m  map[string]*sync.RWMutex
}

func newCourseLocks() *courseLocks {
	return &courseLocks{m: make(map[string]*sync.RWMutex)}
}

func (l *courseLocks) get(courseID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.m[courseID]
	if !ok {
		mu = &sync.RWMutex{}
		l.m[courseID] = mu
	}
	return mu
}
