package attendance

import (
	"context"
	"sync"
)

type recordKey struct {
	course, session, student string
}

// MemoryStore is a Store kept in process memory. It backs tests and the
// "memory" store backend.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]Window // by window id
	active  map[string]string // course id -> active window id
	records map[recordKey]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]Window),
		active:  make(map[string]string),
		records: make(map[recordKey]Record),
	}
}

func (s *MemoryStore) SaveWindow(_ context.Context, w Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.Active {
		if prevID, ok := s.active[w.CourseID]; ok && prevID != w.ID {
			prev := s.windows[prevID]
			prev.Active = false
			s.windows[prevID] = prev
		}
		s.active[w.CourseID] = w.ID
	} else if s.active[w.CourseID] == w.ID {
		delete(s.active, w.CourseID)
	}
	s.windows[w.ID] = w
	return nil
}

func (s *MemoryStore) LoadActiveWindow(_ context.Context, courseID string) (Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[courseID]
	if !ok {
		return Window{}, ErrNotFound
	}
	return s.windows[id], nil
}

func (s *MemoryStore) ListActiveWindows(_ context.Context) ([]Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Window, 0, len(s.active))
	for _, id := range s.active {
		res = append(res, s.windows[id])
	}
	return res, nil
}

func (s *MemoryStore) SaveRecord(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[keyOf(r)] = r
	return nil
}

func (s *MemoryStore) SaveRecordIfAbsent(_ context.Context, r Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(r)
	if _, ok := s.records[k]; ok {
		return false, nil
	}
	s.records[k] = r
	return true, nil
}

func (s *MemoryStore) LoadRecord(_ context.Context, courseID, sessionID, studentID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordKey{courseID, sessionID, studentID}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) LoadRecordsByCourse(_ context.Context, courseID string) ([]Record, error) {
	return s.filter(func(k recordKey) bool { return k.course == courseID }), nil
}

func (s *MemoryStore) LoadRecordsBySession(_ context.Context, courseID, sessionID string) ([]Record, error) {
	return s.filter(func(k recordKey) bool { return k.course == courseID && k.session == sessionID }), nil
}

func (s *MemoryStore) filter(match func(recordKey) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Record
	for k, r := range s.records {
		if match(k) {
			res = append(res, r)
		}
	}
	return res
}

func keyOf(r Record) recordKey {
	return recordKey{r.CourseID, r.SessionID, r.StudentID}
}
