// Package catalog holds the course data attendance reads from: which
// students are enrolled in a course and which lessons it has.
package catalog

import (
	"context"
	"sort"
	"sync"
)

// Memory is a catalog kept in process memory.
type Memory struct {
	mu       sync.RWMutex
	students map[string][]string
	lessons  map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		students: make(map[string][]string),
		lessons:  make(map[string][]string),
	}
}

// Enroll adds students to courseID, ignoring ones already enrolled.
func (m *Memory) Enroll(_ context.Context, courseID string, studentIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range studentIDs {
		if !has(m.students[courseID], id) {
			m.students[courseID] = append(m.students[courseID], id)
		}
	}
	return nil
}

// AddLessons appends lessons to courseID in order, ignoring duplicates.
func (m *Memory) AddLessons(_ context.Context, courseID string, lessonIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range lessonIDs {
		if !has(m.lessons[courseID], id) {
			m.lessons[courseID] = append(m.lessons[courseID], id)
		}
	}
	return nil
}

func (m *Memory) EnrolledStudents(_ context.Context, courseID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]string(nil), m.students[courseID]...)
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Lessons(_ context.Context, courseID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.lessons[courseID]...), nil
}

func has(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
