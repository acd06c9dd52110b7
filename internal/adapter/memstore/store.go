// Package memstore implements the task store port with an in-process map.
// It is the default store; the postgres adapter is the durable alternative.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Strob0t/CodeSmith/internal/domain"
	"github.com/Strob0t/CodeSmith/internal/domain/task"
)

// Store keeps deep-copied task snapshots keyed by id. Snapshots are cloned
// on the way in and out, so callers can keep mutating their own Task while
// readers see consistent state.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

// New creates an empty store.
func New() *Store {
	return &Store{tasks: make(map[string]*task.Task)}
}

// Create stores a new task snapshot.
func (s *Store) Create(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("create task %s: %w", t.ID, domain.ErrConflict)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Get returns a snapshot of the task.
func (s *Store) Get(_ context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %s: %w", id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

// List returns snapshots of all tasks ordered by creation time, newest first.
func (s *Store) List(_ context.Context) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces the stored snapshot.
func (s *Store) Update(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return fmt.Errorf("update task %s: %w", t.ID, domain.ErrNotFound)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// Delete removes the task.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("delete task %s: %w", id, domain.ErrNotFound)
	}
	delete(s.tasks, id)
	return nil
}
