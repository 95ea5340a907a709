package store

import (
	"sync"
	"time"

	"github.com/Gameaday/ia-helper-sub003/pkg/ialib"
)

// MemoryStore keeps task records in memory. Nothing survives a restart;
// it exists for tests and one-off runs where durability does not matter.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*ialib.Task
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*ialib.Task)}
}

// Save stores a copy of the record, so later caller mutations never
// leak into the store.
func (m *MemoryStore) Save(t *ialib.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

// All returns copies of every stored task.
func (m *MemoryStore) All() ([]*ialib.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ialib.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// Get returns a copy of the task with the given id.
func (m *MemoryStore) Get(id string) (*ialib.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ialib.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// Delete removes the record with the given id.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

// DeleteCompletedBefore removes completed records last updated before
// the cutoff.
func (m *MemoryStore) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, t := range m.tasks {
		if t.Status == ialib.StatusCompleted && t.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}

var _ ialib.TaskStore = (*MemoryStore)(nil)
