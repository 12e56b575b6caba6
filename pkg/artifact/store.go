package artifact

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no artifact exists for an entity
	ErrNotFound = errors.New("artifact not found")
	// ErrEntityRequired is returned when storing an artifact without an entity id
	ErrEntityRequired = errors.New("artifact entity id is required")
)

// Run records the outcome of one training pass
type Run struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Trained    int       `json:"trained"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// Store persists one artifact per entity plus the training run history
type Store interface {
	// Put creates or replaces the artifact for a.EntityID
	Put(ctx context.Context, a *Artifact) error
	// Get returns ErrNotFound when the entity has no artifact
	Get(ctx context.Context, entityID string) (*Artifact, error)
	// Delete is a no-op for unknown entities
	Delete(ctx context.Context, entityID string) error
	// List returns every artifact ordered by entity id
	List(ctx context.Context) ([]*Artifact, error)
	RecordRun(ctx context.Context, run Run) error
	// Runs returns the most recent runs first
	Runs(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	runs      []Run
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[string]*Artifact)}
}

// Put implements Store
func (m *MemoryStore) Put(_ context.Context, a *Artifact) error {
	if a.EntityID == "" {
		return ErrEntityRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.artifacts[a.EntityID] = a

	return nil
}

// Get implements Store
func (m *MemoryStore) Get(_ context.Context, entityID string) (*Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.artifacts[entityID]
	if !ok {
		return nil, ErrNotFound
	}

	return a, nil
}

// Delete implements Store
func (m *MemoryStore) Delete(_ context.Context, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.artifacts, entityID)

	return nil
}

// List implements Store
func (m *MemoryStore) List(_ context.Context) ([]*Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Artifact, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })

	return out, nil
}

// RecordRun implements Store
func (m *MemoryStore) RecordRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, run)

	return nil
}

// Runs implements Store
func (m *MemoryStore) Runs(_ context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.runs[i])
	}

	return out, nil
}

// Close implements Store
func (m *MemoryStore) Close() error {
	return nil
}
