package resolver

import (
	"context"
	"sync"
)

// LeaderStore is the resolver's injected storage for the current-leader
// record. The in-memory implementation serves tests and the embedded
// resolver; a production deployment can substitute an external KV with
// compare-and-swap without touching the wire contract (open question,
// recorded in DESIGN.md).
type LeaderStore interface {
	Get(ctx context.Context) (LeaderRecord, error)
	Set(ctx context.Context, rec LeaderRecord) error
}

// MemoryStore is a mutex-guarded last-write-wins store. State does not
// survive a resolver restart; nodes re-converge within one election cycle.
type MemoryStore struct {
	mu  sync.RWMutex
	rec LeaderRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (LeaderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec, nil
}

func (s *MemoryStore) Set(_ context.Context, rec LeaderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
	return nil
}
