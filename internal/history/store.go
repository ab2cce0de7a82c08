// Package history is the append-only archive of completed rides
package history

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gocomet/ride-sdk/internal/domain/ride"
)

// Store archives completed rides and serves the ride-history listing
type Store interface {
	Append(ctx context.Context, r ride.Ride) error
	List(ctx context.Context, riderID uuid.UUID) ([]ride.Ride, error)
}

// MemoryStore keeps history in process. Used by tests and the sandbox when
// no database is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	rides []ride.Ride
}

// NewMemoryStore creates an empty in-memory archive
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores an immutable copy of the completed ride
func (s *MemoryStore) Append(_ context.Context, r ride.Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides = append(s.rides, r)
	return nil
}

// List returns the archived rides for a rider, oldest first
func (s *MemoryStore) List(_ context.Context, riderID uuid.UUID) ([]ride.Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ride.Ride, 0)
	for _, r := range s.rides {
		if r.RiderID == riderID {
			out = append(out, r)
		}
	}
	return out, nil
}
