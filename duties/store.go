package duties

import (
	"sync"
	"time"

	"github.com/ethduties/eth-duties/time/slots"
	"github.com/ethduties/eth-duties/validator/registry"
)

// Store holds the latest fetched duty snapshot. Writers swap the whole slice
// under the mutex; readers get copies with SecondsToDuty refreshed against
// the clock.
type Store struct {
	mu        sync.RWMutex
	duties    []Duty
	fetchedAt time.Time
	clock     *slots.Clock
	reg       *registry.Registry
}

// NewStore builds a store over the clock and registry.
func NewStore(clock *slots.Clock, reg *registry.Registry) *Store {
	return &Store{clock: clock, reg: reg}
}

// Set replaces the snapshot.
func (s *Store) Set(duties []Duty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duties = duties
	s.fetchedAt = time.Now()
}

// Get returns a copy of the snapshot with time-to-duty recomputed.
func (s *Store) Get() []Duty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Duty, len(s.duties))
	copy(out, s.duties)
	for i := range out {
		out[i].RefreshTimeToDuty(s.clock)
	}
	return out
}

// OfType returns the snapshot filtered to one duty type.
func (s *Store) OfType(t DutyType) []Duty {
	all := s.Get()
	out := make([]Duty, 0, len(all))
	for _, duty := range all {
		if duty.Type == t {
			out = append(out, duty)
		}
	}
	return out
}

// Any reports whether the snapshot holds at least one duty.
func (s *Store) Any() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.duties) > 0
}

// IsFresh reports whether the stored snapshot can be served without a
// refetch. A snapshot is stale when the validator set changed since it was
// fetched, when it is empty, or when its leading duty already passed: for a
// snapshot starting with a fixed-slot duty the slot must still be ahead of
// the current slot, and for one starting with a sync-committee duty the
// committee epoch must not have fallen behind the current epoch.
func (s *Store) IsFresh() bool {
	if s.reg.ConsumeUpdated() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.duties) == 0 {
		return false
	}
	currentSlot := s.clock.CurrentSlot()
	currentEpoch := s.clock.CurrentEpoch()
	for _, duty := range s.duties {
		if duty.Type == SyncCommittee {
			if duty.Epoch < currentEpoch {
				return false
			}
			continue
		}
		return duty.Slot > currentSlot
	}
	// Sync-committee duties only; without a slot-anchored duty the snapshot
	// cannot prove it is current.
	return false
}
