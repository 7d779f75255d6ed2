package duties

import (
	"testing"

	"github.com/ethduties/eth-duties/validator/registry"
	"github.com/stretchr/testify/assert"
)

func newTestStore() (*Store, *registry.Registry) {
	reg := testRegistry("100")
	return NewStore(testClock(), reg), reg
}

func TestIsFreshEmptySnapshot(t *testing.T) {
	s, _ := newTestStore()
	assert.False(t, s.IsFresh())
}

func TestIsFreshFutureDuty(t *testing.T) {
	s, _ := newTestStore()
	s.Set([]Duty{{ValidatorIndex: "100", Slot: 327, Type: Attestation}})
	assert.True(t, s.IsFresh())
}

func TestIsFreshPastDuty(t *testing.T) {
	s, _ := newTestStore()
	s.Set([]Duty{{ValidatorIndex: "100", Slot: 322, Type: Attestation}})
	assert.False(t, s.IsFresh())
}

func TestIsFreshConsumesRegistryUpdateFlag(t *testing.T) {
	s, reg := newTestStore()
	s.Set([]Duty{{ValidatorIndex: "100", Slot: 327, Type: Attestation}})
	reg.Publish(map[string]registry.Identifier{"200": {Index: "200"}})
	assert.False(t, s.IsFresh())
	// Flag was consumed, the same snapshot now passes again.
	assert.True(t, s.IsFresh())
}

func TestIsFreshSyncDutyEpochBehind(t *testing.T) {
	s, _ := newTestStore()
	s.Set([]Duty{
		{ValidatorIndex: "100", Epoch: 9, Type: SyncCommittee},
		{ValidatorIndex: "100", Slot: 327, Type: Attestation},
	})
	assert.False(t, s.IsFresh())
}

func TestIsFreshSyncDutyCurrentEpoch(t *testing.T) {
	s, _ := newTestStore()
	s.Set([]Duty{
		{ValidatorIndex: "100", Epoch: 10, Type: SyncCommittee},
		{ValidatorIndex: "100", Slot: 327, Type: Attestation},
	})
	assert.True(t, s.IsFresh())
}

func TestIsFreshSyncOnlySnapshot(t *testing.T) {
	s, _ := newTestStore()
	s.Set([]Duty{{ValidatorIndex: "100", Epoch: 10, Type: SyncCommittee}})
	assert.False(t, s.IsFresh())
}

func TestGetRefreshesTimeToDuty(t *testing.T) {
	s, _ := newTestStore()
	s.Set([]Duty{{ValidatorIndex: "100", Slot: 327, Type: Attestation}})
	out := s.Get()
	// Current slot is 322 with a three second offset into it; slot 327
	// starts 5*12-3 = 57 seconds from now.
	assert.Equal(t, int64(57), out[0].SecondsToDuty)
}

func TestOfTypeFilters(t *testing.T) {
	s, _ := newTestStore()
	s.Set([]Duty{
		{ValidatorIndex: "100", Epoch: 10, Type: SyncCommittee},
		{ValidatorIndex: "100", Slot: 327, Type: Attestation},
	})
	attestations := s.OfType(Attestation)
	assert.Equal(t, 1, len(attestations))
	assert.Equal(t, Attestation, attestations[0].Type)
}

func TestAny(t *testing.T) {
	s, _ := newTestStore()
	assert.False(t, s.Any())
	s.Set([]Duty{{ValidatorIndex: "100", Slot: 327, Type: Attestation}})
	assert.True(t, s.Any())
}
