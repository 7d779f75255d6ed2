// Package duties fetches and stores the forward-looking duty tables for the
// tracked validators.
package duties

import (
	"encoding/json"
	"strconv"

	"github.com/ethduties/eth-duties/time/slots"
	"github.com/pkg/errors"
	types "github.com/prysmaticlabs/eth2-types"
)

// DutyType enumerates the duty tables.
type DutyType int

const (
	// None marks a placeholder duty.
	None DutyType = iota
	// Attestation duties recur every epoch.
	Attestation
	// SyncCommittee duties span a whole sync-committee period.
	SyncCommittee
	// Proposing duties are block proposals at a fixed slot.
	Proposing
)

var dutyTypeNames = map[DutyType]string{
	None:          "none",
	Attestation:   "attestation",
	SyncCommittee: "sync_committee",
	Proposing:     "proposing",
}

// String returns the wire name of the duty type.
func (t DutyType) String() string {
	if name, ok := dutyTypeNames[t]; ok {
		return name
	}
	return "none"
}

// MarshalJSON renders the type as its wire name.
func (t DutyType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a wire name back into a duty type.
func (t *DutyType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for dt, n := range dutyTypeNames {
		if n == name {
			*t = dt
			return nil
		}
	}
	return errors.Errorf("unknown duty type %q", name)
}

// Duty is one upcoming obligation of a tracked validator. SecondsToDuty is
// derived from the slot clock on every render, never stored ahead of time.
type Duty struct {
	Pubkey                        string      `json:"pubkey"`
	ValidatorIndex                string      `json:"validator_index"`
	Epoch                         types.Epoch `json:"epoch"`
	Slot                          types.Slot  `json:"slot"`
	ValidatorSyncCommitteeIndices []uint64    `json:"validator_sync_committee_indices"`
	Type                          DutyType    `json:"type"`
	SecondsToDuty                 int64       `json:"seconds_to_duty"`
}

// RefreshTimeToDuty recomputes SecondsToDuty against the clock. For a
// sync-committee duty in the current period the time is zero; for one in an
// upcoming period it is the time until that period starts.
func (d *Duty) RefreshTimeToDuty(clock *slots.Clock) {
	if d.Type == SyncCommittee {
		if d.Epoch > clock.CurrentEpoch() {
			d.SecondsToDuty = int64(clock.UntilEpoch(d.Epoch).Seconds())
		} else {
			d.SecondsToDuty = 0
		}
		return
	}
	d.SecondsToDuty = int64(clock.UntilSlot(d.Slot).Seconds())
}

// beacon API responses encode numbers as strings.
type dutyRow struct {
	Pubkey                        string   `json:"pubkey"`
	ValidatorIndex                string   `json:"validator_index"`
	Slot                          string   `json:"slot"`
	ValidatorSyncCommitteeIndices []string `json:"validator_sync_committee_indices"`
}

func (r *dutyRow) slot() (types.Slot, error) {
	if r.Slot == "" {
		return 0, nil
	}
	s, err := strconv.ParseUint(r.Slot, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed slot %q", r.Slot)
	}
	return types.Slot(s), nil
}

func (r *dutyRow) syncCommitteeIndices() ([]uint64, error) {
	indices := make([]uint64, 0, len(r.ValidatorSyncCommitteeIndices))
	for _, raw := range r.ValidatorSyncCommitteeIndices {
		i, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed sync committee index %q", raw)
		}
		indices = append(indices, i)
	}
	return indices, nil
}
