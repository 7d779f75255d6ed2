// Package slots derives the current slot and epoch from the chain genesis
// time. The wall clock is used directly; NTP skew at the scale of seconds is
// acceptable with 12 second slots.
package slots

import (
	"time"

	"github.com/ethduties/eth-duties/config/params"
	types "github.com/prysmaticlabs/eth2-types"
)

// Clock converts wall-clock time into slots and epochs relative to genesis.
type Clock struct {
	genesis time.Time
	now     func() time.Time
}

// NewClock constructs a clock for the given genesis unix timestamp.
func NewClock(genesisTime uint64) *Clock {
	return &Clock{
		genesis: time.Unix(int64(genesisTime), 0),
		now:     time.Now,
	}
}

// NewClockWithNower is used by tests to pin the wall clock.
func NewClockWithNower(genesisTime uint64, now func() time.Time) *Clock {
	return &Clock{
		genesis: time.Unix(int64(genesisTime), 0),
		now:     now,
	}
}

// GenesisTime returns the genesis timestamp the clock was built from.
func (c *Clock) GenesisTime() time.Time {
	return c.genesis
}

// CurrentSlot returns the slot the chain is in right now.
func (c *Clock) CurrentSlot() types.Slot {
	cfg := params.DutiesConf()
	since := c.now().Sub(c.genesis)
	if since < 0 {
		return 0
	}
	return types.Slot(uint64(since.Seconds()) / cfg.SecondsPerSlot)
}

// CurrentEpoch returns the epoch the chain is in right now.
func (c *Clock) CurrentEpoch() types.Epoch {
	cfg := params.DutiesConf()
	return types.Epoch(uint64(c.CurrentSlot()) / cfg.SlotsPerEpoch)
}

// SlotStart returns the wall-clock time at which the given slot begins.
func (c *Clock) SlotStart(slot types.Slot) time.Time {
	cfg := params.DutiesConf()
	return c.genesis.Add(time.Duration(uint64(slot)*cfg.SecondsPerSlot) * time.Second)
}

// EpochStart returns the wall-clock time at which the given epoch begins.
func (c *Clock) EpochStart(epoch types.Epoch) time.Time {
	cfg := params.DutiesConf()
	return c.SlotStart(types.Slot(uint64(epoch) * cfg.SlotsPerEpoch))
}

// UntilSlot returns the time remaining until the given slot starts. The
// result is negative for slots in the past.
func (c *Clock) UntilSlot(slot types.Slot) time.Duration {
	return c.SlotStart(slot).Sub(c.now())
}

// UntilEpoch returns the time remaining until the given epoch starts.
func (c *Clock) UntilEpoch(epoch types.Epoch) time.Duration {
	return c.EpochStart(epoch).Sub(c.now())
}

// SyncPeriodFloor returns the first epoch of the sync-committee period the
// given epoch belongs to.
func SyncPeriodFloor(epoch types.Epoch) types.Epoch {
	cfg := params.DutiesConf()
	return types.Epoch(uint64(epoch) / cfg.EpochsPerSyncCommitteePeriod * cfg.EpochsPerSyncCommitteePeriod)
}

// SyncPeriodCeil returns the first epoch of the next sync-committee period.
// For an epoch on a period boundary the epoch itself is returned.
func SyncPeriodCeil(epoch types.Epoch) types.Epoch {
	cfg := params.DutiesConf()
	period := cfg.EpochsPerSyncCommitteePeriod
	return types.Epoch((uint64(epoch) + period - 1) / period * period)
}

// UntilNextSyncPeriod returns the time left in the sync-committee period the
// chain is currently in.
func (c *Clock) UntilNextSyncPeriod() time.Duration {
	cfg := params.DutiesConf()
	current := c.CurrentEpoch()
	next := types.Epoch(uint64(SyncPeriodFloor(current)) + cfg.EpochsPerSyncCommitteePeriod)
	return c.UntilEpoch(next)
}
