package duties

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethduties/eth-duties/api/client/beacon"
	"github.com/ethduties/eth-duties/time/slots"
	"github.com/ethduties/eth-duties/validator/registry"
	"github.com/pkg/errors"
	types "github.com/prysmaticlabs/eth2-types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logrus.WithField("prefix", "duties")

const (
	attesterDutiesEndpoint = "/eth/v1/validator/duties/attester/%d"
	syncDutiesEndpoint     = "/eth/v1/validator/duties/sync/%d"
	proposerDutiesEndpoint = "/eth/v1/validator/duties/proposer/%d"
)

// FetcherConfig carries the user-facing fetch options.
type FetcherConfig struct {
	OmitAttestationDuties  bool
	MaxAttestationDutyLogs int
}

// Fetcher produces the three duty tables from the current registry snapshot
// and epoch. The identifier cache is rebuilt whenever the registry raises
// its updated flag.
type Fetcher struct {
	pool  *beacon.Pool
	clock *slots.Clock
	reg   *registry.Registry
	cfg   FetcherConfig

	mu            sync.Mutex
	cachedIndices []string
	loggedSkip    bool
}

// NewFetcher wires a fetcher over the pool, clock and registry.
func NewFetcher(pool *beacon.Pool, clock *slots.Clock, reg *registry.Registry, cfg FetcherConfig) *Fetcher {
	return &Fetcher{pool: pool, clock: clock, reg: reg, cfg: cfg}
}

// InvalidateIdentifierCache drops the cached index list so the next fetch
// rebuilds it from the registry snapshot.
func (f *Fetcher) InvalidateIdentifierCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cachedIndices = nil
}

func (f *Fetcher) indices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cachedIndices == nil {
		f.cachedIndices = f.reg.ActiveIndices()
	}
	return f.cachedIndices
}

// UpcomingDuties fetches all three tables concurrently against the current
// epoch and returns their merged, slot-sorted concatenation.
func (f *Fetcher) UpcomingDuties(ctx context.Context) ([]Duty, error) {
	started := time.Now()
	var attester, proposer, sync map[string]Duty
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attester, err = f.AttesterDuties(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		proposer, err = f.ProposerDuties(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sync, err = f.SyncCommitteeDuties(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := make([]Duty, 0, len(attester)+len(proposer)+len(sync))
	for _, table := range []map[string]Duty{attester, proposer, sync} {
		for _, duty := range table {
			merged = append(merged, duty)
		}
	}
	SortDuties(merged)
	fetchCycleDuration.Observe(time.Since(started).Seconds())
	activeValidators.Set(float64(f.reg.Len()))
	return merged, nil
}

// SortDuties orders duties by slot ascending; sync-committee duties carry
// slot zero and lead. Ties break by numeric validator index.
func SortDuties(duties []Duty) {
	sort.SliceStable(duties, func(i, j int) bool {
		if duties[i].Slot != duties[j].Slot {
			return duties[i].Slot < duties[j].Slot
		}
		vi, _ := strconv.ParseUint(duties[i].ValidatorIndex, 10, 64)
		vj, _ := strconv.ParseUint(duties[j].ValidatorIndex, 10, 64)
		return vi < vj
	})
}

// AttesterDuties fetches the next attestation duty per validator, walking
// forward epoch by epoch until every tracked validator has a future slot.
func (f *Fetcher) AttesterDuties(ctx context.Context) (map[string]Duty, error) {
	duties := map[string]Duty{}
	indices := f.indices()
	if len(indices) == 0 {
		return duties, nil
	}
	if f.cfg.OmitAttestationDuties {
		return duties, nil
	}
	if len(indices) > f.cfg.MaxAttestationDutyLogs {
		f.mu.Lock()
		if !f.loggedSkip {
			log.WithFields(logrus.Fields{
				"validators": len(indices),
				"max":        f.cfg.MaxAttestationDutyLogs,
			}).Info("Provided number of validators is high, checking attestation duties will be skipped. " +
				"Use --max-attestation-duty-logs to increase the cap")
			f.loggedSkip = true
		}
		f.mu.Unlock()
		return duties, nil
	}
	epoch := f.clock.CurrentEpoch()
	for {
		rows, err := f.fetchDutyRows(ctx, fmt.Sprintf(attesterDutiesEndpoint, epoch), beacon.CallBody, indices)
		if err != nil {
			return nil, err
		}
		currentSlot := f.clock.CurrentSlot()
		for _, row := range rows {
			if present, ok := duties[row.ValidatorIndex]; ok && present.Slot != 0 {
				continue
			}
			slot, err := row.slot()
			if err != nil {
				return nil, err
			}
			duty := Duty{
				Pubkey:         row.Pubkey,
				ValidatorIndex: row.ValidatorIndex,
				Type:           Attestation,
			}
			if slot > currentSlot {
				duty.Slot = slot
			}
			duties[row.ValidatorIndex] = duty
		}
		outdated := false
		for _, duty := range duties {
			if duty.Slot == 0 {
				outdated = true
				break
			}
		}
		if !outdated {
			return duties, nil
		}
		epoch++
	}
}

// ProposerDuties fetches block proposals for the current and the next epoch.
// The proposer endpoint serves the whole epoch, so rows are filtered down to
// the active set; the earliest future slot per validator wins.
func (f *Fetcher) ProposerDuties(ctx context.Context) (map[string]Duty, error) {
	duties := map[string]Duty{}
	indices := f.indices()
	if len(indices) == 0 {
		return duties, nil
	}
	tracked := make(map[string]bool, len(indices))
	for _, index := range indices {
		tracked[index] = true
	}
	epoch := f.clock.CurrentEpoch()
	for _, target := range []types.Epoch{epoch, epoch + 1} {
		rows, err := f.fetchDutyRows(ctx, fmt.Sprintf(proposerDutiesEndpoint, target), beacon.CallNone, nil)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if !tracked[row.ValidatorIndex] {
				continue
			}
			if _, ok := duties[row.ValidatorIndex]; ok {
				continue
			}
			slot, err := row.slot()
			if err != nil {
				return nil, err
			}
			duties[row.ValidatorIndex] = Duty{
				Pubkey:         row.Pubkey,
				ValidatorIndex: row.ValidatorIndex,
				Slot:           slot,
				Type:           Proposing,
			}
		}
	}
	currentSlot := f.clock.CurrentSlot()
	for index, duty := range duties {
		if duty.Slot <= currentSlot {
			delete(duties, index)
		}
	}
	return duties, nil
}

// SyncCommitteeDuties fetches membership for the current sync-committee
// period and for the start of the next one.
func (f *Fetcher) SyncCommitteeDuties(ctx context.Context) (map[string]Duty, error) {
	duties := map[string]Duty{}
	indices := f.indices()
	if len(indices) == 0 {
		return duties, nil
	}
	currentEpoch := f.clock.CurrentEpoch()
	nextPeriodStart := slots.SyncPeriodCeil(currentEpoch)
	for _, target := range []types.Epoch{currentEpoch, nextPeriodStart} {
		rows, err := f.fetchDutyRows(ctx, fmt.Sprintf(syncDutiesEndpoint, target), beacon.CallBody, indices)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if _, ok := duties[row.ValidatorIndex]; ok {
				continue
			}
			committeeIndices, err := row.syncCommitteeIndices()
			if err != nil {
				return nil, err
			}
			duties[row.ValidatorIndex] = Duty{
				Pubkey:                        row.Pubkey,
				ValidatorIndex:                row.ValidatorIndex,
				Epoch:                         target,
				ValidatorSyncCommitteeIndices: committeeIndices,
				Type:                          SyncCommittee,
			}
		}
		if nextPeriodStart == currentEpoch {
			break
		}
	}
	return duties, nil
}

func (f *Fetcher) fetchDutyRows(ctx context.Context, endpoint string, kind beacon.CallKind, validators []string) ([]dutyRow, error) {
	raw, err := f.pool.Request(ctx, endpoint, kind, validators, true)
	if err != nil {
		return nil, err
	}
	rows := make([]dutyRow, 0, len(raw))
	for _, element := range raw {
		row := dutyRow{}
		if err := json.Unmarshal(element, &row); err != nil {
			return nil, errors.Wrap(err, "malformed duty row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}
