package registry

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/ethduties/eth-duties/api/client/beacon"
	"github.com/ethduties/eth-duties/config/params"
	"github.com/pkg/errors"
)

const stateValidatorsEndpoint = "/eth/v1/beacon/states/head/validators"

// activeStatuses is the on-chain status set that qualifies a validator for
// duty tracking.
var activeStatuses = map[string]bool{
	"active_ongoing": true,
	"active_exiting": true,
	"active_slashed": true,
}

type stateValidatorRow struct {
	Index     string `json:"index"`
	Status    string `json:"status"`
	Validator struct {
		Pubkey string `json:"pubkey"`
	} `json:"validator"`
}

// Resolver turns raw identifiers into canonical active-only identifiers by
// querying validator state at head.
type Resolver struct {
	pool *beacon.Pool
}

// NewResolver builds a resolver over the beacon pool.
func NewResolver(pool *beacon.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// Resolve fetches on-chain state for the raw identifiers and returns the
// canonical map keyed by validator index. Inactive tokens and duplicates
// (the same validator supplied by index and by pubkey) are logged; for
// duplicates the alias from the index-keyed entry wins.
func (r *Resolver) Resolve(ctx context.Context, raw map[string]Identifier) (map[string]Identifier, error) {
	if len(raw) == 0 {
		return map[string]Identifier{}, nil
	}
	if len(raw) > params.DutiesConf().HighIdentifierCountThreshold {
		log.WithField("count", len(raw)).Info("Fetching all necessary data may take some time")
	}
	provided := make([]string, 0, len(raw))
	for key := range raw {
		provided = append(provided, key)
	}
	sort.Strings(provided)
	rows, err := r.pool.Request(ctx, stateValidatorsEndpoint, beacon.CallParams, provided, true)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch validator state")
	}
	canonical := make(map[string]Identifier, len(raw))
	var duplicates []string
	for _, rawRow := range rows {
		row := &stateValidatorRow{}
		if err := json.Unmarshal(rawRow, row); err != nil {
			return nil, errors.Wrap(err, "malformed validator state row")
		}
		if !activeStatuses[row.Status] {
			continue
		}
		pubkey := strings.ToLower(row.Validator.Pubkey)
		byIndex, haveIndex := raw[row.Index]
		byPubkey, havePubkey := raw[pubkey]
		if !haveIndex && !havePubkey {
			continue
		}
		chosen := byPubkey
		if haveIndex {
			chosen = byIndex
			if havePubkey && chosen.Alias == "" {
				chosen.Alias = byPubkey.Alias
			}
		}
		if haveIndex && havePubkey {
			duplicates = append(duplicates, row.Index)
		}
		chosen.Index = row.Index
		chosen.Pubkey = pubkey
		canonical[chosen.Index] = chosen
	}
	logInactiveAndDuplicates(provided, canonical, duplicates)
	return canonical, nil
}

func logInactiveAndDuplicates(provided []string, canonical map[string]Identifier, duplicates []string) {
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		log.WithField("validators", duplicates).Warn("Filtered duplicated validators with different identifiers")
	}
	matched := make(map[string]bool, len(canonical)*2)
	for _, id := range canonical {
		matched[id.Index] = true
		matched[id.Pubkey] = true
	}
	var inactive []string
	for _, token := range provided {
		if !matched[token] {
			inactive = append(inactive, token)
		}
	}
	if len(inactive) > 0 {
		log.WithField("validators", inactive).Warn("The provided validators are not active and will be skipped for further processing")
	}
}
