package beacon

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

const genesisEndpoint = "/eth/v1/beacon/genesis"

type genesisDetails struct {
	GenesisTime string `json:"genesis_time"`
}

// GenesisTime fetches the chain genesis timestamp. The program cannot run
// without it, so callers treat an error here as fatal.
func (p *Pool) GenesisTime(ctx context.Context) (uint64, error) {
	raw, err := p.Request(ctx, genesisEndpoint, CallNone, nil, false)
	if err != nil {
		return 0, errors.Wrap(err, "could not fetch genesis")
	}
	details := &genesisDetails{}
	if err := json.Unmarshal(raw[0], details); err != nil {
		return 0, errors.Wrap(err, "malformed genesis response")
	}
	genesis, err := strconv.ParseUint(details.GenesisTime, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed genesis_time %q", details.GenesisTime)
	}
	return genesis, nil
}
