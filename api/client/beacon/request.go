package beacon

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/ethduties/eth-duties/api/client"
	"github.com/ethduties/eth-duties/config/params"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// CallKind selects how call data is attached to a beacon API request.
type CallKind int

const (
	// CallNone issues a plain GET without parameters.
	CallNone CallKind = iota
	// CallParams issues a GET with a comma-joined ?id=v1,v2,... query.
	CallParams
	// CallBody issues a POST with a JSON array body ["v1","v2",...].
	CallBody
)

// dataEnvelope is the common beacon API response shell. Data stays raw so
// callers decode into their own row types.
type dataEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ErrNoData signals a response body without a top-level data field.
var ErrNoData = errors.New("response object does not include a 'data' field")

// Request dispatches a call against a healthy beacon node. When validators
// are supplied the list is split into chunks of at most
// ValidatorChunkSize and all chunks run concurrently. With flatten the data
// arrays of all responses are concatenated element-wise; without it each
// returned element is one whole data array.
func (p *Pool) Request(ctx context.Context, endpoint string, kind CallKind, validators []string, flatten bool) ([]json.RawMessage, error) {
	if len(validators) == 0 {
		raw, err := p.requestChunk(ctx, endpoint, kind, nil)
		if err != nil {
			return nil, err
		}
		return explode(raw, flatten)
	}
	cfg := params.DutiesConf()
	chunks := chunkValidators(validators, cfg.ValidatorChunkSize)
	results := make([]json.RawMessage, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			raw, err := p.requestChunk(gctx, endpoint, kind, chunk)
			if err != nil {
				return err
			}
			results[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []json.RawMessage
	for _, raw := range results {
		part, err := explode(raw, flatten)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// requestChunk performs the retry loop for a single chunk. On a connection
// error it sleeps two seconds, on a read timeout or a missing data field five
// seconds, reselecting a healthy node on every attempt.
func (p *Pool) requestChunk(ctx context.Context, endpoint string, kind CallKind, chunk []string) (json.RawMessage, error) {
	cfg := params.DutiesConf()
	var lastErr error
	loggedMessageOnly := false
	for attempt := 0; attempt < cfg.BeaconRequestRetryLimit; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		node := p.SelectHealthy(ctx)
		requestsTotal.WithLabelValues(metricEndpoint(endpoint)).Inc()
		if attempt > 0 {
			requestRetriesTotal.Inc()
		}
		body, err := send(ctx, node, endpoint, kind, chunk)
		if err != nil {
			if client.IsConnectionError(err) {
				log.WithField("node", node.NodeURL()).Error("Could not connect to beacon node. Retry in 2 seconds")
				lastErr = err
				if err := sleepCtx(ctx, cfg.ConnectionErrorWaitingTime); err != nil {
					return nil, err
				}
				continue
			}
			log.WithField("node", node.NodeURL()).Error("Could not read from beacon node. Retry in 5 seconds")
			lastErr = err
			if err := sleepCtx(ctx, cfg.ReadTimeoutWaitingTime); err != nil {
				return nil, err
			}
			continue
		}
		env := &dataEnvelope{}
		if len(body) > 0 {
			if err := json.Unmarshal(body, env); err != nil {
				lastErr = errors.Wrap(err, "malformed response body")
				if err := sleepCtx(ctx, cfg.ReadTimeoutWaitingTime); err != nil {
					return nil, err
				}
				continue
			}
		}
		if env.Data == nil {
			if env.Message != "" {
				// Some validator clients answer certain calls with a bare
				// message instead of data. Not retryable.
				if !loggedMessageOnly {
					log.WithFields(map[string]interface{}{
						"endpoint": endpoint,
						"message":  env.Message,
					}).Debug("Endpoint answered with a message only, returning empty result")
					loggedMessageOnly = true
				}
				return json.RawMessage("[]"), nil
			}
			lastErr = ErrNoData
			log.WithField("node", node.NodeURL()).Error("Response object does not include a 'data' field. Retry in 5 seconds")
			if err := sleepCtx(ctx, cfg.ReadTimeoutWaitingTime); err != nil {
				return nil, err
			}
			continue
		}
		return env.Data, nil
	}
	return nil, errors.Wrap(lastErr, "could not fetch any data from the beacon node")
}

var epochSuffix = regexp.MustCompile(`/[0-9]+$`)

// metricEndpoint collapses per-epoch duty paths into a single label value so
// the request counter keeps a bounded number of series.
func metricEndpoint(endpoint string) string {
	return epochSuffix.ReplaceAllString(endpoint, "/{epoch}")
}

func send(ctx context.Context, node *client.Client, endpoint string, kind CallKind, chunk []string) ([]byte, error) {
	switch kind {
	case CallParams:
		return node.GetWithQuery(ctx, endpoint, "id="+strings.Join(chunk, ","))
	case CallBody:
		quoted := make([]string, 0, len(chunk))
		for _, v := range chunk {
			quoted = append(quoted, `"`+v+`"`)
		}
		return node.Post(ctx, endpoint, []byte("["+strings.Join(quoted, ",")+"]"))
	default:
		return node.Get(ctx, endpoint)
	}
}

func chunkValidators(validators []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(validators); start += size {
		end := start + size
		if end > len(validators) {
			end = len(validators)
		}
		chunks = append(chunks, validators[start:end])
	}
	return chunks
}

// explode turns one data array into its elements, or wraps it whole when the
// caller asked for per-chunk arrays.
func explode(raw json.RawMessage, flatten bool) ([]json.RawMessage, error) {
	if !flatten {
		return []json.RawMessage{raw}, nil
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, errors.Wrap(err, "data field is not an array")
	}
	return elements, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
