package registry

import (
	"context"
	"time"

	"github.com/ethduties/eth-duties/api/client/keymanager"
	"github.com/ethduties/eth-duties/async"
)

// TokenSource re-reads the raw identifier tokens the user configured, from
// CLI values or the validators file.
type TokenSource func() ([]string, error)

// Service refreshes the registry on an interval: raw inputs are re-read,
// keystores are fetched from every healthy key-manager endpoint, and the
// union is resolved and republished. It implements runtime.Service.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	registry *Registry
	resolver *Resolver
	source   TokenSource
	tracker  *keymanager.HealthTracker
	interval time.Duration
}

// NewService builds the refresher.
func NewService(ctx context.Context, registry *Registry, resolver *Resolver, source TokenSource, tracker *keymanager.HealthTracker, interval time.Duration) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:      ctx,
		cancel:   cancel,
		registry: registry,
		resolver: resolver,
		source:   source,
		tracker:  tracker,
		interval: interval,
	}
}

// Start runs the refresh loop.
func (s *Service) Start() {
	async.RunEvery(s.ctx, s.interval, func() {
		s.refresh()
	})
}

// Stop cancels the refresh loop.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always reports healthy; a failed refresh keeps the previous
// snapshot in place.
func (s *Service) Status() error {
	return nil
}

// RawTokens gathers the current raw identifiers from the configured source
// and from the keystores of all healthy key-manager endpoints.
func (s *Service) RawTokens(ctx context.Context) (map[string]Identifier, error) {
	tokens, err := s.source()
	if err != nil {
		return nil, err
	}
	raw := ParseTokens(tokens)
	if s.tracker != nil {
		for _, node := range s.tracker.Healthy() {
			for _, pubkey := range node.ListValidatingPubkeys(ctx) {
				if id, ok := ParseToken(pubkey, true); ok {
					if _, exists := raw[id.Key()]; !exists {
						raw[id.Key()] = id
					}
				}
			}
		}
	}
	return raw, nil
}

// Resolve resolves the given raw set against the beacon chain.
func (s *Service) Resolve(ctx context.Context, raw map[string]Identifier) (map[string]Identifier, error) {
	return s.resolver.Resolve(ctx, raw)
}

func (s *Service) refresh() {
	raw, err := s.RawTokens(s.ctx)
	if err != nil {
		log.WithError(err).Warn("Could not re-read validator identifiers, keeping current set")
		return
	}
	active, err := s.resolver.Resolve(s.ctx, raw)
	if err != nil {
		log.WithError(err).Warn("Could not resolve validator identifiers, keeping current set")
		return
	}
	s.registry.Publish(active)
	log.WithField("count", len(active)).Debug("Validator identifiers updated")
}
