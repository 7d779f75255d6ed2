package keymanager

import (
	"context"
	"time"

	"github.com/ethduties/eth-duties/async"
)

// Service periodically re-checks the health of all configured key-manager
// endpoints. It implements runtime.Service.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	tracker  *HealthTracker
	interval time.Duration
}

// NewService wires a prober around the given tracker.
func NewService(ctx context.Context, tracker *HealthTracker, interval time.Duration) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:      ctx,
		cancel:   cancel,
		tracker:  tracker,
		interval: interval,
	}
}

// Start probes once immediately so the first registry refresh sees a health
// snapshot, then keeps probing on the configured interval.
func (s *Service) Start() {
	s.tracker.CheckAll(s.ctx)
	async.RunEvery(s.ctx, s.interval, func() {
		s.tracker.CheckAll(s.ctx)
	})
}

// Stop cancels the probe loop.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always reports healthy; an unreachable key manager only degrades
// the identifier refresh, it does not fail the process.
func (s *Service) Status() error {
	return nil
}
