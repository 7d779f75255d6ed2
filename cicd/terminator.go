// Package cicd decides whether the process may exit based on the urgency of
// upcoming duties, so that automation can gate destructive maintenance.
package cicd

import (
	"time"

	"github.com/ethduties/eth-duties/duties"
	"github.com/ethduties/eth-duties/duties/dutylog"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "cicd")

// Mode is the run mode selected with --mode.
type Mode string

const (
	// ModeLog renders duties every interval and never exits on its own.
	ModeLog Mode = "log"
	// ModeNoLog fetches duties but suppresses the duty lines.
	ModeNoLog Mode = "no-log"
	// ModeExit exits after the first evaluation: 0 without relevant duties, 1 with.
	ModeExit Mode = "cicd-exit"
	// ModeWait keeps evaluating until no relevant duties remain or the
	// waiting budget runs out.
	ModeWait Mode = "cicd-wait"
	// ModeForceGracefulExit exits 0 after the first iteration regardless of duties.
	ModeForceGracefulExit Mode = "cicd-force-graceful-exit"
)

// ParseMode validates a --mode value.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeLog, ModeNoLog, ModeExit, ModeWait, ModeForceGracefulExit:
		return Mode(raw), nil
	}
	return "", errors.Errorf("unknown mode %q", raw)
}

// Gating reports whether the mode drives process exit.
func (m Mode) Gating() bool {
	return m == ModeExit || m == ModeWait || m == ModeForceGracefulExit
}

// Config carries the gating thresholds.
type Config struct {
	Mode                  Mode
	AttestationTime       int64
	AttestationProportion float64
	MaxWaitingTime        time.Duration
	Interval              time.Duration
}

// Terminator evaluates the duty snapshot once per main-loop iteration and
// decides whether to exit and with which code.
type Terminator struct {
	cfg           Config
	iterations    int
	maxIterations int
}

// New builds a terminator. In cicd-wait mode the iteration budget is the
// waiting time divided by the loop interval, rounded down.
func New(cfg Config) *Terminator {
	max := 0
	if cfg.Interval > 0 {
		max = int(cfg.MaxWaitingTime / cfg.Interval)
	}
	return &Terminator{cfg: cfg, maxIterations: max}
}

// Evaluate inspects the duty snapshot after a log cycle. It returns the exit
// code and whether the process should terminate now.
func (t *Terminator) Evaluate(dutyList []duties.Duty) (int, bool) {
	switch t.cfg.Mode {
	case ModeLog, ModeNoLog:
		return 0, false
	case ModeForceGracefulExit:
		log.Info("Exiting with code: 0")
		return 0, true
	case ModeExit:
		if t.relevantDuties(dutyList) {
			log.Info("Exiting with code: 1")
			return 1, true
		}
		log.Info("Exiting with code: 0")
		return 0, true
	case ModeWait:
		if !t.relevantDuties(dutyList) {
			log.Info("Exiting with code: 0")
			return 0, true
		}
		t.iterations++
		if t.iterations >= t.maxIterations {
			log.Info("Reached max. waiting time for mode 'cicd-wait'")
			log.Info("Exiting with code: 1")
			return 1, true
		}
		return 0, false
	}
	return 0, false
}

// relevantDuties implements the gating rule: an empty snapshot is never
// relevant, any non-attestation duty is always relevant, and an
// attestation-only snapshot is relevant when fewer than the configured
// proportion of attestations lie beyond the configured time horizon.
func (t *Terminator) relevantDuties(dutyList []duties.Duty) bool {
	if len(dutyList) == 0 {
		return false
	}
	for _, duty := range dutyList {
		if duty.Type != duties.Attestation {
			return true
		}
	}
	proportion := dutylog.ProportionAboveThreshold(dutyList, t.cfg.AttestationTime)
	log.Infof("%.2f%% of attestation duties will be executed in %d sec. or later",
		proportion*100, t.cfg.AttestationTime)
	return proportion < t.cfg.AttestationProportion
}
