// Package node wires all eth-duties services together and owns the main
// fetch-and-log loop.
package node

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethduties/eth-duties/api/client/beacon"
	"github.com/ethduties/eth-duties/api/client/keymanager"
	"github.com/ethduties/eth-duties/cicd"
	"github.com/ethduties/eth-duties/cmd/eth-duties/flags"
	"github.com/ethduties/eth-duties/duties"
	"github.com/ethduties/eth-duties/duties/dutylog"
	"github.com/ethduties/eth-duties/monitoring/prometheus"
	"github.com/ethduties/eth-duties/rest"
	"github.com/ethduties/eth-duties/runtime"
	"github.com/ethduties/eth-duties/time/slots"
	"github.com/ethduties/eth-duties/validator/registry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// DutiesNode is the top-level process object. It owns the service registry
// and the duty pipeline from beacon pool to terminator.
type DutiesNode struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cfg        *flags.Config
	services   *runtime.ServiceRegistry
	pool       *beacon.Pool
	clock      *slots.Clock
	registry   *registry.Registry
	fetcher    *duties.Fetcher
	store      *duties.Store
	dutyLogger *dutylog.Logger
	terminator *cicd.Terminator
}

// New builds the whole pipeline. Failure to reach the beacon chain for the
// genesis time is fatal.
func New(ctx context.Context, cliCtx *cli.Context) (*DutiesNode, error) {
	cfg, err := flags.ParseConfig(cliCtx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	n := &DutiesNode{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		services: runtime.NewServiceRegistry(),
	}
	if err := n.build(); err != nil {
		cancel()
		return nil, err
	}
	return n, nil
}

func (n *DutiesNode) build() error {
	cfg := n.cfg
	log.Infof("Started in mode: %s", cfg.Mode)

	pool, err := beacon.NewPool(cfg.BeaconNodes)
	if err != nil {
		return err
	}
	n.pool = pool

	genesis, err := pool.GenesisTime(n.ctx)
	if err != nil {
		return errors.Wrap(err, "could not fetch genesis time")
	}
	n.clock = slots.NewClock(genesis)

	n.registry = registry.New()
	resolver := registry.NewResolver(pool)

	kmNodes, err := readValidatorNodes(cfg.ValidatorNodesFile)
	if err != nil {
		return err
	}
	tracker := keymanager.NewHealthTracker(kmNodes)
	if len(kmNodes) > 0 {
		tracker.CheckAll(n.ctx)
		if err := n.services.RegisterService(keymanager.NewService(n.ctx, tracker, cfg.ValidatorUpdateInterval)); err != nil {
			return err
		}
	}

	refresher := registry.NewService(n.ctx, n.registry, resolver, tokenSource(cfg), tracker, cfg.ValidatorUpdateInterval)
	raw, err := refresher.RawTokens(n.ctx)
	if err != nil {
		return err
	}
	active, err := refresher.Resolve(n.ctx, raw)
	if err != nil {
		return errors.Wrap(err, "could not resolve validator identifiers")
	}
	n.registry.Seed(active)
	if err := n.services.RegisterService(refresher); err != nil {
		return err
	}

	n.fetcher = duties.NewFetcher(pool, n.clock, n.registry, duties.FetcherConfig{
		OmitAttestationDuties:  cfg.OmitAttestationDuties,
		MaxAttestationDutyLogs: cfg.MaxAttestationDutyLogs,
	})
	n.store = duties.NewStore(n.clock, n.registry)
	n.dutyLogger = dutylog.New(n.clock, n.registry, dutylog.Config{
		LogPubkeys:     cfg.LogPubkeys,
		TimeWarning:    cfg.TimeWarning,
		TimeCritical:   cfg.TimeCritical,
		ColorWarning:   cfg.ColorWarning,
		ColorCritical:  cfg.ColorCritical,
		ColorProposing: cfg.ColorProposing,
	})
	n.terminator = cicd.New(cicd.Config{
		Mode:                  cfg.Mode,
		AttestationTime:       cfg.CicdAttestationTime,
		AttestationProportion: cfg.CicdAttestationProportion,
		MaxWaitingTime:        cfg.CicdWaitingTime,
		Interval:              cfg.Interval,
	})

	if cfg.Rest {
		if cfg.Mode.Gating() {
			log.Warn("Rest server will not be started in any cicd-mode. Flag '--rest' will be ignored!")
		} else {
			restSvc := rest.NewService(n.ctx, rest.Config{
				Host:           cfg.RestHost,
				Port:           strconv.Itoa(cfg.RestPort),
				AllowedOrigins: []string{"*"},
			}, n.fetcher, n.registry, resolver)
			if err := n.services.RegisterService(restSvc); err != nil {
				return err
			}
		}
	}

	if !cfg.DisableMonitoring {
		addr := cfg.MonitoringHost + ":" + strconv.Itoa(cfg.MonitoringPort)
		if err := n.services.RegisterService(prometheus.NewService(addr, n.services)); err != nil {
			return err
		}
	}
	return nil
}

// Run starts all services and drives the fetch-and-log loop until the
// context is cancelled or the terminator decides to exit. The returned code
// is the process exit code.
func (n *DutiesNode) Run() int {
	n.services.StartAll()
	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()
	for {
		if code, exit := n.runCycle(); exit {
			return code
		}
		select {
		case <-ticker.C:
		case <-n.ctx.Done():
			return 0
		}
	}
}

func (n *DutiesNode) runCycle() (int, bool) {
	if !n.store.IsFresh() {
		n.fetcher.InvalidateIdentifierCache()
		upcoming, err := n.fetcher.UpcomingDuties(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return 0, false
			}
			log.WithError(err).Warn("Could not fetch upcoming duties")
			return 0, false
		}
		n.store.Set(upcoming)
	}
	snapshot := n.store.Get()
	if n.cfg.Mode != cicd.ModeNoLog {
		n.dutyLogger.LogCycle(snapshot)
	}
	return n.terminator.Evaluate(snapshot)
}

// Close stops every registered service in reverse order.
func (n *DutiesNode) Close() {
	n.cancel()
	n.services.StopAll()
	log.Info("Happy staking. See you for next maintenance \U0001F642 !")
}

func tokenSource(cfg *flags.Config) registry.TokenSource {
	return func() ([]string, error) {
		if cfg.ValidatorsFile == "" {
			return cfg.ValidatorTokens, nil
		}
		f, err := os.Open(cfg.ValidatorsFile)
		if err != nil {
			return nil, errors.Wrap(err, "could not open validators file")
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.WithError(err).Debug("Could not close validators file")
			}
		}()
		var tokens []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			token := strings.TrimSpace(scanner.Text())
			if token != "" {
				tokens = append(tokens, token)
			}
		}
		return tokens, scanner.Err()
	}
}

func readValidatorNodes(path string) ([]*keymanager.Node, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open validator nodes file")
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Debug("Could not close validator nodes file")
		}
	}()
	var nodes []*keymanager.Node
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		node, err := keymanager.ParseNode(line)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, scanner.Err()
}
