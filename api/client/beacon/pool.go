// Package beacon implements the beacon node connection pool and the chunked,
// retrying request layer every duty fetch goes through.
package beacon

import (
	"context"
	"sync"
	"time"

	"github.com/ethduties/eth-duties/api/client"
	"github.com/ethduties/eth-duties/config/params"
	"github.com/ethduties/eth-duties/io/logs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "beacon")

const healthEndpoint = "/eth/v1/node/health"

// Pool tracks an ordered list of beacon nodes. The first node is the
// primary, the rest are backups tried in order.
type Pool struct {
	nodes []*client.Client

	sync.Mutex
	anyHealthy      bool
	lastUsedURL     string
	lastUsedLogTime time.Time
	lastDownLogTime time.Time
}

// NewPool builds a pool from the ordered beacon node urls.
func NewPool(urls []string) (*Pool, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one beacon node url is required")
	}
	nodes := make([]*client.Client, 0, len(urls))
	for _, u := range urls {
		c, err := client.NewClient(u, client.WithTimeout(params.DutiesConf().RequestTimeout))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid beacon node url %s", u)
		}
		nodes = append(nodes, c)
	}
	return &Pool{nodes: nodes, anyHealthy: true}, nil
}

// SelectHealthy returns the first node whose health endpoint responds with
// 200 within the request timeout. When no node responds the primary is
// returned anyway and AnyHealthy flips to false so callers can surface a
// stale-data warning. The health checks run outside the mutex so concurrent
// chunk fan-out and AnyHealthy readers never wait behind a slow node.
func (p *Pool) SelectHealthy(ctx context.Context) *client.Client {
	now := time.Now()
	for i, node := range p.nodes {
		if p.isNodeHealthy(ctx, node) {
			p.logUsedNode(now, node.NodeURL())
			return node
		}
		p.logNodeDown(now, node.NodeURL(), i == 0)
		if i == len(p.nodes)-1 {
			p.Lock()
			p.anyHealthy = false
			p.Unlock()
			unhealthyPoolTotal.Inc()
			log.Error("None of the provided beacon nodes is ready to accept requests")
		}
	}
	return p.nodes[0]
}

// AnyHealthy reports whether the last selection found a responsive node.
func (p *Pool) AnyHealthy() bool {
	p.Lock()
	defer p.Unlock()
	return p.anyHealthy
}

// Primary returns the configured primary node.
func (p *Pool) Primary() *client.Client {
	return p.nodes[0]
}

func (p *Pool) isNodeHealthy(ctx context.Context, node *client.Client) bool {
	_, err := node.Get(ctx, healthEndpoint)
	return err == nil
}

// The "using beacon node" line is emitted at most once every two minutes
// unless the chosen node changes or healthiness transitions.
func (p *Pool) logUsedNode(now time.Time, url string) {
	p.Lock()
	defer p.Unlock()
	cfg := params.DutiesConf()
	switch {
	case now.After(p.lastUsedLogTime.Add(cfg.UsedBeaconNodeLogInterval)),
		!p.anyHealthy,
		url != p.lastUsedURL:
		log.WithField("node", logs.MaskCredentials(url)).Info("Using beacon node")
		p.lastUsedLogTime = now
		p.anyHealthy = true
		p.lastUsedURL = url
	}
}

func (p *Pool) logNodeDown(now time.Time, url string, isPrimary bool) {
	p.Lock()
	defer p.Unlock()
	cfg := params.DutiesConf()
	if !now.After(p.lastDownLogTime.Add(cfg.NodeDownLogInterval)) {
		return
	}
	if isPrimary {
		log.WithField("node", logs.MaskCredentials(url)).Warn("Primary beacon node is not ready to accept requests")
	}
	if len(p.nodes) > 1 {
		log.Info("Trying backup nodes")
	}
	p.lastDownLogTime = now
}
