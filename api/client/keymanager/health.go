package keymanager

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethduties/eth-duties/api/client"
	"github.com/pkg/errors"
)

// HealthTracker probes the configured key-manager endpoints and publishes
// the healthy subset as a whole-slice snapshot.
type HealthTracker struct {
	nodes []*Node

	sync.RWMutex
	healthy    []*Node
	lastReport string
}

// NewHealthTracker builds a tracker over the provided nodes. Duplicate urls
// are collapsed.
func NewHealthTracker(nodes []*Node) *HealthTracker {
	seen := make(map[string]struct{}, len(nodes))
	deduped := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.URL]; ok {
			continue
		}
		seen[n.URL] = struct{}{}
		deduped = append(deduped, n)
	}
	return &HealthTracker{nodes: deduped}
}

// Healthy returns the current healthy snapshot.
func (t *HealthTracker) Healthy() []*Node {
	t.RLock()
	defer t.RUnlock()
	out := make([]*Node, len(t.healthy))
	copy(out, t.healthy)
	return out
}

// CheckAll probes every node once and swaps in the new healthy snapshot.
func (t *HealthTracker) CheckAll(ctx context.Context) {
	if len(t.nodes) == 0 {
		return
	}
	var healthy []*Node
	for _, node := range t.nodes {
		if node.isHealthy(ctx) {
			healthy = append(healthy, node)
		}
	}
	t.Lock()
	t.healthy = healthy
	t.Unlock()
	t.logHealth(healthy)
}

// A node is healthy when the feerecipient probe answers with a JSON body
// carrying either a data or a message field. 401/403 means a bad token.
func (n *Node) isHealthy(ctx context.Context) bool {
	body, err := n.client.Get(ctx, healthcheckEndpoint)
	if errors.Is(err, client.ErrUnauthorized) {
		log.WithField("node", n.URL).Error("Authorization failed for validator node, check the bearer token")
		return false
	}
	if err != nil && len(body) == 0 {
		return false
	}
	probe := struct {
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Data != nil || probe.Message != ""
}

// Transition logs: all healthy, none healthy, or the unhealthy stragglers.
func (t *HealthTracker) logHealth(healthy []*Node) {
	report := ""
	for _, n := range healthy {
		report += n.URL + ";"
	}
	t.Lock()
	changed := report != t.lastReport
	t.lastReport = report
	t.Unlock()
	if !changed {
		return
	}
	switch {
	case len(healthy) == len(t.nodes):
		log.Info("All validator nodes are healthy")
	case len(healthy) == 0:
		log.Error("No healthy validator node available")
	default:
		healthySet := make(map[string]struct{}, len(healthy))
		for _, n := range healthy {
			healthySet[n.URL] = struct{}{}
		}
		for _, n := range t.nodes {
			if _, ok := healthySet[n.URL]; !ok {
				log.WithField("node", n.URL).Error("Validator node is not healthy")
			}
		}
	}
}
