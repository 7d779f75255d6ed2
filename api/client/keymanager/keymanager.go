// Package keymanager talks to validator client key-manager APIs. Each
// endpoint carries its own bearer token and is health-checked on an
// interval; keystore listings feed the identifier registry.
package keymanager

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethduties/eth-duties/api/client"
	"github.com/ethduties/eth-duties/config/params"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "keymanager")

const (
	localKeystoresEndpoint = "/eth/v1/keystores"
	remoteKeysEndpoint     = "/eth/v1/remotekeys"
	// The pubkey is irrelevant for the health probe, any well-formed value
	// yields a data or message body on a live key manager.
	healthcheckEndpoint = "/eth/v1/validator/0xa99a76ed7796c7be733b8bb7bc2c2d4fa622dfec1e090cf80b41f8ae375e06bc72bd4b3e319ef6ecb8f821a338da47cd/feerecipient"
)

// Node is one configured key-manager endpoint.
type Node struct {
	URL    string
	Token  string
	client *client.Client
}

// ParseNode parses one `<URL>;<BEARER>` line from the validator-nodes file.
func ParseNode(line string) (*Node, error) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, errors.Errorf("validator node entry %q must be of form <URL>;<BEARER-TOKEN>", line)
	}
	if !strings.HasPrefix(parts[0], "http://") && !strings.HasPrefix(parts[0], "https://") {
		return nil, errors.Errorf("validator node url %q must start with http:// or https://", parts[0])
	}
	c, err := client.NewClient(parts[0],
		client.WithTimeout(params.DutiesConf().RequestTimeout),
		client.WithAuthenticationToken(parts[1]),
	)
	if err != nil {
		return nil, err
	}
	return &Node{URL: parts[0], Token: parts[1], client: c}, nil
}

type keystoreRow struct {
	ValidatingPubkey string `json:"validating_pubkey"`
	Pubkey           string `json:"pubkey"`
}

// ListValidatingPubkeys fetches local keystores and remote keys from the
// node. Up to three attempts per endpoint; on exhaustion the node
// contributes nothing and a warning is logged.
func (n *Node) ListValidatingPubkeys(ctx context.Context) []string {
	var pubkeys []string
	for _, endpoint := range []string{localKeystoresEndpoint, remoteKeysEndpoint} {
		rows, err := n.fetchKeys(ctx, endpoint)
		if err != nil {
			log.WithField("node", n.URL).WithError(err).Warn("No validator identifiers fetched from validator node")
			continue
		}
		for _, row := range rows {
			if row.ValidatingPubkey != "" {
				pubkeys = append(pubkeys, row.ValidatingPubkey)
			} else if row.Pubkey != "" {
				pubkeys = append(pubkeys, row.Pubkey)
			}
		}
	}
	return pubkeys
}

func (n *Node) fetchKeys(ctx context.Context, endpoint string) ([]keystoreRow, error) {
	cfg := params.DutiesConf()
	var lastErr error
	for attempt := 0; attempt < cfg.KeymanagerRequestRetryLimit; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		body, err := n.client.Get(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		envelope := struct {
			Data    []keystoreRow `json:"data"`
			Message string        `json:"message"`
		}{}
		if err := json.Unmarshal(body, &envelope); err != nil {
			lastErr = errors.Wrap(err, "malformed keystore response")
			continue
		}
		if envelope.Data == nil && envelope.Message != "" {
			// Known limitation: some validator clients do not expose remote
			// keys and answer with a message body instead.
			log.WithFields(logrus.Fields{
				"node":    n.URL,
				"message": envelope.Message,
			}).Debug("Validator node does not expose this keystore endpoint")
			return nil, nil
		}
		return envelope.Data, nil
	}
	return nil, lastErr
}
