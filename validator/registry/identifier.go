// Package registry normalises user-supplied validator identifiers into
// canonical, active-only records and shares them between the duty fetcher
// and the REST layer.
package registry

import (
	"regexp"
	"strings"

	"github.com/ethduties/eth-duties/config/params"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "registry")

const (
	aliasSeparator = ";"
	pubkeyPrefix   = "0x"
)

var (
	aliasPattern  = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	hexPattern    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// Identifier is a validator identifier. Before resolution only one of Index
// and Pubkey is set; after resolution both are set and the validator is
// known to be active on chain.
type Identifier struct {
	Index  string `json:"index"`
	Pubkey string `json:"pubkey"`
	Alias  string `json:"alias,omitempty"`
}

// Key returns the value the user supplied, index preferred.
func (id Identifier) Key() string {
	if id.Index != "" {
		return id.Index
	}
	return id.Pubkey
}

// ParseToken parses one raw identifier token. A token is well-formed iff it
// is a decimal integer or 0x plus 96 hex characters, optionally followed by
// ;alias. Malformed tokens yield a warning and an ok=false.
func ParseToken(token string, logged bool) (Identifier, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identifier{}, false
	}
	if strings.Contains(token, ",") {
		if logged {
			log.WithField("identifier", token).Warn("Skipping provided validator identifier due to bad format")
		}
		return Identifier{}, false
	}
	alias := ""
	identifier := token
	if strings.Contains(token, aliasSeparator) {
		stripped := strings.ReplaceAll(token, " ", "")
		parts := strings.SplitN(stripped, aliasSeparator, 2)
		identifier, alias = parts[0], parts[1]
		if !aliasPattern.MatchString(alias) {
			if logged {
				log.WithField("identifier", token).Warn("Skipping provided validator identifier due to bad alias format")
			}
			return Identifier{}, false
		}
	}
	if strings.HasPrefix(identifier, pubkeyPrefix) {
		if !isValidPubkey(identifier[len(pubkeyPrefix):], logged) {
			return Identifier{}, false
		}
		return Identifier{Pubkey: strings.ToLower(identifier), Alias: alias}, true
	}
	if digitsPattern.MatchString(identifier) {
		return Identifier{Index: identifier, Alias: alias}, true
	}
	if logged {
		log.WithField("identifier", token).Warn("Skipping provided validator identifier due to bad format")
	}
	return Identifier{}, false
}

// ParseTokens parses many raw tokens, dropping malformed ones. The result
// maps the supplied index or pubkey to its raw identifier.
func ParseTokens(tokens []string) map[string]Identifier {
	raw := make(map[string]Identifier, len(tokens))
	for _, token := range tokens {
		id, ok := ParseToken(token, true)
		if !ok {
			continue
		}
		raw[id.Key()] = id
	}
	return raw
}

func isValidPubkey(pubkey string, logged bool) bool {
	if !hexPattern.MatchString(pubkey) {
		if logged {
			log.WithField("pubkey", pubkeyPrefix+pubkey).Error("Pubkey is not hexadecimal")
		}
		return false
	}
	if len(pubkey) != params.DutiesConf().BLSPubkeyLength*2 {
		if logged {
			log.WithField("pubkey", pubkeyPrefix+pubkey).Error("Wrong or incomplete provided pubkey")
		}
		return false
	}
	return true
}
