package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/ethduties/eth-duties/config/params"
	"github.com/ethduties/eth-duties/duties"
	"github.com/ethduties/eth-duties/validator/registry"
)

type noBeaconNodeConnection struct {
	Detail string `json:"detail"`
}

type anyDuties struct {
	Any bool `json:"any"`
}

type badIdentifiers struct {
	Identifiers []string `json:"identifiers"`
}

// identifierView is the JSON shape of a validator identifier.
type identifierView struct {
	Index  string `json:"index"`
	Pubkey string `json:"pubkey"`
	Alias  string `json:"alias,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Could not write response body")
	}
}

func writeNoConnection(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, noBeaconNodeConnection{Detail: "no beacon node connection"})
}

// rawDutiesHandler serves one freshly fetched duty table, bounded by the raw
// request timeout. A timeout means no beacon node answered.
func (s *Service) rawDutiesHandler(dutyType duties.DutyType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), params.DutiesConf().RawDutyRequestTimeout)
		defer cancel()
		var table map[string]duties.Duty
		var err error
		switch dutyType {
		case duties.Attestation:
			table, err = s.fetcher.AttesterDuties(ctx)
		case duties.SyncCommittee:
			table, err = s.fetcher.SyncCommitteeDuties(ctx)
		case duties.Proposing:
			table, err = s.fetcher.ProposerDuties(ctx)
		}
		if err != nil {
			writeNoConnection(w)
			return
		}
		out := make([]duties.Duty, 0, len(table))
		for _, duty := range table {
			out = append(out, duty)
		}
		duties.SortDuties(out)
		writeJSON(w, http.StatusOK, out)
	}
}

// anyDutiesHandler reports whether any duty is upcoming, bounded by the any
// request timeout.
func (s *Service) anyDutiesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), params.DutiesConf().AnyDutyRequestTimeout)
	defer cancel()
	all, err := s.fetcher.UpcomingDuties(ctx)
	if err != nil {
		writeNoConnection(w)
		return
	}
	writeJSON(w, http.StatusOK, anyDuties{Any: len(all) > 0})
}

func readTokens(r *http.Request) ([]string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var tokens []string
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// addIdentifiersHandler parses the supplied tokens, resolves them against
// the chain and unions them into the registry. All-malformed input is a 400
// echoing the rejected tokens.
func (s *Service) addIdentifiersHandler(w http.ResponseWriter, r *http.Request) {
	tokens, err := readTokens(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badIdentifiers{Identifiers: []string{}})
		return
	}
	raw := registry.ParseTokens(tokens)
	if len(raw) == 0 {
		writeJSON(w, http.StatusBadRequest, badIdentifiers{Identifiers: tokens})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), params.DutiesConf().AnyDutyRequestTimeout)
	defer cancel()
	resolved, err := s.resolver.Resolve(ctx, raw)
	if err != nil {
		writeNoConnection(w)
		return
	}
	added := s.registry.Union(resolved)
	s.fetcher.InvalidateIdentifierCache()
	log.WithField("validators", identifierKeys(added)).Info("POST validator identifiers")
	writeJSON(w, http.StatusCreated, identifierViews(added))
}

// removeIdentifiersHandler deletes every registry entry matching one of the
// supplied tokens by index or pubkey.
func (s *Service) removeIdentifiersHandler(w http.ResponseWriter, r *http.Request) {
	tokens, err := readTokens(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, badIdentifiers{Identifiers: []string{}})
		return
	}
	raw := registry.ParseTokens(tokens)
	if len(raw) == 0 {
		writeJSON(w, http.StatusBadRequest, badIdentifiers{Identifiers: tokens})
		return
	}
	removed := s.registry.Remove(raw)
	s.fetcher.InvalidateIdentifierCache()
	log.WithField("validators", identifierKeys(removed)).Info("DELETE validator identifiers")
	writeJSON(w, http.StatusOK, identifierViews(removed))
}

func identifierViews(ids []registry.Identifier) []identifierView {
	out := make([]identifierView, 0, len(ids))
	for _, id := range ids {
		out = append(out, identifierView{Index: id.Index, Pubkey: id.Pubkey, Alias: id.Alias})
	}
	return out
}

func identifierKeys(ids []registry.Identifier) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.Key())
	}
	sort.Strings(keys)
	return keys
}
