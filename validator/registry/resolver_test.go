package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethduties/eth-duties/api/client/beacon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBeacon(t *testing.T, validators http.HandlerFunc) *beacon.Pool {
	mux := http.NewServeMux()
	mux.HandleFunc("/eth/v1/node/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(stateValidatorsEndpoint, validators)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	pool, err := beacon.NewPool([]string{srv.URL})
	require.NoError(t, err)
	return pool
}

func stateRow(index, status, pubkey string) string {
	return fmt.Sprintf(`{"index":"%s","status":"%s","validator":{"pubkey":"%s"}}`, index, status, pubkey)
}

func TestResolveFiltersInactive(t *testing.T) {
	pubkeyA := "0x" + strings.Repeat("aa", 48)
	pubkeyB := "0x" + strings.Repeat("bb", 48)
	pool := fakeBeacon(t, func(w http.ResponseWriter, r *http.Request) {
		rows := []string{
			stateRow("12", "active_ongoing", pubkeyA),
			stateRow("42", "exited_unslashed", pubkeyB),
		}
		fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(rows, ","))
	})
	resolver := NewResolver(pool)

	active, err := resolver.Resolve(context.Background(), map[string]Identifier{
		"12": {Index: "12"},
		"42": {Index: "42"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, len(active))
	assert.Equal(t, pubkeyA, active["12"].Pubkey)
}

func TestResolveKeepsAliasFromIndexEntryOnDuplicate(t *testing.T) {
	pubkey := "0x" + strings.Repeat("cc", 48)
	pool := fakeBeacon(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[%s]}`, stateRow("7", "active_ongoing", pubkey))
	})
	resolver := NewResolver(pool)

	active, err := resolver.Resolve(context.Background(), map[string]Identifier{
		"7":    {Index: "7", Alias: "from-index"},
		pubkey: {Pubkey: pubkey, Alias: "from-pubkey"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, len(active))
	assert.Equal(t, "from-index", active["7"].Alias)
	assert.Equal(t, pubkey, active["7"].Pubkey)
}

func TestResolveTakesAliasFromPubkeyWhenIndexHasNone(t *testing.T) {
	pubkey := "0x" + strings.Repeat("dd", 48)
	pool := fakeBeacon(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[%s]}`, stateRow("9", "active_slashed", pubkey))
	})
	resolver := NewResolver(pool)

	active, err := resolver.Resolve(context.Background(), map[string]Identifier{
		"9":    {Index: "9"},
		pubkey: {Pubkey: pubkey, Alias: "standby"},
	})
	require.NoError(t, err)
	assert.Equal(t, "standby", active["9"].Alias)
}

func TestResolveSendsProvidedIdentifiersAsQuery(t *testing.T) {
	var gotQuery string
	pool := fakeBeacon(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"data":[]}`)
	})
	resolver := NewResolver(pool)

	_, err := resolver.Resolve(context.Background(), map[string]Identifier{
		"3": {Index: "3"},
		"1": {Index: "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id=1,3", gotQuery)
}

func TestResolveEmptyInput(t *testing.T) {
	resolver := NewResolver(nil)
	active, err := resolver.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, len(active))
}
