package keymanager

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNode(t *testing.T) {
	node, err := ParseNode("http://localhost:5062;secret-token")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5062", node.URL)
	assert.Equal(t, "secret-token", node.Token)

	_, err = ParseNode("http://localhost:5062")
	require.Error(t, err)

	_, err = ParseNode("localhost:5062;token")
	require.Error(t, err)

	_, err = ParseNode(";token")
	require.Error(t, err)
}

func testNode(t *testing.T, handler http.Handler) *Node {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	node, err := ParseNode(srv.URL + ";test-token")
	require.NoError(t, err)
	return node
}

func TestListValidatingPubkeys(t *testing.T) {
	node := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case localKeystoresEndpoint:
			fmt.Fprint(w, `{"data":[{"validating_pubkey":"0xaa"},{"validating_pubkey":"0xbb"}]}`)
		case remoteKeysEndpoint:
			fmt.Fprint(w, `{"data":[{"pubkey":"0xcc"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	pubkeys := node.ListValidatingPubkeys(context.Background())
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, pubkeys)
}

func TestListValidatingPubkeysMessageOnlyRemoteKeys(t *testing.T) {
	node := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case localKeystoresEndpoint:
			fmt.Fprint(w, `{"data":[{"validating_pubkey":"0xaa"}]}`)
		case remoteKeysEndpoint:
			// Some validator clients do not expose remote keys.
			fmt.Fprint(w, `{"message":"remote keys not supported"}`)
		}
	}))

	pubkeys := node.ListValidatingPubkeys(context.Background())
	assert.Equal(t, []string{"0xaa"}, pubkeys)
}

func TestFetchKeysGivesUpAfterRetries(t *testing.T) {
	var calls int
	node := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := node.fetchKeys(context.Background(), localKeystoresEndpoint)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestHealthTrackerProbesAndDedupes(t *testing.T) {
	healthy := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, healthcheckEndpoint, r.URL.Path)
		fmt.Fprint(w, `{"data":{"ethaddress":"0x0"}}`)
	}))
	down := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	tracker := NewHealthTracker([]*Node{healthy, down, healthy})
	tracker.CheckAll(context.Background())

	got := tracker.Healthy()
	require.Equal(t, 1, len(got))
	assert.Equal(t, healthy.URL, got[0].URL)
}

func TestIsHealthyMessageBodyCounts(t *testing.T) {
	node := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"message":"no fee recipient set"}`)
	}))
	assert.True(t, node.isHealthy(context.Background()))
}

func TestIsHealthyUnauthorized(t *testing.T) {
	node := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	assert.False(t, node.isHealthy(context.Background()))
}

func TestIsHealthyEmptyBody(t *testing.T) {
	node := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	assert.False(t, node.isHealthy(context.Background()))
}
