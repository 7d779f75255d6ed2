package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethduties/eth-duties/api/client/beacon"
	"github.com/ethduties/eth-duties/config/params"
	"github.com/ethduties/eth-duties/duties"
	"github.com/ethduties/eth-duties/time/slots"
	"github.com/ethduties/eth-duties/validator/registry"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGenesis = uint64(1600000000)

func testPubkey(seed string) string {
	return "0x" + strings.Repeat(seed, 48)
}

// testService wires the handlers against a fake beacon node. The clock pins
// the current slot to 322 (epoch 10).
func testService(t *testing.T, beaconHandler http.HandlerFunc) (*Service, *mux.Router) {
	m := http.NewServeMux()
	m.HandleFunc("/eth/v1/node/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	m.HandleFunc("/", beaconHandler)
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)

	pool, err := beacon.NewPool([]string{srv.URL})
	require.NoError(t, err)
	now := time.Unix(int64(testGenesis)+322*12, 0)
	clock := slots.NewClockWithNower(testGenesis, func() time.Time { return now })

	reg := registry.New()
	reg.Seed(map[string]registry.Identifier{
		"100": {Index: "100", Pubkey: testPubkey("aa")},
	})
	fetcher := duties.NewFetcher(pool, clock, reg, duties.FetcherConfig{MaxAttestationDutyLogs: 50})

	s := &Service{
		ctx:      context.Background(),
		fetcher:  fetcher,
		registry: reg,
		resolver: registry.NewResolver(pool),
	}
	router := mux.NewRouter()
	s.registerRoutes(router)
	return s, router
}

func TestRawAttestationDuties(t *testing.T) {
	_, router := testService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eth/v1/validator/duties/attester/10", r.URL.Path)
		fmt.Fprintf(w, `{"data":[{"pubkey":"%s","validator_index":"100","slot":"327"}]}`, testPubkey("aa"))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/duties/raw/attestation", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out []duties.Duty
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 1, len(out))
	assert.Equal(t, duties.Attestation, out[0].Type)
	assert.Equal(t, uint64(327), uint64(out[0].Slot))
}

func TestRawDutiesTimeoutReturns503(t *testing.T) {
	old := params.DutiesConf()
	c := *old
	c.RawDutyRequestTimeout = 50 * time.Millisecond
	c.ReadTimeoutWaitingTime = time.Millisecond
	params.OverrideDutiesConf(&c)
	t.Cleanup(func() { params.OverrideDutiesConf(old) })

	_, router := testService(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `{"data":[]}`)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/duties/raw/proposing", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"detail":"no beacon node connection"}`, rec.Body.String())
}

func TestAnyDuties(t *testing.T) {
	_, router := testService(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "attester") {
			fmt.Fprintf(w, `{"data":[{"pubkey":"%s","validator_index":"100","slot":"327"}]}`, testPubkey("aa"))
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/duties/any", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"any":true}`, rec.Body.String())
}

func TestAddIdentifiers(t *testing.T) {
	s, router := testService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eth/v1/beacon/states/head/validators", r.URL.Path)
		fmt.Fprintf(w, `{"data":[{"index":"200","status":"active_ongoing","validator":{"pubkey":"%s"}}]}`,
			testPubkey("bb"))
	})

	body := strings.NewReader(`["200;standby"]`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/validator/identifier", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	var added []identifierView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Equal(t, 1, len(added))
	assert.Equal(t, "200", added[0].Index)
	assert.Equal(t, "standby", added[0].Alias)
	assert.Equal(t, 2, s.registry.Len())
}

func TestAddIdentifiersAllMalformed(t *testing.T) {
	s, router := testService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no beacon call expected")
	})

	body := strings.NewReader(`["0xdeadbeef", "not-a-validator"]`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/validator/identifier", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"identifiers":["0xdeadbeef","not-a-validator"]}`, rec.Body.String())
	assert.Equal(t, 1, s.registry.Len())
}

func TestRemoveIdentifiers(t *testing.T) {
	s, router := testService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no beacon call expected")
	})

	body := strings.NewReader(`["100"]`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/validator/identifier", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var removed []identifierView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &removed))
	require.Equal(t, 1, len(removed))
	assert.Equal(t, "100", removed[0].Index)
	assert.Equal(t, 0, s.registry.Len())
}

func TestAddThenRemoveLeavesRegistryUnchanged(t *testing.T) {
	s, router := testService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"index":"200","status":"active_ongoing","validator":{"pubkey":"%s"}}]}`,
			testPubkey("bb"))
	})
	before := s.registry.ActiveIdentifiers()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/validator/identifier", strings.NewReader(`["200"]`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodDelete, "/validator/identifier", strings.NewReader(`["200"]`)))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, before, s.registry.ActiveIdentifiers())
}
