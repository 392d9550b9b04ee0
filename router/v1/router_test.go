package v1_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ojo-network/rofl-price-oracle/oracle/observer"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	v1 "github.com/ojo-network/rofl-price-oracle/router/v1"
)

type fakeOracle struct {
	statuses map[types.TradingPair]observer.Status
}

func (f *fakeOracle) PairStatuses() map[types.TradingPair]observer.Status {
	return f.statuses
}

func newTestServer(statuses map[types.TradingPair]observer.Status) *httptest.Server {
	router := v1.New(&fakeOracle{statuses: statuses}, zerolog.Nop())
	return httptest.NewServer(router.Handler())
}

func TestHealthReportsOKWhenAllPairsHaveActiveSources(t *testing.T) {
	pair := types.NewTradingPair("btc", "usd")
	srv := newTestServer(map[types.TradingPair]observer.Status{
		pair: {Pair: pair, ActiveSources: 2, ConfiguredSources: 3},
	})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthReportsDegradedWhenAPairHasNoActiveSources(t *testing.T) {
	pair := types.NewTradingPair("btc", "usd")
	srv := newTestServer(map[types.TradingPair]observer.Status{
		pair: {Pair: pair, ActiveSources: 0, ConfiguredSources: 3},
	})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPricesListsEveryPair(t *testing.T) {
	btc := types.NewTradingPair("btc", "usd")
	eth := types.NewTradingPair("eth", "usd")
	srv := newTestServer(map[types.TradingPair]observer.Status{
		btc: {Pair: btc, LastGoodPrice: 65000, LastGoodPriceOK: true, ActiveSources: 3, ConfiguredSources: 3, LastSubmit: time.Now()},
		eth: {Pair: eth, LastGoodPriceOK: false},
	})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/prices")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body, 2)
}

func TestPriceByPairReturnsNotFoundForUnknownPair(t *testing.T) {
	srv := newTestServer(map[types.TradingPair]observer.Status{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/prices/btc/usd")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPriceByPairReturnsSnapshot(t *testing.T) {
	pair := types.NewTradingPair("btc", "usd")
	srv := newTestServer(map[types.TradingPair]observer.Status{
		pair: {Pair: pair, LastGoodPrice: 65000, LastGoodPriceOK: true, ActiveSources: 3, ConfiguredSources: 3},
	})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/prices/btc/usd")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "btc/usd", body["pair"])
	require.Equal(t, float64(65000), body["price"])
}
