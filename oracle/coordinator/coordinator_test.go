package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/ojo-network/rofl-price-oracle/oracle/adapter"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a hand-written Adapter test double; no network I/O,
// just scripted responses, scripted pair support (nil supported means
// every pair) and call counters.
type fakeAdapter struct {
	name       types.SourceName
	batch      bool
	prices     map[types.TradingPair]float64
	supported  map[types.TradingPair]bool
	sleep      time.Duration
	batchCalls int
	fetchCalls int
}

func (f *fakeAdapter) Name() types.SourceName { return f.name }
func (f *fakeAdapter) HasAPIKey() bool        { return true }
func (f *fakeAdapter) SupportsBatch() bool    { return f.batch }

func (f *fakeAdapter) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	if f.supported == nil {
		return true
	}
	return f.supported[pair]
}

func (f *fakeAdapter) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	f.fetchCalls++
	if f.sleep > 0 {
		select {
		case <-time.After(f.sleep):
		case <-ctx.Done():
			return 0, false
		}
	}
	price, ok := f.prices[pair]
	return price, ok
}

func (f *fakeAdapter) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	f.batchCalls++
	if f.sleep > 0 {
		select {
		case <-time.After(f.sleep):
		case <-ctx.Done():
			return nil
		}
	}
	out := make(map[types.TradingPair]float64)
	for _, p := range pairs {
		if price, ok := f.prices[p]; ok {
			out[p] = price
		}
	}
	return out
}

var _ adapter.Adapter = (*fakeAdapter)(nil)

func btcUsd() types.TradingPair { return types.NewTradingPair("btc", "usd") }
func ethUsd() types.TradingPair { return types.NewTradingPair("eth", "usd") }

func TestFetchAllUsesBatchEndpoint(t *testing.T) {
	a := &fakeAdapter{
		name:  "binance",
		batch: true,
		prices: map[types.TradingPair]float64{
			btcUsd(): 50000,
			ethUsd(): 3000,
		},
	}
	c := New(map[types.SourceName]adapter.Adapter{"binance": a}, time.Second)

	results := c.FetchAll(context.Background(), []types.TradingPair{btcUsd(), ethUsd()}, nil)

	require.Equal(t, 1, a.batchCalls)
	require.Equal(t, 0, a.fetchCalls)
	require.Equal(t, 50000.0, results[btcUsd()]["binance"])
	require.Equal(t, 3000.0, results[ethUsd()]["binance"])
}

func TestFetchAllFansOutIndividualFetches(t *testing.T) {
	a := &fakeAdapter{
		name:  "coinbase",
		batch: false,
		prices: map[types.TradingPair]float64{
			btcUsd(): 50500,
			ethUsd(): 3010,
		},
	}
	c := New(map[types.SourceName]adapter.Adapter{"coinbase": a}, time.Second)

	results := c.FetchAll(context.Background(), []types.TradingPair{btcUsd(), ethUsd()}, nil)

	require.Equal(t, 0, a.batchCalls)
	require.Equal(t, 2, a.fetchCalls)
	require.Equal(t, 50500.0, results[btcUsd()]["coinbase"])
	require.Equal(t, 3010.0, results[ethUsd()]["coinbase"])
}

func TestFetchAllTimeoutYieldsNoResultsForThatSource(t *testing.T) {
	a := &fakeAdapter{
		name:   "slow",
		batch:  true,
		sleep:  50 * time.Millisecond,
		prices: map[types.TradingPair]float64{btcUsd(): 50000},
	}
	c := New(map[types.SourceName]adapter.Adapter{"slow": a}, 5*time.Millisecond)

	results := c.FetchAll(context.Background(), []types.TradingPair{btcUsd()}, nil)

	_, ok := results[btcUsd()]["slow"]
	require.False(t, ok)
}

func TestFetchAllRespectsActiveSources(t *testing.T) {
	a := &fakeAdapter{
		name:  "kraken",
		batch: true,
		prices: map[types.TradingPair]float64{
			btcUsd(): 50000,
		},
	}
	c := New(map[types.SourceName]adapter.Adapter{"kraken": a}, time.Second)

	active := map[types.TradingPair][]types.SourceName{
		btcUsd(): {"some-other-source"},
	}
	results := c.FetchAll(context.Background(), []types.TradingPair{btcUsd()}, active)

	_, ok := results[btcUsd()]["kraken"]
	require.False(t, ok)
}

func TestFetchAllSkipsUnsupportedPairs(t *testing.T) {
	a := &fakeAdapter{
		name:      "bitstamp",
		batch:     false,
		supported: map[types.TradingPair]bool{btcUsd(): true},
		prices:    map[types.TradingPair]float64{btcUsd(): 50000, ethUsd(): 3000},
	}
	c := New(map[types.SourceName]adapter.Adapter{"bitstamp": a}, time.Second)

	results := c.FetchAll(context.Background(), []types.TradingPair{btcUsd(), ethUsd()}, nil)

	require.Equal(t, 50000.0, results[btcUsd()]["bitstamp"])
	_, ok := results[ethUsd()]["bitstamp"]
	require.False(t, ok)
}

func TestFetchAllEmptyPairsReturnsEmptyMap(t *testing.T) {
	c := New(map[types.SourceName]adapter.Adapter{}, time.Second)
	results := c.FetchAll(context.Background(), nil, nil)
	require.Empty(t, results)
}

func TestFetchAllAlwaysReturnsEntryPerPair(t *testing.T) {
	c := New(map[types.SourceName]adapter.Adapter{}, time.Second)
	results := c.FetchAll(context.Background(), []types.TradingPair{btcUsd()}, nil)
	require.Contains(t, results, btcUsd())
	require.Empty(t, results[btcUsd()])
}
