package oracle

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ojo-network/rofl-price-oracle/chain"
	"github.com/ojo-network/rofl-price-oracle/config"
)

// fakeChain is a hand-written chain.Client test double whose Feeds
// answers come from a map keyed by feed hash.
type fakeChain struct {
	addresses map[[32]byte]common.Address
	decimals  uint8
}

func (f *fakeChain) Feeds(ctx context.Context, feedHash [32]byte) (common.Address, error) {
	if addr, ok := f.addresses[feedHash]; ok {
		return addr, nil
	}
	return common.Address{}, nil
}

func (f *fakeChain) AddFeed(ctx context.Context, name string, aggregator common.Address, enabled bool) (common.Hash, error) {
	return common.Hash{}, nil
}

func (f *fakeChain) Decimals(ctx context.Context, aggregator common.Address) (uint8, error) {
	return f.decimals, nil
}

func (f *fakeChain) Description(ctx context.Context, aggregator common.Address) (string, error) {
	return "", nil
}

func (f *fakeChain) SetDecimals(ctx context.Context, aggregator common.Address, decimals uint8) (common.Hash, error) {
	return common.Hash{}, nil
}

func (f *fakeChain) SetDescription(ctx context.Context, aggregator common.Address, description string) (common.Hash, error) {
	return common.Hash{}, nil
}

func (f *fakeChain) LatestRoundData(ctx context.Context, aggregator common.Address) (chain.RoundData, error) {
	return chain.RoundData{RoundID: big.NewInt(0), Answer: big.NewInt(0)}, nil
}

func (f *fakeChain) SubmitObservation(ctx context.Context, aggregator common.Address, roundID, answer *big.Int, startedAt, updatedAt int64, gasPrice *big.Int) (common.Hash, error) {
	return common.HexToHash("0x1"), nil
}

func (f *fakeChain) GasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

var _ chain.Client = (*fakeChain)(nil)

func testConfig() config.Config {
	cfg := config.Config{
		Pairs:        []config.Pair{{Base: "btc", Quote: "usd"}},
		Sources:      []string{"binance", "coinbase", "kraken"},
		MinSources:   1,
		MaxDeviation: 10,
		DriftLimit:   0,
		FetchPeriod:  50 * time.Millisecond,
		SubmitPeriod: 10 * time.Second,
		FetchTimeout: 2 * time.Second,
		Network:      "sapphire-testnet",
		Addresses:    []string{"0x0000000000000000000000000000000000000099"},
	}
	return cfg
}

func TestNewBuildsAdapterSetFromConfig(t *testing.T) {
	cfg := testConfig()
	fc := &fakeChain{decimals: 6}
	o := New(zerolog.Nop(), cfg, fc)

	require.Len(t, o.adapters, 3)
	require.Contains(t, o.adapters, "binance" /* types.SourceName is a string alias */)
}

func TestInitObserversUsesPreconfiguredAddress(t *testing.T) {
	cfg := testConfig()
	fc := &fakeChain{decimals: 6}
	o := New(zerolog.Nop(), cfg, fc)

	err := o.initObservers(context.Background(), []byte{0x01})
	require.NoError(t, err)
	require.Len(t, o.observers, 1)
}

func TestInitObserversFailsWithNoAddressAndNoDirectoryEntry(t *testing.T) {
	cfg := testConfig()
	cfg.Addresses = nil
	fc := &fakeChain{decimals: 6, addresses: map[[32]byte]common.Address{}}
	o := New(zerolog.Nop(), cfg, fc)

	err := o.initObservers(context.Background(), []byte{0x01})
	require.Error(t, err)
}

func TestInitObserversFailsWhenNoSourceSupportsPair(t *testing.T) {
	cfg := testConfig()
	cfg.Sources = []string{"eodhd"}
	cfg.Pairs = []config.Pair{{Base: "xyz", Quote: "eur"}}
	fc := &fakeChain{decimals: 6}
	o := New(zerolog.Nop(), cfg, fc)

	err := o.initObservers(context.Background(), []byte{0x01})
	require.Error(t, err)
}

func TestStartStopsCleanlyOnContextCancel(t *testing.T) {
	cfg := testConfig()
	fc := &fakeChain{decimals: 6}
	o := New(zerolog.Nop(), cfg, fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- o.Start(ctx, []byte{0x01})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestStopSignalsRunLoopToExit(t *testing.T) {
	cfg := testConfig()
	fc := &fakeChain{decimals: 6}
	o := New(zerolog.Nop(), cfg, fc)

	done := make(chan error, 1)
	go func() {
		done <- o.Start(context.Background(), []byte{0x01})
	}()

	time.Sleep(20 * time.Millisecond)
	o.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
