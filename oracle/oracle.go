// Package oracle implements the core off-chain aggregation engine: it
// wires together the source adapters, the batch fetch coordinator, and
// one pair observer per configured trading pair, then runs the
// periodic fetch/aggregate/submit loop.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ojo-network/rofl-price-oracle/chain"
	"github.com/ojo-network/rofl-price-oracle/config"
	"github.com/ojo-network/rofl-price-oracle/oracle/adapter"
	"github.com/ojo-network/rofl-price-oracle/oracle/aggregator"
	"github.com/ojo-network/rofl-price-oracle/oracle/coordinator"
	"github.com/ojo-network/rofl-price-oracle/oracle/observer"
	"github.com/ojo-network/rofl-price-oracle/oracle/stablecoin"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	pfsync "github.com/ojo-network/rofl-price-oracle/pkg/sync"
)

// observerStagger is the delay between successive observer
// constructions at startup, to avoid a thundering herd against the
// chain RPC endpoint. It does not apply to the steady-state tick,
// which is a single centralized loop.
const observerStagger = 1 * time.Second

// Oracle is the core off-chain aggregation engine responsible for
// fetching prices for a configured set of trading pairs and writing
// aggregated observations to their on-chain aggregator contracts.
type Oracle struct {
	logger zerolog.Logger
	closer *pfsync.Closer

	cfg         config.Config
	httpClient  *http.Client
	chainClient chain.Client
	stablecoin  *stablecoin.Cache
	coordinator *coordinator.Coordinator
	adapters    map[types.SourceName]adapter.Adapter

	pairs     []types.TradingPair
	observers map[types.TradingPair]*observer.Observer
}

// New constructs an Oracle. Adapters are instantiated immediately;
// pair observers are constructed lazily in Start, once per configured
// pair, since each one requires a contract round-trip.
func New(logger zerolog.Logger, cfg config.Config, chainClient chain.Client) *Oracle {
	httpClient := adapter.NewSharedHTTPClient(cfg.FetchTimeout)
	registry := adapter.DefaultRegistry()

	adapters := make(map[types.SourceName]adapter.Adapter, len(cfg.Sources))
	for _, name := range cfg.SourceNames() {
		a, err := registry.Get(name, httpClient, cfg.APIKeyFor(name))
		if err != nil {
			logger.Warn().Str("source", string(name)).Err(err).Msg("skipping unknown source")
			continue
		}
		adapters[name] = a
	}

	return &Oracle{
		logger:      logger.With().Str("module", "oracle").Logger(),
		closer:      pfsync.NewCloser(),
		cfg:         cfg,
		httpClient:  httpClient,
		chainClient: chainClient,
		stablecoin:  stablecoin.NewCache(stablecoin.DefaultTTL),
		coordinator: coordinator.New(adapters, cfg.FetchTimeout),
		adapters:    adapters,
		pairs:       cfg.TradingPairs(),
		observers:   make(map[types.TradingPair]*observer.Observer),
	}
}

// pairSources resolves, for each configured pair, the ordered list of
// sources that claim to support it (§4.7 step 2).
func (o *Oracle) pairSources(ctx context.Context) map[types.TradingPair][]types.SourceName {
	result := make(map[types.TradingPair][]types.SourceName, len(o.pairs))

	for _, pair := range o.pairs {
		var supporting []types.SourceName
		for _, name := range o.cfg.SourceNames() {
			a, ok := o.adapters[name]
			if !ok {
				continue
			}
			if a.SupportsPair(ctx, pair) {
				supporting = append(supporting, name)
			}
		}
		result[pair] = supporting
	}

	return result
}

// aggregatorAddress resolves the on-chain aggregator contract address
// for a pair: a pre-known address from config wins outright; otherwise
// the directory contract is consulted by feed hash. An unresolvable
// address is a fatal configuration error, per §7 contract_unavailable
// -- contract deployment bootstrap is explicitly out of scope.
func (o *Oracle) aggregatorAddress(ctx context.Context, index int, pair types.TradingPair, appID []byte) (common.Address, error) {
	if addr, ok := o.cfg.AddressFor(index); ok {
		return common.HexToAddress(addr), nil
	}

	feedHash := pair.FeedHash(appID)
	addr, err := o.chainClient.Feeds(ctx, feedHash)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve aggregator for %s: %w", pair.String(), err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no aggregator contract registered for %s", pair.String())
	}
	return addr, nil
}

// Start builds one observer per configured pair and runs the
// fetch/aggregate/submit loop under ctx cancellation until Stop is
// called or ctx is canceled. It returns once the in-flight tick
// completes and the shared HTTP client has been closed.
func (o *Oracle) Start(ctx context.Context, appID []byte) error {
	if err := o.initObservers(ctx, appID); err != nil {
		return err
	}

	o.logSourceSummary()

	ticker := time.NewTicker(o.cfg.FetchPeriod)
	defer ticker.Stop()
	defer o.httpClient.CloseIdleConnections()

	for {
		select {
		case <-ctx.Done():
			o.closer.Close()
			return nil
		case <-o.closer.Done():
			return nil
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// Stop signals the run loop to exit after its in-flight tick
// completes.
func (o *Oracle) Stop() {
	o.closer.Close()
}

func (o *Oracle) initObservers(ctx context.Context, appID []byte) error {
	sources := o.pairSources(ctx)

	for i, pair := range o.pairs {
		supporting := sources[pair]
		if len(supporting) == 0 {
			return fmt.Errorf("no configured source supports pair %s", pair.String())
		}

		addr, err := o.aggregatorAddress(ctx, i, pair, appID)
		if err != nil {
			return err
		}

		cfg := observer.Config{
			SubmitPeriod: o.cfg.SubmitPeriod,
			Aggregator: aggregator.Params{
				MinSources:      o.cfg.MinSources,
				MaxDeviationPct: o.cfg.MaxDeviation,
				DriftLimitPct:   o.cfg.DriftLimit,
			},
		}

		obs, err := observer.New(ctx, pair, addr, o.chainClient, o.stablecoin, supporting, cfg, time.Now())
		if err != nil {
			return fmt.Errorf("init observer for %s: %w", pair.String(), err)
		}
		o.observers[pair] = obs

		if i < len(o.pairs)-1 {
			select {
			case <-time.After(observerStagger):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}

func (o *Oracle) logSourceSummary() {
	var batch, individual int
	for _, a := range o.adapters {
		if a.SupportsBatch() {
			batch++
		} else {
			individual++
		}
	}
	o.logger.Info().Int("batch_sources", batch).Int("individual_sources", individual).Int("pairs", len(o.pairs)).Msg("oracle started")
}

func (o *Oracle) tick(ctx context.Context) {
	now := time.Now()

	active := make(map[types.TradingPair][]types.SourceName, len(o.pairs))
	anyActive := false
	for _, pair := range o.pairs {
		sources := o.observers[pair].ActiveSources(now)
		active[pair] = sources
		if len(sources) > 0 {
			anyActive = true
		}
	}

	if !anyActive {
		o.logger.Debug().Msg("all sources in backoff, skipping tick")
		return
	}

	results := o.coordinator.FetchAll(ctx, o.pairs, active)

	for _, pair := range o.pairs {
		obs := o.observers[pair]
		obs.Receive(results[pair], active[pair], now)

		if obs.ShouldSubmit(now) {
			if err := obs.Submit(ctx, now); err != nil {
				o.logger.Warn().Str("pair", pair.String()).Err(err).Msg("submit failed, retaining observations")
			}
		}
	}
}

// GasPrice exists so callers that want the chain's current gas
// price (e.g. a CLI diagnostic command) don't need to reach into the
// chain client directly.
func (o *Oracle) GasPrice(ctx context.Context) (*big.Int, error) {
	return o.chainClient.GasPrice(ctx)
}

// PairStatuses returns a snapshot of every observer's state, keyed by
// pair, for the control-plane router (component M).
func (o *Oracle) PairStatuses() map[types.TradingPair]observer.Status {
	now := time.Now()
	statuses := make(map[types.TradingPair]observer.Status, len(o.observers))
	for pair, obs := range o.observers {
		statuses[pair] = obs.Status(now)
	}
	return statuses
}
