// Package observer owns the per-pair price aggregation and on-chain
// submission lifecycle: receiving fetched prices, aggregating them,
// accumulating observations, and periodically submitting a rolled-up
// observation to the pair's aggregator contract.
package observer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ojo-network/rofl-price-oracle/chain"
	"github.com/ojo-network/rofl-price-oracle/metrics"
	"github.com/ojo-network/rofl-price-oracle/oracle/aggregator"
	"github.com/ojo-network/rofl-price-oracle/oracle/health"
	"github.com/ojo-network/rofl-price-oracle/oracle/stablecoin"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// observation is a single accumulated (scaled price, timestamp) pair
// pending submission.
type observation struct {
	priceScaled *big.Int
	timestamp   int64
}

// Config parameterizes an Observer's aggregation and submission
// behavior.
type Config struct {
	SubmitPeriod time.Duration
	Aggregator   aggregator.Params
}

// Observer owns one trading pair's aggregation and submission state.
// Ported from original_source/oracle/src/PairObserver.py.
type Observer struct {
	pair       types.TradingPair
	aggregator common.Address
	chain      chain.Client
	stablecoin *stablecoin.Cache
	health     *health.Tracker
	sources    []types.SourceName
	cfg        Config
	logger     zerolog.Logger

	decimals uint8
	roundID  *big.Int

	lastGoodMedian   float64
	lastGoodMedianOK bool

	observations []observation
	lastSubmit   time.Time
}

// numDecimals is the fixed decimals value this module writes to a
// freshly-registered aggregator contract (§4.6).
const numDecimals = 10

// New constructs an Observer for a single pair, reading decimals and
// the latest round from the contract. If the contract reports
// decimals == 0 -- a freshly-registered feed that has never been
// configured -- it is bootstrapped here with setDecimals(10) and
// setDescription(pair) before any observation is accepted, so the
// decimals > 0 invariant holds from the first Receive onward.
// Ported from original_source/oracle/src/PriceOracle.py:194-206.
func New(
	ctx context.Context,
	pair types.TradingPair,
	aggregatorAddr common.Address,
	chainClient chain.Client,
	stablecoinCache *stablecoin.Cache,
	sources []types.SourceName,
	cfg Config,
	now time.Time,
) (*Observer, error) {
	decimals, err := chainClient.Decimals(ctx, aggregatorAddr)
	if err != nil {
		return nil, fmt.Errorf("read decimals for %s: %w", pair.String(), err)
	}

	if decimals == 0 {
		if _, err := chainClient.SetDecimals(ctx, aggregatorAddr, numDecimals); err != nil {
			return nil, fmt.Errorf("bootstrap decimals for %s: %w", pair.String(), err)
		}
		if _, err := chainClient.SetDescription(ctx, aggregatorAddr, pair.String()); err != nil {
			return nil, fmt.Errorf("bootstrap description for %s: %w", pair.String(), err)
		}
		decimals = numDecimals
		log.Info().Str("pair", pair.String()).Uint8("decimals", numDecimals).Msg("bootstrapped unconfigured aggregator")
	}

	latest, err := chainClient.LatestRoundData(ctx, aggregatorAddr)
	if err != nil {
		return nil, fmt.Errorf("read latest round data for %s: %w", pair.String(), err)
	}

	roundID := latest.RoundID
	if roundID == nil {
		roundID = new(big.Int)
	}

	o := &Observer{
		pair:       pair,
		aggregator: aggregatorAddr,
		chain:      chainClient,
		stablecoin: stablecoinCache,
		health:     health.NewTracker(sources, health.DefaultBaseBackoff, health.DefaultMaxBackoff),
		sources:    sources,
		cfg:        cfg,
		logger:     log.With().Str("pair", pair.String()).Logger(),
		decimals:   decimals,
		roundID:    roundID,
		lastSubmit: now,
	}

	if latest.Answer != nil && latest.Answer.Sign() > 0 {
		scale := new(big.Float).SetFloat64(pow10(decimals))
		answer := new(big.Float).SetInt(latest.Answer)
		median, _ := new(big.Float).Quo(answer, scale).Float64()
		o.lastGoodMedian = median
		o.lastGoodMedianOK = true
		o.logger.Info().Float64("price", median).Msg("starting with on-chain price")
	}

	o.logger.Info().Uint8("decimals", decimals).Str("round_id", o.roundID.String()).Msg("observer initialized")

	return o, nil
}

func pow10(n uint8) float64 {
	v := 1.0
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}

// ActiveSources returns the sources not currently in backoff for this
// pair.
func (o *Observer) ActiveSources(now time.Time) []types.SourceName {
	return o.health.ActiveSources(now)
}

// Receive consumes one tick's {source -> price} results for the
// sources that were actually queried this tick (active), updates
// source health, and aggregates valid prices into an observation. A
// source queried but absent from prices is treated as a fetch
// failure; a source not in active was skipped entirely (in backoff)
// and is left untouched. It never returns an error for an empty or
// failed aggregation -- those are logged and skipped, per the
// propagation policy that only startup and contract-availability
// failures are fatal.
func (o *Observer) Receive(prices map[types.SourceName]float64, active []types.SourceName, now time.Time) (success bool, median float64) {
	valid := make(map[types.SourceName]float64)

	for _, source := range active {
		price, hasPrice := prices[source]
		if !hasPrice {
			backoff := o.health.RecordFailure(source, now)
			metrics.FetchOutcome(source, false)
			metrics.BackoffGauge(source, float32(backoff.Seconds()))
			o.logger.Debug().Str("source", string(source)).Dur("backoff", backoff).Msg("no price this tick")
			continue
		}
		o.health.RecordSuccess(source)
		metrics.FetchOutcome(source, true)
		metrics.BackoffGauge(source, 0)
		valid[source] = price
	}

	result, aggErr := aggregator.Aggregate(valid, o.lastGoodMedian, o.lastGoodMedianOK, o.cfg.Aggregator)
	if aggErr != nil {
		metrics.AggregationOutcome(o.pair, false, len(valid))
		o.logger.Warn().Str("kind", string(aggErr.Kind)).Err(aggErr).Msg("aggregation failed")
		return false, 0
	}
	metrics.AggregationOutcome(o.pair, true, len(result.Sources))

	o.lastGoodMedian = result.Price
	o.lastGoodMedianOK = true

	if o.pair.Base == "usdt" && o.pair.Quote == "usd" && o.stablecoin != nil {
		o.stablecoin.Set(result.Price, now)
	}

	o.logger.Info().
		Float64("price", result.Price).
		Int("sources", len(result.Sources)).
		Int("dropped", len(result.Dropped)).
		Msg("aggregated price")

	scaled := new(big.Float).Mul(new(big.Float).SetFloat64(result.Price), new(big.Float).SetFloat64(pow10(o.decimals)))
	// Round half up (the price is positive), since Int alone truncates.
	scaled.Add(scaled, big.NewFloat(0.5))
	priceScaled, _ := scaled.Int(nil)

	o.observations = append(o.observations, observation{
		priceScaled: priceScaled,
		timestamp:   now.Unix(),
	})

	return true, result.Price
}

// ShouldSubmit reports whether enough time has elapsed since the last
// submission and there is at least one pending observation.
func (o *Observer) ShouldSubmit(now time.Time) bool {
	return len(o.observations) > 0 && now.Sub(o.lastSubmit) > o.cfg.SubmitPeriod
}

// Submit takes the median of accumulated observations by price (lower
// middle for even counts, mirroring integer floor division) and hands
// it to the chain client as a new round. Both the round ID and the
// accumulated observations only advance on a successful submission; a
// failed submit leaves o.roundID untouched and retains the
// observations, so the next window retries the same round with the
// same median input.
func (o *Observer) Submit(ctx context.Context, now time.Time) error {
	if len(o.observations) == 0 {
		return nil
	}

	sorted := make([]observation, len(o.observations))
	copy(sorted, o.observations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].priceScaled.Cmp(sorted[j].priceScaled) < 0
	})

	finalScaled := sorted[len(sorted)/2].priceScaled
	startedAt := o.observations[0].timestamp
	updatedAt := o.observations[len(o.observations)-1].timestamp

	nextRound := new(big.Int).Add(o.roundID, big.NewInt(1))

	gasPrice, err := o.chain.GasPrice(ctx)
	if err != nil {
		gasPrice = big.NewInt(0)
	}

	txHash, err := o.chain.SubmitObservation(ctx, o.aggregator, nextRound, finalScaled, startedAt, updatedAt, gasPrice)
	if err != nil {
		metrics.SubmitOutcome(o.pair, false)
		o.logger.Warn().Err(err).Str("round_id", nextRound.String()).Msg("submit failed, retaining observations")
		return err
	}
	metrics.SubmitOutcome(o.pair, true)

	o.roundID = nextRound
	o.logger.Info().
		Str("round_id", o.roundID.String()).
		Int("observations", len(o.observations)).
		Str("tx", txHash.Hex()).
		Msg("submitted round")

	o.lastSubmit = now
	o.observations = nil

	return nil
}

// Status is a read-only snapshot of an observer's state, exposed
// through the control-plane router.
type Status struct {
	Pair              types.TradingPair
	LastGoodPrice     float64
	LastGoodPriceOK   bool
	ActiveSources     int
	ConfiguredSources int
	PendingObs        int
	LastSubmit        time.Time
}

// Status returns a snapshot for the control-plane router (component M).
func (o *Observer) Status(now time.Time) Status {
	return Status{
		Pair:              o.pair,
		LastGoodPrice:     o.lastGoodMedian,
		LastGoodPriceOK:   o.lastGoodMedianOK,
		ActiveSources:     len(o.health.ActiveSources(now)),
		ConfiguredSources: len(o.sources),
		PendingObs:        len(o.observations),
		LastSubmit:        o.lastSubmit,
	}
}
