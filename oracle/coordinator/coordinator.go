// Package coordinator fans batch and individual fetches out across every
// configured source adapter concurrently and pivots the results into a
// per-pair view for distribution to observers.
package coordinator

import (
	"context"
	"time"

	"github.com/ojo-network/rofl-price-oracle/oracle/adapter"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultFetchTimeout bounds a single source's contribution to a tick.
// A source that misses this deadline contributes no observations for
// that tick rather than blocking the others.
const DefaultFetchTimeout = 10 * time.Second

// Coordinator fetches prices for every configured pair across every
// configured source adapter, preferring each adapter's batch endpoint
// when supported. Ported from
// original_source/oracle/src/BatchFetchCoordinator.py.
type Coordinator struct {
	adapters     map[types.SourceName]adapter.Adapter
	fetchTimeout time.Duration
}

// New builds a Coordinator over the given set of adapters.
func New(adapters map[types.SourceName]adapter.Adapter, fetchTimeout time.Duration) *Coordinator {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Coordinator{adapters: adapters, fetchTimeout: fetchTimeout}
}

// FetchAll fetches every pair from every source listed in activeSources
// for that pair; listed sources are taken as already support-checked,
// so SupportsPair is not called for them. A nil activeSources means
// every source is tried for every pair its SupportsPair accepts. The returned
// map always contains an entry for every requested pair, even if no
// source reported a price for it.
func (c *Coordinator) FetchAll(
	ctx context.Context,
	pairs []types.TradingPair,
	activeSources map[types.TradingPair][]types.SourceName,
) map[types.TradingPair]map[types.SourceName]float64 {
	results := make(map[types.TradingPair]map[types.SourceName]float64, len(pairs))
	for _, p := range pairs {
		results[p] = make(map[types.SourceName]float64)
	}
	if len(pairs) == 0 {
		return results
	}

	sourcePairs := c.groupPairsBySource(ctx, pairs, activeSources)
	if len(sourcePairs) == 0 {
		return results
	}

	type sourceResult struct {
		source types.SourceName
		prices map[types.TradingPair]float64
	}

	out := make(chan sourceResult, len(sourcePairs))
	g, gctx := errgroup.WithContext(ctx)

	for source, sourcePairsList := range sourcePairs {
		source := source
		sourcePairsList := sourcePairsList
		g.Go(func() error {
			prices := c.fetchSourceBatch(gctx, source, sourcePairsList)
			out <- sourceResult{source: source, prices: prices}
			return nil
		})
	}

	// errgroup.Group.Go never returns an error here -- per-source
	// failures are captured as empty results, not propagated -- so Wait
	// only blocks until every goroutine has finished.
	_ = g.Wait()
	close(out)

	for res := range out {
		for pair, price := range res.prices {
			if _, ok := results[pair]; ok {
				results[pair][res.source] = price
			}
		}
	}

	return results
}

// groupPairsBySource partitions pairs by source: by active-list
// membership when activeSources is given (the orchestrator builds those
// lists from sources whose SupportsPair returned true at
// initialization), otherwise by SupportsPair.
func (c *Coordinator) groupPairsBySource(
	ctx context.Context,
	pairs []types.TradingPair,
	activeSources map[types.TradingPair][]types.SourceName,
) map[types.SourceName][]types.TradingPair {
	sourcePairs := make(map[types.SourceName][]types.TradingPair)

	for name, a := range c.adapters {
		var supported []types.TradingPair
		for _, pair := range pairs {
			if activeSources != nil {
				if !contains(activeSources[pair], name) {
					continue
				}
			} else if !a.SupportsPair(ctx, pair) {
				continue
			}
			supported = append(supported, pair)
		}
		if len(supported) > 0 {
			sourcePairs[name] = supported
		}
	}

	return sourcePairs
}

func contains(names []types.SourceName, name types.SourceName) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// fetchSourceBatch fetches every given pair from a single source,
// preferring its batch endpoint. A timeout or panic yields an empty
// result for this source rather than failing the tick.
func (c *Coordinator) fetchSourceBatch(
	ctx context.Context,
	source types.SourceName,
	pairs []types.TradingPair,
) (prices map[types.TradingPair]float64) {
	a, ok := c.adapters[source]
	if !ok {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("source", string(source)).Interface("panic", r).Msg("fetch batch panicked")
			prices = nil
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	if a.SupportsBatch() {
		log.Debug().Str("source", string(source)).Int("pairs", len(pairs)).Msg("batch fetching")
		return c.runWithTimeout(fetchCtx, func() map[types.TradingPair]float64 {
			return a.FetchBatch(fetchCtx, pairs)
		})
	}

	log.Debug().Str("source", string(source)).Int("pairs", len(pairs)).Msg("individual fetching")
	return c.fetchIndividually(fetchCtx, a, pairs)
}

// fetchIndividually fans individual Fetch calls for one source out
// across its pairs concurrently.
func (c *Coordinator) fetchIndividually(
	ctx context.Context,
	a adapter.Adapter,
	pairs []types.TradingPair,
) map[types.TradingPair]float64 {
	type pairResult struct {
		pair  types.TradingPair
		price float64
		ok    bool
	}

	out := make(chan pairResult, len(pairs))
	g, gctx := errgroup.WithContext(ctx)

	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			price, ok := a.Fetch(gctx, pair)
			out <- pairResult{pair: pair, price: price, ok: ok}
			return nil
		})
	}

	_ = g.Wait()
	close(out)

	results := make(map[types.TradingPair]float64, len(pairs))
	for r := range out {
		if r.ok {
			results[r.pair] = r.price
		}
	}
	return results
}

// runWithTimeout runs fn on its own goroutine and waits for either its
// completion or the context deadline, so a batch call that ignores
// ctx internally still cannot hold the coordinator open indefinitely.
func (c *Coordinator) runWithTimeout(
	ctx context.Context,
	fn func() map[types.TradingPair]float64,
) map[types.TradingPair]float64 {
	done := make(chan map[types.TradingPair]float64, 1)
	go func() {
		done <- fn()
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return nil
	}
}
