// Package aggregator implements the median-with-outlier-rejection price
// aggregation algorithm: filter invalid samples, take a median, drop
// outliers beyond a deviation threshold, re-check sufficiency, take a
// final median, then guard against excessive drift from the previous
// accepted price.
package aggregator

import (
	"fmt"
	"math"
	"sort"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
)

// ErrorKind identifies why an aggregation attempt failed.
type ErrorKind string

const (
	ErrInsufficientSources ErrorKind = "insufficient_sources"
	ErrTooManyOutliers     ErrorKind = "too_many_outliers"
	ErrDriftTooLarge       ErrorKind = "drift_too_large"
)

// AggregationError carries the diagnostic fields relevant to its kind.
type AggregationError struct {
	Kind      ErrorKind
	Available int
	Dropped   map[types.SourceName]float64
	DriftPct  float64
	Previous  float64
	Candidate float64
}

func (e *AggregationError) Error() string {
	switch e.Kind {
	case ErrInsufficientSources:
		return fmt.Sprintf("insufficient_sources: only %d available", e.Available)
	case ErrTooManyOutliers:
		return fmt.Sprintf("too_many_outliers: %d dropped", len(e.Dropped))
	case ErrDriftTooLarge:
		return fmt.Sprintf("drift_too_large: %.4f%% (previous=%.6f candidate=%.6f)", e.DriftPct, e.Previous, e.Candidate)
	default:
		return string(e.Kind)
	}
}

// Result is the outcome of a successful aggregation.
type Result struct {
	Price         float64
	Sources       []types.SourceName
	Dropped       map[types.SourceName]float64
	InitialMedian float64
	Count         int
}

// Params parameterizes the aggregation algorithm. MinSources must be
// >= 1; MaxDeviationPct must be > 0. DriftLimitPct <= 0 disables the
// drift guard.
type Params struct {
	MinSources      int
	MaxDeviationPct float64
	DriftLimitPct   float64
}

// Aggregate runs the 8-step algorithm from the spec against prices, a
// map of source -> price where an absent or non-positive entry means
// "no sample this tick" (samples are never negative by construction of
// the adapter contract, but a defensive <= 0 check matches the
// original semantics exactly). previousOK indicates whether `previous`
// should be treated as armed for the drift guard.
func Aggregate(prices map[types.SourceName]float64, previous float64, previousOK bool, p Params) (*Result, *AggregationError) {
	// Step 1: filter validity.
	valid := make(map[types.SourceName]float64, len(prices))
	for name, price := range prices {
		if price > 0 {
			valid[name] = price
		}
	}

	// Step 2: sufficiency.
	if len(valid) < p.MinSources {
		return nil, &AggregationError{Kind: ErrInsufficientSources, Available: len(valid)}
	}

	// Step 3: initial median.
	initialMedian := median(values(valid))

	// Step 4: outlier filter (inclusive boundary).
	filtered := make(map[types.SourceName]float64, len(valid))
	dropped := make(map[types.SourceName]float64)
	for name, price := range valid {
		deviation := math.Abs(price-initialMedian) / initialMedian * 100
		if deviation <= p.MaxDeviationPct {
			filtered[name] = price
		} else {
			dropped[name] = price
		}
	}

	// Step 5: re-sufficiency.
	if len(filtered) < p.MinSources {
		return nil, &AggregationError{Kind: ErrTooManyOutliers, Dropped: dropped}
	}

	// Step 6: final median.
	finalMedian := median(values(filtered))

	// Step 7: drift guard (strictly greater than the limit is rejected;
	// equal to the limit is accepted, per spec boundary semantics).
	if previousOK && p.DriftLimitPct > 0 {
		drift := math.Abs(finalMedian-previous) / previous * 100
		if drift > p.DriftLimitPct {
			return nil, &AggregationError{
				Kind:      ErrDriftTooLarge,
				DriftPct:  drift,
				Previous:  previous,
				Candidate: finalMedian,
			}
		}
	}

	sources := make([]types.SourceName, 0, len(filtered))
	for name := range filtered {
		sources = append(sources, name)
	}

	return &Result{
		Price:         finalMedian,
		Sources:       sources,
		Dropped:       dropped,
		InitialMedian: initialMedian,
		Count:         len(filtered),
	}, nil
}

func values(m map[types.SourceName]float64) []float64 {
	out := make([]float64, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// median returns the arithmetic mean of the two middle elements for an
// even-length slice, or the middle element for odd length.
func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
