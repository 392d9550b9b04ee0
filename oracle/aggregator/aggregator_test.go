package aggregator

import (
	"math"
	"testing"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/stretchr/testify/require"
)

func TestCleanMedian(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100, "b": 101, "c": 102}
	res, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: 5})
	require.Nil(t, aggErr)
	require.Equal(t, 101.0, res.Price)
	require.Equal(t, 101.0, res.InitialMedian)
	require.Equal(t, 3, res.Count)
	require.Empty(t, res.Dropped)
	require.ElementsMatch(t, []types.SourceName{"a", "b", "c"}, res.Sources)
}

func TestOutlierDrop(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100, "b": 101, "rogue": 200}
	res, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: 5})
	require.Nil(t, aggErr)
	require.Equal(t, 100.5, res.Price)
	require.ElementsMatch(t, []types.SourceName{"a", "b"}, res.Sources)
	require.Equal(t, map[types.SourceName]float64{"rogue": 200}, res.Dropped)
}

func TestTooManyOutliers(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100, "b": 150}
	_, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: 1})
	require.NotNil(t, aggErr)
	require.Equal(t, ErrTooManyOutliers, aggErr.Kind)
}

func TestDriftRejection(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 120, "b": 121}
	_, aggErr := Aggregate(prices, 100, true, Params{MinSources: 2, MaxDeviationPct: 5, DriftLimitPct: 10})
	require.NotNil(t, aggErr)
	require.Equal(t, ErrDriftTooLarge, aggErr.Kind)
	require.InDelta(t, 20.5, aggErr.DriftPct, 0.01)
	require.Equal(t, 100.0, aggErr.Previous)
	require.Equal(t, 120.5, aggErr.Candidate)
}

func TestInsufficientSources(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100}
	_, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: 5})
	require.NotNil(t, aggErr)
	require.Equal(t, ErrInsufficientSources, aggErr.Kind)
	require.Equal(t, 1, aggErr.Available)
}

func TestNonPositiveAndAbsentPricesAreFiltered(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100, "b": 0, "c": -5}
	_, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: 5})
	require.NotNil(t, aggErr)
	require.Equal(t, ErrInsufficientSources, aggErr.Kind)
	require.Equal(t, 1, aggErr.Available)
}

func TestExactlyAtDeviationThresholdIsKept(t *testing.T) {
	// initial median of {100,110} is 105; each deviates by the same
	// amount. Set the threshold to exactly that deviation, computed with
	// the identical floating-point operations Aggregate uses, so the
	// boundary comparison is bit-exact rather than approximate.
	exactDeviation := math.Abs(100-105.0) / 105.0 * 100

	prices := map[types.SourceName]float64{"a": 100, "b": 110}
	res, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: exactDeviation})
	require.Nil(t, aggErr)
	require.Len(t, res.Sources, 2)
}

func TestExactlyAtDriftThresholdIsAccepted(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 110, "b": 110}
	_, aggErr := Aggregate(prices, 100, true, Params{MinSources: 2, MaxDeviationPct: 5, DriftLimitPct: 10})
	require.Nil(t, aggErr, "drift exactly at the limit must be accepted")
}

func TestResultPriceWithinFilteredBounds(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100, "b": 101, "c": 102, "rogue": 200}
	res, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: 5})
	require.Nil(t, aggErr)

	min, max := math.Inf(1), math.Inf(-1)
	for _, name := range res.Sources {
		v := prices[name]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	require.GreaterOrEqual(t, res.Price, min)
	require.LessOrEqual(t, res.Price, max)
}

func TestDroppedSourcesExceedDeviationThreshold(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100, "b": 101, "c": 102, "rogue": 200}
	res, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: 5})
	require.Nil(t, aggErr)

	for name, price := range res.Dropped {
		deviation := math.Abs(price-res.InitialMedian) / res.InitialMedian * 100
		require.Greaterf(t, deviation, 5.0, "dropped source %s should exceed the threshold", name)
	}
}

func TestUsedUnionDroppedEqualsValidInputs(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100, "b": 101, "c": 102, "rogue": 200}
	res, aggErr := Aggregate(prices, 0, false, Params{MinSources: 2, MaxDeviationPct: 5})
	require.Nil(t, aggErr)

	union := map[types.SourceName]bool{}
	for _, s := range res.Sources {
		union[s] = true
	}
	for s := range res.Dropped {
		union[s] = true
	}
	require.Len(t, union, len(prices))
}

func TestAggregateIsIdempotent(t *testing.T) {
	prices := map[types.SourceName]float64{"a": 100, "b": 101, "c": 102}
	params := Params{MinSources: 2, MaxDeviationPct: 5}

	r1, _ := Aggregate(prices, 0, false, params)
	r2, _ := Aggregate(prices, 0, false, params)
	require.Equal(t, r1.Price, r2.Price)
	require.Equal(t, r1.Count, r2.Count)
}
