// Package metrics emits the oracle's runtime counters and gauges
// directly through armon/go-metrics, adapted from this module's
// cosmos-sdk-telemetry-wrapped provider metrics into a direct sink
// since there is no longer a cosmos-sdk telemetry layer to route
// through.
package metrics

import (
	"github.com/armon/go-metrics"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
)

// EventType identifies the kind of event a counter records.
type EventType string

const (
	EventFetchSuccess EventType = "fetch_success"
	EventFetchFailure EventType = "fetch_failure"
	EventAggregation  EventType = "aggregation"
	EventSubmit       EventType = "submit"
	EventSubmitFailed EventType = "submit_failed"
)

func sourceLabel(s types.SourceName) metrics.Label {
	return metrics.Label{Name: "source", Value: string(s)}
}

func pairLabel(p types.TradingPair) metrics.Label {
	return metrics.Label{Name: "pair", Value: p.Key()}
}

func eventLabel(e EventType) metrics.Label {
	return metrics.Label{Name: "event", Value: string(e)}
}

// FetchOutcome records a fetch attempt against a single source, split
// by whether a price was returned.
func FetchOutcome(source types.SourceName, ok bool) {
	event := EventFetchSuccess
	if !ok {
		event = EventFetchFailure
	}
	metrics.IncrCounterWithLabels(
		[]string{"oracle", "fetch"},
		1,
		[]metrics.Label{sourceLabel(source), eventLabel(event)},
	)
}

// AggregationOutcome records whether a pair's tick aggregation
// succeeded, and with how many sources.
func AggregationOutcome(pair types.TradingPair, success bool, sourceCount int) {
	metrics.SetGaugeWithLabels(
		[]string{"oracle", "aggregation", "sources"},
		float32(sourceCount),
		[]metrics.Label{pairLabel(pair)},
	)
	if !success {
		metrics.IncrCounterWithLabels(
			[]string{"oracle", "aggregation", "skipped"},
			1,
			[]metrics.Label{pairLabel(pair)},
		)
	}
}

// SubmitOutcome records an on-chain submission attempt for a pair.
func SubmitOutcome(pair types.TradingPair, success bool) {
	event := EventSubmit
	if !success {
		event = EventSubmitFailed
	}
	metrics.IncrCounterWithLabels(
		[]string{"oracle", "submit"},
		1,
		[]metrics.Label{pairLabel(pair), eventLabel(event)},
	)
}

// BackoffGauge publishes the current backoff duration in seconds for a
// source, 0 when the source is active.
func BackoffGauge(source types.SourceName, seconds float32) {
	metrics.SetGaugeWithLabels(
		[]string{"oracle", "source", "backoff_seconds"},
		seconds,
		[]metrics.Label{sourceLabel(source)},
	)
}
