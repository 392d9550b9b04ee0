package types

import "strings"

// SourceName is a lowercase identifier for a source adapter, unique
// within a process (e.g. "binance", "kraken"). Resolved to an Adapter
// through the adapter registry.
type SourceName string

// NewSourceName lowercases and trims the given name.
func NewSourceName(s string) SourceName {
	return SourceName(strings.ToLower(strings.TrimSpace(s)))
}

func (n SourceName) String() string {
	return string(n)
}
