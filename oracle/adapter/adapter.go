// Package adapter defines the source adapter contract every price
// source conforms to, a shared pooled HTTP client, and a registry that
// resolves configured source names to adapter constructors.
package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
)

// Adapter is the uniform fetch/batch/support interface every source
// conforms to (§4.1). Fetch and FetchBatch never return an error for a
// recoverable failure -- no sample this tick is represented by a
// missing map entry or ok=false, not an error value, so the "never
// raises for recoverable failure" rule is enforced by the type system
// rather than by convention.
type Adapter interface {
	Name() types.SourceName
	HasAPIKey() bool
	SupportsBatch() bool
	// SupportsPair may perform I/O (some adapters probe an endpoint to
	// decide whether a symbol needs stablecoin routing). Called once
	// per (adapter, pair) during orchestrator initialization.
	SupportsPair(ctx context.Context, pair types.TradingPair) bool
	Fetch(ctx context.Context, pair types.TradingPair) (price float64, ok bool)
	FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64
}

const (
	DefaultTimeout        = 30 * time.Second
	defaultMaxConns       = 50
	defaultMaxIdleConns   = 20
	defaultIdleConnExpiry = 90 * time.Second
)

// NewSharedHTTPClient builds the pooled client every adapter shares, per
// §4.1's connection-limit and keepalive-cap requirement. Redirects are
// disallowed by default, matching this module's established HTTP client
// policy for exchange endpoints.
func NewSharedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		MaxConnsPerHost:     defaultMaxConns,
		MaxIdleConnsPerHost: defaultMaxIdleConns,
		IdleConnTimeout:     defaultIdleConnExpiry,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Base embeds into concrete adapters to hold the shared HTTP client and
// API key. It has no FetchBatch of its own: each adapter defines
// FetchBatch, and non-batch adapters delegate to FetchBatchSequential.
type Base struct {
	client *http.Client
	apiKey string
}

// NewBase constructs a Base sharing client across adapters.
func NewBase(client *http.Client, apiKey string) Base {
	return Base{client: client, apiKey: apiKey}
}

func (b Base) Client() *http.Client { return b.client }
func (b Base) APIKey() string       { return b.apiKey }
func (b Base) HasAPIKey() bool      { return b.apiKey != "" }

// FetchBatchSequential is the default batch fallback for non-batch
// adapters: the coordinator may call it for symmetry, but prefers
// fanning out individual Fetch calls itself when SupportsBatch is
// false (§4.5 step 2). Non-batch adapters implement FetchBatch as a
// one-line call to this function.
func FetchBatchSequential(ctx context.Context, a Adapter, pairs []types.TradingPair) map[types.TradingPair]float64 {
	out := make(map[types.TradingPair]float64, len(pairs))
	for _, p := range pairs {
		if price, ok := a.Fetch(ctx, p); ok {
			out[p] = price
		}
	}
	return out
}

// Constructor builds an Adapter given a shared HTTP client and an
// optional API key.
type Constructor func(client *http.Client, apiKey string) Adapter

// Registry resolves source names to adapter constructors.
type Registry struct {
	constructors map[types.SourceName]Constructor
}

// NewRegistry builds a registry from an explicit table of (name,
// constructor) pairs, decided in place of Go init()-time
// self-registration (§9) so the registry's contents are always
// traceable to one literal table.
func NewRegistry(table map[types.SourceName]Constructor) *Registry {
	r := &Registry{constructors: make(map[types.SourceName]Constructor, len(table))}
	for name, ctor := range table {
		r.constructors[name] = ctor
	}
	return r
}

// Get instantiates the named adapter. Unknown names are a configuration
// error (§4.1).
func (r *Registry) Get(name types.SourceName, client *http.Client, apiKey string) (Adapter, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown source adapter %q", name)
	}
	return ctor(client, apiKey), nil
}

// ListNames returns every registered source name.
func (r *Registry) ListNames() []types.SourceName {
	names := make([]types.SourceName, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry returns the registry populated with every concrete
// adapter this module ships (§11).
func DefaultRegistry() *Registry {
	return NewRegistry(map[types.SourceName]Constructor{
		"binance":       func(c *http.Client, key string) Adapter { return NewBinance(c, key) },
		"coinbase":      func(c *http.Client, key string) Adapter { return NewCoinbase(c, key) },
		"kraken":        func(c *http.Client, key string) Adapter { return NewKraken(c, key) },
		"bitstamp":      func(c *http.Client, key string) Adapter { return NewBitstamp(c, key) },
		"coingecko":     func(c *http.Client, key string) Adapter { return NewCoinGecko(c, key) },
		"coinpaprika":   func(c *http.Client, key string) Adapter { return NewCoinpaprika(c, key) },
		"cryptocompare": func(c *http.Client, key string) Adapter { return NewCryptoCompare(c, key) },
		"coinmarketcap": func(c *http.Client, key string) Adapter { return NewCoinMarketCap(c, key) },
		"coinapi":       func(c *http.Client, key string) Adapter { return NewCoinAPI(c, key) },
		"eodhd":         func(c *http.Client, key string) Adapter { return NewEODHD(c, key) },
		"bitquery":      func(c *http.Client, key string) Adapter { return NewBitquery(c, key) },
	})
}
