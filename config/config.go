package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ojo-network/rofl-price-oracle/oracle/adapter"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
)

const (
	defaultMinSources    = 2
	defaultMaxDeviation  = 5.0
	defaultDriftLimit    = 10.0
	defaultFetchPeriod   = 60 * time.Second
	defaultSubmitPeriod  = 300 * time.Second
	defaultFetchTimeout  = 10 * time.Second
	minFetchPeriod       = 1 * time.Second
	minSubmitPeriod      = 6 * time.Second
	defaultSigningSocket = "/run/rofl-appd.sock"
)

var validate = validator.New()

type (
	// Config defines all necessary oracle configuration parameters (§6).
	Config struct {
		Pairs         []Pair            `mapstructure:"pairs" validate:"required,gt=0,dive"`
		Sources       []string          `mapstructure:"sources" validate:"required,gt=0"`
		MinSources    int               `mapstructure:"min-sources" validate:"required,gte=1"`
		MaxDeviation  float64           `mapstructure:"max-deviation" validate:"required,gt=0"`
		DriftLimit    float64           `mapstructure:"drift-limit"`
		FetchPeriod   time.Duration     `mapstructure:"fetch-period" validate:"required"`
		SubmitPeriod  time.Duration     `mapstructure:"submit-period" validate:"required"`
		FetchTimeout  time.Duration     `mapstructure:"fetch-timeout" validate:"required"`
		Network       string            `mapstructure:"network" validate:"required"`
		FeedDirectory string            `mapstructure:"price-feed-address"`
		Addresses     []string          `mapstructure:"address"`
		APIKeys       map[string]string `mapstructure:"api-keys"`
		SigningSocket string            `mapstructure:"signing-socket"`
	}

	// Pair is a single configured trading pair, parsed from a
	// "base/quote" string.
	Pair struct {
		Base  string `mapstructure:"base" validate:"required"`
		Quote string `mapstructure:"quote" validate:"required"`
	}
)

// pairValidation enforces that base and quote are not equal.
func pairValidation(sl validator.StructLevel) {
	p := sl.Current().Interface().(Pair)
	if p.Base != "" && strings.EqualFold(p.Base, p.Quote) {
		sl.ReportError(p.Quote, "quote", "Quote", "pairBaseEqualsQuote", "")
	}
}

// Validate returns an error if the Config object is invalid.
func (c Config) Validate() error {
	validate.RegisterStructValidation(pairValidation, Pair{})

	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.validateSources()
}

func (c Config) validateSources() error {
	registry := adapter.DefaultRegistry()
	known := make(map[string]struct{})
	for _, n := range registry.ListNames() {
		known[string(n)] = struct{}{}
	}

	for _, s := range c.Sources {
		if _, ok := known[strings.ToLower(s)]; !ok {
			return fmt.Errorf("unknown source adapter %q", s)
		}
	}
	return nil
}

// setDefaults fills unset fields with the module's conventional
// defaults (§6).
func (c *Config) setDefaults() {
	if c.MinSources == 0 {
		c.MinSources = defaultMinSources
	}
	if c.MaxDeviation == 0 {
		c.MaxDeviation = defaultMaxDeviation
	}
	if c.DriftLimit == 0 {
		c.DriftLimit = defaultDriftLimit
	}
	if c.FetchPeriod == 0 {
		c.FetchPeriod = defaultFetchPeriod
	}
	if c.SubmitPeriod == 0 {
		c.SubmitPeriod = defaultSubmitPeriod
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.SigningSocket == "" {
		c.SigningSocket = defaultSigningSocket
	}
	if c.FetchPeriod < minFetchPeriod {
		c.FetchPeriod = minFetchPeriod
	}
	if c.SubmitPeriod < minSubmitPeriod {
		c.SubmitPeriod = minSubmitPeriod
	}
}

// TradingPairs converts the configured pairs into oracle trading
// pairs.
func (c Config) TradingPairs() []types.TradingPair {
	pairs := make([]types.TradingPair, len(c.Pairs))
	for i, p := range c.Pairs {
		pairs[i] = types.NewTradingPair(p.Base, p.Quote)
	}
	return pairs
}

// SourceNames converts the configured source list into typed source
// names.
func (c Config) SourceNames() []types.SourceName {
	names := make([]types.SourceName, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = types.NewSourceName(s)
	}
	return names
}

// AddressFor returns the pre-known aggregator address bound to pair
// index i, if one was configured (§9: addresses bind positionally to
// the pairs list).
func (c Config) AddressFor(i int) (string, bool) {
	if i < 0 || i >= len(c.Addresses) {
		return "", false
	}
	addr := c.Addresses[i]
	return addr, addr != ""
}

// APIKeyFor returns the configured API key for a source, if any.
func (c Config) APIKeyFor(source types.SourceName) string {
	return c.APIKeys[string(source)]
}
