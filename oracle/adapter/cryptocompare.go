package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/rs/zerolog/log"
)

const cryptocompareBaseURL = "https://min-api.cryptocompare.com/data"

// CryptoCompare is a batch-capable adapter with an optional API key.
// Ported from original_source/oracle/src/fetchers/cryptocompare.py.
type CryptoCompare struct {
	Base
}

func NewCryptoCompare(client *http.Client, apiKey string) *CryptoCompare {
	return &CryptoCompare{Base: NewBase(client, apiKey)}
}

func (c *CryptoCompare) Name() types.SourceName { return "cryptocompare" }
func (c *CryptoCompare) SupportsBatch() bool    { return true }

func (c *CryptoCompare) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	_, ok := c.Fetch(ctx, pair)
	return ok
}

func (c *CryptoCompare) authHeader(req *http.Request) {
	if c.HasAPIKey() {
		req.Header.Set("authorization", "Apikey "+c.APIKey())
	}
}

func (c *CryptoCompare) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	q := url.Values{"fsym": {strings.ToUpper(pair.Base)}, "tsyms": {strings.ToUpper(pair.Quote)}}
	u := cryptocompareBaseURL + "/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}
	c.authHeader(req)

	resp, err := c.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "cryptocompare").Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var data map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, false
	}

	price, ok := data[strings.ToUpper(pair.Quote)]
	return price, ok
}

func (c *CryptoCompare) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	results := make(map[types.TradingPair]float64, len(pairs))
	if len(pairs) == 0 {
		return results
	}

	bases := make(map[string]struct{})
	quotes := make(map[string]struct{})
	for _, p := range pairs {
		bases[strings.ToUpper(p.Base)] = struct{}{}
		quotes[strings.ToUpper(p.Quote)] = struct{}{}
	}

	q := url.Values{
		"fsyms": {strings.Join(keysOf(bases), ",")},
		"tsyms": {strings.Join(keysOf(quotes), ",")},
	}
	u := cryptocompareBaseURL + "/pricemulti?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return results
	}
	c.authHeader(req)

	resp, err := c.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "cryptocompare").Err(err).Msg("batch request failed")
		return results
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return results
	}

	var data map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return results
	}

	for _, p := range pairs {
		byQuote, ok := data[strings.ToUpper(p.Base)]
		if !ok {
			continue
		}
		price, ok := byQuote[strings.ToUpper(p.Quote)]
		if !ok {
			continue
		}
		results[p] = price
	}

	return results
}

func keysOf(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
