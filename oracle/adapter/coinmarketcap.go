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

const coinmarketcapBaseURL = "https://pro-api.coinmarketcap.com"

// CoinMarketCap requires an API key; without one SupportsPair and
// Fetch both fail closed. Ported from
// original_source/oracle/src/fetchers/coinmarketcap.py.
type CoinMarketCap struct {
	Base
}

func NewCoinMarketCap(client *http.Client, apiKey string) *CoinMarketCap {
	return &CoinMarketCap{Base: NewBase(client, apiKey)}
}

func (c *CoinMarketCap) Name() types.SourceName { return "coinmarketcap" }
func (c *CoinMarketCap) SupportsBatch() bool    { return true }

func (c *CoinMarketCap) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	if !c.HasAPIKey() {
		return false
	}
	_, ok := c.Fetch(ctx, pair)
	return ok
}

type cmcQuote struct {
	Price float64 `json:"price"`
}

type cmcSymbolData struct {
	Quote map[string]cmcQuote `json:"quote"`
}

type cmcResponse struct {
	Data map[string]json.RawMessage `json:"data"`
}

func (c *CoinMarketCap) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	if !c.HasAPIKey() {
		log.Warn().Str("source", "coinmarketcap").Msg("api key required but not provided")
		return 0, false
	}

	base := strings.ToUpper(pair.Base)
	quote := strings.ToUpper(pair.Quote)

	q := url.Values{"symbol": {base}, "convert": {quote}}
	u := coinmarketcapBaseURL + "/v2/cryptocurrency/quotes/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.APIKey())

	resp, err := c.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "coinmarketcap").Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var data cmcResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, false
	}

	raw, ok := data.Data[base]
	if !ok {
		return 0, false
	}

	// CMC may return a single object or a list of matches; take the first.
	var symbolData cmcSymbolData
	var list []cmcSymbolData
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		symbolData = list[0]
	} else if err := json.Unmarshal(raw, &symbolData); err != nil {
		return 0, false
	}

	quoteData, ok := symbolData.Quote[quote]
	if !ok {
		return 0, false
	}
	return quoteData.Price, true
}

func (c *CoinMarketCap) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	return FetchBatchSequential(ctx, c, pairs)
}
