package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/rs/zerolog/log"
)

const coinbaseBaseURL = "https://api.exchange.coinbase.com"

// Coinbase is a direct-quote, non-batch adapter against Coinbase
// Exchange's public ticker endpoint. Ported from
// original_source/oracle/src/fetchers/coinbase.py.
type Coinbase struct {
	Base
}

func NewCoinbase(client *http.Client, apiKey string) *Coinbase {
	return &Coinbase{Base: NewBase(client, apiKey)}
}

func (c *Coinbase) Name() types.SourceName { return "coinbase" }
func (c *Coinbase) SupportsBatch() bool    { return false }

func (c *Coinbase) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	_, ok := c.Fetch(ctx, pair)
	return ok
}

func (c *Coinbase) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	return FetchBatchSequential(ctx, c, pairs)
}

type coinbaseTicker struct {
	Price string `json:"price"`
}

func (c *Coinbase) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	symbol := strings.ToUpper(pair.Base) + "-" + strings.ToUpper(pair.Quote)
	u := coinbaseBaseURL + "/products/" + symbol + "/ticker"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}

	resp, err := c.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "coinbase").Str("symbol", symbol).Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Str("source", "coinbase").Int("status", resp.StatusCode).Msg("non-200 response")
		return 0, false
	}

	var t coinbaseTicker
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil || t.Price == "" {
		return 0, false
	}

	price, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
