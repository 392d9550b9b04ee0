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

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// coingeckoCoinIDs maps common symbols to CoinGecko's own coin ids.
var coingeckoCoinIDs = map[string]string{
	"btc": "bitcoin", "eth": "ethereum", "rose": "oasis-network",
	"usdt": "tether", "usdc": "usd-coin", "sol": "solana",
	"avax": "avalanche-2", "matic": "matic-network", "dot": "polkadot",
	"atom": "cosmos", "link": "chainlink", "uni": "uniswap", "aave": "aave",
}

// CoinGecko is a direct-quote, non-batch adapter with an optional API
// key (raises the free-tier rate limit but is not required). Ported
// from original_source/oracle/src/fetchers/coingecko.py.
type CoinGecko struct {
	Base
}

func NewCoinGecko(client *http.Client, apiKey string) *CoinGecko {
	return &CoinGecko{Base: NewBase(client, apiKey)}
}

func (g *CoinGecko) Name() types.SourceName { return "coingecko" }
func (g *CoinGecko) SupportsBatch() bool    { return false }

func (g *CoinGecko) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	_, ok := coingeckoCoinIDs[pair.Base]
	return ok
}

func (g *CoinGecko) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	return FetchBatchSequential(ctx, g, pairs)
}

func (g *CoinGecko) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	coinID, ok := coingeckoCoinIDs[pair.Base]
	if !ok {
		return 0, false
	}

	q := url.Values{"ids": {coinID}, "vs_currencies": {pair.Quote}}
	u := coingeckoBaseURL + "/simple/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}
	if g.HasAPIKey() {
		req.Header.Set("x-cg-pro-api-key", g.APIKey())
	}

	resp, err := g.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "coingecko").Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var data map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, false
	}

	quotes, ok := data[coinID]
	if !ok {
		return 0, false
	}
	price, ok := quotes[strings.ToLower(pair.Quote)]
	return price, ok
}
