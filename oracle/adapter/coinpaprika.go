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

const coinpaprikaBaseURL = "https://api.coinpaprika.com/v1"

// coinpaprikaCoinIDs maps common symbols to Coinpaprika's "symbol-name"
// coin ids.
var coinpaprikaCoinIDs = map[string]string{
	"btc": "btc-bitcoin", "eth": "eth-ethereum", "usdt": "usdt-tether",
	"usdc": "usdc-usd-coin", "rose": "rose-oasis-network", "sol": "sol-solana",
	"avax": "avax-avalanche", "matic": "matic-polygon", "dot": "dot-polkadot",
	"atom": "atom-cosmos", "link": "link-chainlink", "uni": "uni-uniswap", "aave": "aave-aave",
}

// Coinpaprika is a batch-capable adapter fetching every ticker through
// the shared /tickers endpoint and picking out the ones asked for, per
// original_source/oracle/src/fetchers/coinpaprika.py.
type Coinpaprika struct {
	Base
}

func NewCoinpaprika(client *http.Client, apiKey string) *Coinpaprika {
	return &Coinpaprika{Base: NewBase(client, apiKey)}
}

func (c *Coinpaprika) Name() types.SourceName { return "coinpaprika" }
func (c *Coinpaprika) SupportsBatch() bool    { return true }

func (c *Coinpaprika) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	_, ok := coinpaprikaCoinIDs[pair.Base]
	return ok
}

type coinpaprikaQuoteData struct {
	Price *float64 `json:"price"`
}

type coinpaprikaTicker struct {
	ID     string                           `json:"id"`
	Quotes map[string]coinpaprikaQuoteData `json:"quotes"`
}

func (c *Coinpaprika) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	coinID, ok := coinpaprikaCoinIDs[pair.Base]
	if !ok {
		return 0, false
	}

	u := coinpaprikaBaseURL + "/tickers/" + coinID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}

	resp, err := c.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "coinpaprika").Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var t coinpaprikaTicker
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return 0, false
	}

	quote, ok := t.Quotes[strings.ToUpper(pair.Quote)]
	if !ok || quote.Price == nil {
		return 0, false
	}
	return *quote.Price, true
}

func (c *Coinpaprika) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	results := make(map[types.TradingPair]float64, len(pairs))

	supported := make([]types.TradingPair, 0, len(pairs))
	quotesNeeded := make(map[string]struct{})
	for _, p := range pairs {
		if _, ok := coinpaprikaCoinIDs[p.Base]; !ok {
			continue
		}
		supported = append(supported, p)
		quotesNeeded[strings.ToUpper(p.Quote)] = struct{}{}
	}
	if len(supported) == 0 {
		return results
	}

	quotes := make([]string, 0, len(quotesNeeded))
	for q := range quotesNeeded {
		quotes = append(quotes, q)
	}

	q := url.Values{"quotes": {strings.Join(quotes, ",")}}
	u := coinpaprikaBaseURL + "/tickers?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return results
	}

	resp, err := c.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "coinpaprika").Err(err).Msg("batch request failed")
		return results
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return results
	}

	var tickers []coinpaprikaTicker
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return results
	}

	byID := make(map[string]coinpaprikaTicker, len(tickers))
	for _, t := range tickers {
		byID[t.ID] = t
	}

	for _, p := range supported {
		coinID := coinpaprikaCoinIDs[p.Base]
		ticker, ok := byID[coinID]
		if !ok {
			continue
		}
		quote, ok := ticker.Quotes[strings.ToUpper(p.Quote)]
		if !ok || quote.Price == nil {
			continue
		}
		results[p] = *quote.Price
	}

	return results
}
