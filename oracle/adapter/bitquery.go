package adapter

import (
	"context"
	"net/http"
	"strings"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/rs/zerolog/log"
)

const bitqueryURL = "https://graphql.bitquery.io"

// bitqueryTokenAddresses maps common symbols to their Ethereum mainnet
// contract addresses, used as DEX trade query inputs.
var bitqueryTokenAddresses = map[string]string{
	"btc":  "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599",
	"eth":  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
	"usdt": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
	"usdc": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
}

// bitqueryTradesQuery mirrors BitqueryFetcher.PRICE_QUERY: the latest
// DEX trade between a base and quote token on Ethereum.
type bitqueryTradesQuery struct {
	Ethereum struct {
		DexTrades []struct {
			QuotePrice float64
			Block      struct {
				Timestamp struct {
					Unixtime int64
				}
			}
		} `graphql:"dexTrades(baseCurrency: {is: $base}, quoteCurrency: {is: $quote}, options: {limit: 1, desc: \"block.timestamp.unixtime\"})"`
	} `graphql:"ethereum(network: ethereum)"`
}

// Bitquery resolves prices from the latest on-chain DEX trade rather
// than a centralized order book, which carries higher latency and
// only covers tokens with an Ethereum mainnet address on file.
// Non-batch. API key required. Ported from
// original_source/oracle/src/fetchers/bitquery.py.
type Bitquery struct {
	Base
	client *graphql.Client
}

func NewBitquery(client *http.Client, apiKey string) *Bitquery {
	return &Bitquery{
		Base:   NewBase(client, apiKey),
		client: graphql.NewClient(bitqueryURL, client),
	}
}

func (b *Bitquery) Name() types.SourceName { return "bitquery" }
func (b *Bitquery) SupportsBatch() bool    { return false }

func (b *Bitquery) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	_, baseOK := bitqueryTokenAddresses[pair.Base]
	quote := strings.ToLower(pair.Quote)
	_, quoteOK := bitqueryTokenAddresses[quote]
	return baseOK && (quoteOK || quote == "usd")
}

func (b *Bitquery) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	return FetchBatchSequential(ctx, b, pairs)
}

func (b *Bitquery) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	if !b.HasAPIKey() {
		log.Warn().Str("source", "bitquery").Msg("api key required but not provided")
		return 0, false
	}

	baseAddr, ok := bitqueryTokenAddresses[pair.Base]
	if !ok {
		return 0, false
	}

	quote := strings.ToLower(pair.Quote)
	quoteAddr, ok := bitqueryTokenAddresses[quote]
	if !ok && quote == "usd" {
		quoteAddr, ok = bitqueryTokenAddresses["usdt"]
	}
	if !ok {
		return 0, false
	}

	var q bitqueryTradesQuery
	vars := map[string]interface{}{
		"base":  baseAddr,
		"quote": quoteAddr,
	}

	req := b.client.WithRequestModifier(func(r *http.Request) {
		r.Header.Set("X-API-KEY", b.APIKey())
	})

	if err := req.Query(ctx, &q, vars); err != nil {
		log.Warn().Str("source", "bitquery").Err(err).Msg("query failed")
		return 0, false
	}

	if len(q.Ethereum.DexTrades) == 0 {
		return 0, false
	}
	return q.Ethereum.DexTrades[0].QuotePrice, true
}
