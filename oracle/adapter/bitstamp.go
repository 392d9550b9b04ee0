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

const bitstampBaseURL = "https://www.bitstamp.net/api/v2"

// Bitstamp is a direct-quote, non-batch adapter. It does not list
// rose. Ported from original_source/oracle/src/fetchers/bitstamp.py.
type Bitstamp struct {
	Base
}

func NewBitstamp(client *http.Client, apiKey string) *Bitstamp {
	return &Bitstamp{Base: NewBase(client, apiKey)}
}

func (b *Bitstamp) Name() types.SourceName { return "bitstamp" }
func (b *Bitstamp) SupportsBatch() bool    { return false }

func (b *Bitstamp) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	if pair.Base == "rose" {
		return false
	}
	_, ok := b.Fetch(ctx, pair)
	return ok
}

func (b *Bitstamp) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	return FetchBatchSequential(ctx, b, pairs)
}

type bitstampTicker struct {
	Last string `json:"last"`
}

func (b *Bitstamp) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	symbol := strings.ToLower(pair.Base) + strings.ToLower(pair.Quote)
	u := bitstampBaseURL + "/ticker/" + symbol + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}

	resp, err := b.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "bitstamp").Str("pair", symbol).Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var t bitstampTicker
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil || t.Last == "" {
		return 0, false
	}

	price, err := strconv.ParseFloat(t.Last, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
