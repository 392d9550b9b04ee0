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

const eodhdBaseURL = "https://eodhd.com/api"

// EODHD requires an API key and only quotes against USD. Non-batch.
// Ported from original_source/oracle/src/fetchers/eodhd.py.
type EODHD struct {
	Base
}

func NewEODHD(client *http.Client, apiKey string) *EODHD {
	return &EODHD{Base: NewBase(client, apiKey)}
}

func (e *EODHD) Name() types.SourceName { return "eodhd" }
func (e *EODHD) SupportsBatch() bool    { return false }

func (e *EODHD) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	return strings.ToLower(pair.Quote) == "usd"
}

func (e *EODHD) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	return FetchBatchSequential(ctx, e, pairs)
}

type eodhdQuote struct {
	Close float64 `json:"close"`
}

func (e *EODHD) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	if !e.HasAPIKey() {
		log.Warn().Str("source", "eodhd").Msg("api key required but not provided")
		return 0, false
	}
	if strings.ToLower(pair.Quote) != "usd" {
		return 0, false
	}

	symbol := strings.ToUpper(pair.Base) + "-USD.CC"
	q := url.Values{"api_token": {e.APIKey()}, "fmt": {"json"}}
	u := eodhdBaseURL + "/real-time/" + symbol + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}

	resp, err := e.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "eodhd").Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var data eodhdQuote
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, false
	}
	return data.Close, true
}
