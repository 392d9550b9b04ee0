package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/rs/zerolog/log"
)

const coinapiBaseURL = "https://rest.coinapi.io/v1"

// CoinAPI requires an API key; without one SupportsPair and Fetch both
// fail closed. Non-batch. Ported from
// original_source/oracle/src/fetchers/coinapi.py.
type CoinAPI struct {
	Base
}

func NewCoinAPI(client *http.Client, apiKey string) *CoinAPI {
	return &CoinAPI{Base: NewBase(client, apiKey)}
}

func (c *CoinAPI) Name() types.SourceName { return "coinapi" }
func (c *CoinAPI) SupportsBatch() bool    { return false }

func (c *CoinAPI) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	if !c.HasAPIKey() {
		return false
	}
	_, ok := c.Fetch(ctx, pair)
	return ok
}

func (c *CoinAPI) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	return FetchBatchSequential(ctx, c, pairs)
}

type coinapiRate struct {
	Rate float64 `json:"rate"`
}

func (c *CoinAPI) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	if !c.HasAPIKey() {
		log.Warn().Str("source", "coinapi").Msg("api key required but not provided")
		return 0, false
	}

	u := coinapiBaseURL + "/exchangerate/" + strings.ToUpper(pair.Base) + "/" + strings.ToUpper(pair.Quote)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("X-CoinAPI-Key", c.APIKey())

	resp, err := c.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "coinapi").Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var data coinapiRate
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, false
	}
	return data.Rate, true
}
