package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/rs/zerolog/log"
)

const krakenBaseURL = "https://api.kraken.com/0/public"

// krakenSymbolMap remaps common symbols to Kraken's non-standard
// ticker codes (it lists bitcoin as XBT, not BTC).
var krakenSymbolMap = map[string]string{
	"btc": "XBT",
}

// Kraken is a direct-quote, non-batch adapter. It does not list rose,
// so SupportsPair rejects that base up front rather than paying for a
// round trip that is known to fail. Ported from
// original_source/oracle/src/fetchers/kraken.py.
type Kraken struct {
	Base
}

func NewKraken(client *http.Client, apiKey string) *Kraken {
	return &Kraken{Base: NewBase(client, apiKey)}
}

func (k *Kraken) Name() types.SourceName { return "kraken" }
func (k *Kraken) SupportsBatch() bool    { return false }

func (k *Kraken) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	if pair.Base == "rose" {
		return false
	}
	_, ok := k.Fetch(ctx, pair)
	return ok
}

func (k *Kraken) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	return FetchBatchSequential(ctx, k, pairs)
}

type krakenResponse struct {
	Error  []string                  `json:"error"`
	Result map[string]krakenPairData `json:"result"`
}

type krakenPairData struct {
	Close []string `json:"c"`
}

func (k *Kraken) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	base := krakenSymbolMap[pair.Base]
	if base == "" {
		base = strings.ToUpper(pair.Base)
	}
	krakenPair := base + strings.ToUpper(pair.Quote)

	u := krakenBaseURL + "/Ticker?" + url.Values{"pair": {krakenPair}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false
	}

	resp, err := k.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "kraken").Str("pair", krakenPair).Err(err).Msg("request failed")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	var data krakenResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, false
	}
	if len(data.Error) > 0 {
		log.Warn().Str("source", "kraken").Strs("errors", data.Error).Msg("api error")
		return 0, false
	}
	if len(data.Result) == 0 {
		return 0, false
	}

	for _, pairData := range data.Result {
		if len(pairData.Close) == 0 {
			return 0, false
		}
		price, err := strconv.ParseFloat(pairData.Close[0], 64)
		if err != nil {
			return 0, false
		}
		return price, true
	}
	return 0, false
}
