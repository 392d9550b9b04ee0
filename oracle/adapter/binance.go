package adapter

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/ojo-network/rofl-price-oracle/oracle/types"
	"github.com/rs/zerolog/log"
)

const (
	binanceBaseURL        = "https://api.binance.com/api/v3"
	binanceUSDTDepegLimit = 0.02
)

// pairInfo records how a (base, quote) resolves on Binance: the symbol
// to fetch, and whether the result still needs multiplying by the
// USDT/USD rate.
type binancePairInfo struct {
	symbol           string
	needsUSDTConvert bool
}

// Binance is a batch-capable adapter with a self-contained USDT->USD
// conversion path and a depeg guard, ported from
// original_source/oracle/src/fetchers/binance.py. It is the adapter
// that exercises the stablecoin cache's write side is NOT this one --
// the usdt/usd pair observer writes the cache -- but this adapter is
// the reference case for why a depegged rate must null out every
// USDT-routed sample in the same tick (spec scenario 8).
type Binance struct {
	Base

	mu       sync.Mutex
	pairInfo map[types.TradingPair]binancePairInfo
}

func NewBinance(client *http.Client, apiKey string) *Binance {
	return &Binance{
		Base:     NewBase(client, apiKey),
		pairInfo: make(map[types.TradingPair]binancePairInfo),
	}
}

func (b *Binance) Name() types.SourceName { return "binance" }
func (b *Binance) SupportsBatch() bool    { return true }

func (b *Binance) SupportsPair(ctx context.Context, pair types.TradingPair) bool {
	b.mu.Lock()
	if _, ok := b.pairInfo[pair]; ok {
		b.mu.Unlock()
		return true
	}
	b.mu.Unlock()

	baseU := strings.ToUpper(pair.Base)
	quoteU := strings.ToUpper(pair.Quote)

	if quoteU != "USD" {
		symbol := baseU + quoteU
		prices := b.fetchSymbols(ctx, []string{symbol})
		if _, ok := prices[symbol]; ok {
			b.setPairInfo(pair, binancePairInfo{symbol: symbol})
			return true
		}
		return false
	}

	direct := baseU + "USD"
	usdt := baseU + "USDT"
	prices := b.fetchSymbols(ctx, []string{direct, usdt, "USDTUSD"})

	if _, ok := prices[direct]; ok {
		b.setPairInfo(pair, binancePairInfo{symbol: direct})
		return true
	}
	if _, okU := prices[usdt]; okU {
		if _, okR := prices["USDTUSD"]; okR {
			b.setPairInfo(pair, binancePairInfo{symbol: usdt, needsUSDTConvert: true})
			return true
		}
	}
	return false
}

func (b *Binance) setPairInfo(pair types.TradingPair, info binancePairInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pairInfo[pair] = info
}

func (b *Binance) getPairInfo(pair types.TradingPair) (binancePairInfo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.pairInfo[pair]
	return info, ok
}

func (b *Binance) Fetch(ctx context.Context, pair types.TradingPair) (float64, bool) {
	info, ok := b.getPairInfo(pair)
	if !ok {
		return 0, false
	}

	if !info.needsUSDTConvert {
		return b.fetchSymbol(ctx, info.symbol)
	}

	prices := b.fetchSymbols(ctx, []string{info.symbol, "USDTUSD"})
	price, ok1 := prices[info.symbol]
	rate, ok2 := prices["USDTUSD"]
	if !ok1 || !ok2 {
		return 0, false
	}
	if isUSDTDepegged(rate) {
		log.Warn().Str("source", "binance").Float64("rate", rate).Msg("usdt depeg detected, excluding sample")
		return 0, false
	}
	return price * rate, true
}

func (b *Binance) FetchBatch(ctx context.Context, pairs []types.TradingPair) map[types.TradingPair]float64 {
	results := make(map[types.TradingPair]float64, len(pairs))
	if len(pairs) == 0 {
		return results
	}

	symbolSet := make(map[string]struct{})
	needsConvert := make(map[types.TradingPair]bool)
	unsupported := make(map[types.TradingPair]bool)

	for _, pair := range pairs {
		info, ok := b.getPairInfo(pair)
		if !ok {
			unsupported[pair] = true
			continue
		}
		symbolSet[info.symbol] = struct{}{}
		if info.needsUSDTConvert {
			symbolSet["USDTUSD"] = struct{}{}
			needsConvert[pair] = true
		}
	}

	if len(symbolSet) == 0 {
		return results
	}

	symbols := make([]string, 0, len(symbolSet))
	for s := range symbolSet {
		symbols = append(symbols, s)
	}

	priceMap := b.fetchSymbols(ctx, symbols)

	usdtRate, haveRate := priceMap["USDTUSD"]
	if haveRate && isUSDTDepegged(usdtRate) {
		log.Warn().Str("source", "binance").Float64("rate", usdtRate).Msg("usdt depeg detected, excluding batch")
		haveRate = false
	}

	for _, pair := range pairs {
		if unsupported[pair] {
			continue
		}
		info, _ := b.getPairInfo(pair)
		price, ok := priceMap[info.symbol]
		if !ok {
			continue
		}
		if needsConvert[pair] {
			if !haveRate {
				continue
			}
			results[pair] = price * usdtRate
		} else {
			results[pair] = price
		}
	}

	return results
}

func isUSDTDepegged(rate float64) bool {
	return math.Abs(rate-1.0) > binanceUSDTDepegLimit
}

func (b *Binance) fetchSymbol(ctx context.Context, symbol string) (float64, bool) {
	prices := b.fetchSymbols(ctx, []string{symbol})
	price, ok := prices[symbol]
	return price, ok
}

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (b *Binance) fetchSymbols(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64)

	u := binanceBaseURL + "/ticker/price"
	q := url.Values{}
	if len(symbols) == 1 {
		q.Set("symbol", symbols[0])
	} else {
		encoded, err := json.Marshal(symbols)
		if err != nil {
			return out
		}
		q.Set("symbols", string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return out
	}

	resp, err := b.Client().Do(req)
	if err != nil {
		log.Warn().Str("source", "binance").Err(err).Msg("request failed")
		return out
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Str("source", "binance").Int("status", resp.StatusCode).Msg("non-200 response")
		return out
	}

	if len(symbols) == 1 {
		var t binanceTicker
		if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
			return out
		}
		if price, err := strconv.ParseFloat(t.Price, 64); err == nil {
			out[t.Symbol] = price
		}
		return out
	}

	var tickers []binanceTicker
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return out
	}
	for _, t := range tickers {
		if price, err := strconv.ParseFloat(t.Price, 64); err == nil {
			out[t.Symbol] = price
		}
	}
	return out
}
