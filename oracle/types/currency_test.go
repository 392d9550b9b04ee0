package types

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTradingPairLowercases(t *testing.T) {
	p := NewTradingPair("BTC", "USD")
	require.Equal(t, "btc", p.Base)
	require.Equal(t, "usd", p.Quote)
	require.Equal(t, "aggregated/btc/usd", p.String())
	require.Equal(t, "btc/usd", p.Key())
}

func TestTradingPairFromString(t *testing.T) {
	t.Run("round trips through canonical form", func(t *testing.T) {
		p, err := TradingPairFromString("aggregated/BTC/USD")
		require.NoError(t, err)
		require.Equal(t, NewTradingPair("btc", "usd"), p)
		require.Equal(t, "aggregated/btc/usd", p.String())
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := TradingPairFromString("aggregated/btc")
		require.Error(t, err)

		_, err = TradingPairFromString("aggregated/btc/usd/extra")
		require.Error(t, err)

		_, err = TradingPairFromString("aggregated//usd")
		require.Error(t, err)
	})
}

func TestFeedHashDeterministic(t *testing.T) {
	appID, err := hex.DecodeString("005a216eb7f450bcc1f534a7575fb33d611b463fa2")
	require.NoError(t, err)

	pair := NewTradingPair("btc", "usd")

	h1 := pair.FeedHash(appID)
	h2 := pair.FeedHash(appID)
	require.Equal(t, h1, h2, "feed hash must be deterministic")

	other := NewTradingPair("eth", "usd")
	require.NotEqual(t, h1, other.FeedHash(appID), "feed hash must depend on the pair")

	otherApp, _ := hex.DecodeString("015a216eb7f450bcc1f534a7575fb33d611b463fa2")
	require.NotEqual(t, h1, pair.FeedHash(otherApp), "feed hash must depend on the app id")
}

func TestMapPairsToSlice(t *testing.T) {
	m := map[string]TradingPair{
		"btc/usd": NewTradingPair("btc", "usd"),
		"eth/usd": NewTradingPair("eth", "usd"),
	}
	s := MapPairsToSlice(m)
	require.Len(t, s, 2)
}
