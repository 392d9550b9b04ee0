package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// TradingPair is an ordered (base, quote) currency symbol tuple. Both
// symbols are normalized to lowercase ASCII by the constructors and
// parsers in this file; equality and hashing are plain struct equality
// over the fields, so two pairs built through them with differing case
// compare equal.
type TradingPair struct {
	Base  string
	Quote string
}

// NewTradingPair lowercases base and quote and returns the pair.
func NewTradingPair(base, quote string) TradingPair {
	return TradingPair{Base: strings.ToLower(base), Quote: strings.ToLower(quote)}
}

// String returns the canonical on-chain form "aggregated/<base>/<quote>".
func (p TradingPair) String() string {
	return "aggregated/" + p.Base + "/" + p.Quote
}

// Key returns the "<base>/<quote>" form used to key active-source maps.
func (p TradingPair) Key() string {
	return p.Base + "/" + p.Quote
}

// TradingPairFromString parses the canonical "aggregated/<base>/<quote>"
// form. It is the inverse of String, modulo case, and rejects any input
// that does not split into exactly two segments after the prefix.
func TradingPairFromString(s string) (TradingPair, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "aggregated/")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TradingPair{}, fmt.Errorf("invalid trading pair %q: want base/quote", s)
	}

	return TradingPair{Base: parts[0], Quote: parts[1]}, nil
}

// FeedHash returns the keccak256 digest used as the directory contract's
// lookup key for this pair: keccak256(hex(appID) + "/" + p.String()).
// appID is the raw application identifier bytes (not bech32-encoded).
func (p TradingPair) FeedHash(appID []byte) [32]byte {
	preimage := fmt.Sprintf("%x/%s", appID, p.String())
	return crypto.Keccak256Hash([]byte(preimage))
}

func (p TradingPair) MarshalText() (text []byte, err error) {
	type noMethod TradingPair
	return json.Marshal(noMethod(p))
}

func (p *TradingPair) UnmarshalText(text []byte) error {
	type noMethod TradingPair
	if err := json.Unmarshal(text, (*noMethod)(p)); err != nil {
		return err
	}
	p.Base = strings.ToLower(p.Base)
	p.Quote = strings.ToLower(p.Quote)
	return nil
}

// MapPairsToSlice returns the map of trading pairs as a slice.
func MapPairsToSlice(mapPairs map[string]TradingPair) []TradingPair {
	pairs := make([]TradingPair, 0, len(mapPairs))
	for _, p := range mapPairs {
		pairs = append(pairs, p)
	}
	return pairs
}
