// Package chain defines the narrow on-chain surface the oracle depends
// on: the feed directory and per-pair aggregator contracts. The rest
// of the module only ever depends on the Client interface; EVMClient
// is the concrete implementation backed by go-ethereum.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RoundData mirrors an aggregator contract's latestRoundData() return
// tuple.
type RoundData struct {
	RoundID   *big.Int
	Answer    *big.Int
	StartedAt int64
	UpdatedAt int64
}

// Client is the on-chain surface consumed by the oracle orchestrator
// and pair observers. The concrete implementation, EVMClient, pairs
// minimal inline ABI fragments with an RPC connection; the rest of this
// module only ever depends on this interface.
type Client interface {
	// Feeds resolves a feed hash to its aggregator contract address via
	// the directory contract. A zero address means the feed has not
	// been registered yet.
	Feeds(ctx context.Context, feedHash [32]byte) (common.Address, error)

	// AddFeed registers a newly deployed aggregator contract under a
	// canonical pair name in the directory contract.
	AddFeed(ctx context.Context, name string, aggregator common.Address, enabled bool) (common.Hash, error)

	// Decimals returns the aggregator contract's configured decimals.
	Decimals(ctx context.Context, aggregator common.Address) (uint8, error)

	// Description returns the aggregator contract's configured pair
	// description string.
	Description(ctx context.Context, aggregator common.Address) (string, error)

	// SetDecimals configures the aggregator contract's decimals. Used
	// once, at first-seen initialization (§4.6).
	SetDecimals(ctx context.Context, aggregator common.Address, decimals uint8) (common.Hash, error)

	// SetDescription configures the aggregator contract's description.
	SetDescription(ctx context.Context, aggregator common.Address, description string) (common.Hash, error)

	// LatestRoundData returns the aggregator contract's latest reported
	// round.
	LatestRoundData(ctx context.Context, aggregator common.Address) (RoundData, error)

	// SubmitObservation submits an aggregated observation for a new
	// round. The transaction itself is relayed through the signing
	// daemon (§6); this method builds the call and hands it off.
	SubmitObservation(ctx context.Context, aggregator common.Address, roundID *big.Int, answer *big.Int, startedAt, updatedAt int64, gasPrice *big.Int) (common.Hash, error)

	// GasPrice returns the chain's current suggested gas price.
	GasPrice(ctx context.Context) (*big.Int, error)
}
