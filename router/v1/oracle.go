package v1

import (
	"github.com/ojo-network/rofl-price-oracle/oracle/observer"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
)

// Oracle defines the subset of the orchestrator the control-plane
// router depends on, so handlers can be tested against a fake without
// pulling in the full oracle package.
type Oracle interface {
	PairStatuses() map[types.TradingPair]observer.Status
}
