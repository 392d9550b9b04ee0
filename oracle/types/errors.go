package types

import (
	"cosmossdk.io/errors"
)

const ModuleName = "rofl-price-oracle"

// Registered error kinds. fetch-level failures (§4.1) never surface as
// errors at all -- an adapter reports them as (0, false) -- so they are
// deliberately absent from this list.
var (
	ErrInsufficientSources = errors.Register(ModuleName, 2, "insufficient sources: only %d available")
	ErrTooManyOutliers     = errors.Register(ModuleName, 3, "too many outliers dropped")
	ErrDriftTooLarge       = errors.Register(ModuleName, 4, "drift %.2f%% exceeds limit versus previous %.6f")
	ErrSubmitFailed        = errors.Register(ModuleName, 5, "submit observation failed for %s")
	ErrConfig              = errors.Register(ModuleName, 6, "configuration error")
	ErrContractUnavailable = errors.Register(ModuleName, 7, "no aggregator contract available for %s")
	ErrSigningDaemon       = errors.Register(ModuleName, 8, "signing daemon request failed")
	ErrNoSourcesForPair    = errors.Register(ModuleName, 9, "no configured source supports %s")
)
