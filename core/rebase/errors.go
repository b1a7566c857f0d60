package rebase

import "errors"

var (
	// ErrNotReady indicates ExecuteEpoch was called before a full epoch has
	// elapsed since the previous execution. The caller may retry later.
	ErrNotReady = errors.New("epoch not ready")
	// ErrNegativeInput indicates a backing value passed to the rate engine
	// was negative. Reserve, supply and floor values are magnitudes.
	ErrNegativeInput = errors.New("rebase: negative input value")
	// ErrNilLedger indicates the scheduler was constructed without a ledger.
	ErrNilLedger = errors.New("rebase: ledger must not be nil")
	// ErrNilTreasury indicates the scheduler was constructed without a treasury.
	ErrNilTreasury = errors.New("rebase: treasury must not be nil")
	// ErrNilSink indicates one of the three distribution sinks is missing.
	ErrNilSink = errors.New("rebase: distribution sink must not be nil")
)
