package rebase

import (
	"fmt"
	"math/big"
	"time"
)

const (
	secondsPerYear = 365 * 24 * 60 * 60

	// SplitDenominator defines the basis point denominator used for mint splits.
	SplitDenominator uint32 = 10_000

	ratioScale = int64(1_000_000_000_000_000_000)
)

var (
	ratioScaleBig = big.NewInt(ratioScale)
	accrualDenom  = big.NewInt(secondsPerYear * int64(SplitDenominator))
)

// RatioUnit returns the 1e18 scaling factor applied to backing ratios. A ratio
// equal to one unit means the reserve backs the supply exactly 1:1.
func RatioUnit() *big.Int {
	return new(big.Int).Set(ratioScaleBig)
}

// Params holds the deployment-time rate curve coefficients and mint split
// weights. Values are fixed at construction and never mutated at runtime.
type Params struct {
	// EpochLength is the fixed duration of one rebase epoch.
	EpochLength time.Duration

	// CeilAPR caps the annualised rate, expressed in basis points.
	CeilAPR uint64

	// CurveQuad and CurveLin are the quadratic and linear coefficients of the
	// APR curve evaluated over the unit excess backing. The defaults are the
	// unique convex quadratic through the calibrated operating points
	// (50% excess -> 500, 100% excess -> 1250).
	CurveQuad uint64
	CurveLin  uint64

	// StakerSplit, OpsSplit and BurnerSplit apportion the epoch mint across
	// the staking pool, the operations sink and the floor burner, expressed
	// in basis points. They must sum to SplitDenominator and each must be
	// strictly positive so no destination is silently starved.
	StakerSplit uint32
	OpsSplit    uint32
	BurnerSplit uint32
}

// DefaultParams returns the production curve calibration: an eight hour epoch,
// a 20% APR ceiling and an 85/5/10 staker/ops/burner split.
func DefaultParams() Params {
	return Params{
		EpochLength: 8 * time.Hour,
		CeilAPR:     2000,
		CurveQuad:   500,
		CurveLin:    750,
		StakerSplit: 8500,
		OpsSplit:    500,
		BurnerSplit: 1000,
	}
}

// Validate ensures the parameter set is internally consistent.
func (p Params) Validate() error {
	if p.EpochLength <= 0 {
		return fmt.Errorf("rebase: epoch length must be positive")
	}
	if p.EpochLength > 365*24*time.Hour {
		return fmt.Errorf("rebase: epoch length exceeds the annualisation period")
	}
	if p.CeilAPR == 0 {
		return fmt.Errorf("rebase: apr ceiling must be positive")
	}
	if p.CurveQuad == 0 && p.CurveLin == 0 {
		return fmt.Errorf("rebase: curve coefficients must not both be zero")
	}
	if p.StakerSplit == 0 || p.OpsSplit == 0 || p.BurnerSplit == 0 {
		return fmt.Errorf("rebase: every split weight must be strictly positive")
	}
	if p.StakerSplit+p.OpsSplit+p.BurnerSplit != SplitDenominator {
		return fmt.Errorf("rebase: split weights must sum to %d basis points", SplitDenominator)
	}
	return nil
}

func (p Params) epochSeconds() int64 {
	return int64(p.EpochLength / time.Second)
}
