package rebase

import "math/big"

// BackingRatio derives the scaled backing ratio from the treasury reserve
// value and the circulating supply value. A supply of zero yields a ratio of
// zero: a token with no circulating supply has no meaningful backing ratio.
func BackingRatio(reserveValue, supplyValue *big.Int) *big.Int {
	reserve := copyBigInt(reserveValue)
	supply := copyBigInt(supplyValue)
	if supply.Sign() == 0 {
		return big.NewInt(0)
	}
	ratio := new(big.Int).Mul(reserve, ratioScaleBig)
	return ratio.Quo(ratio, supply)
}

// Result is the full outcome of one rate projection. All amounts are
// non-negative and ToStakers+ToOps+ToBurner equals EpochMint exactly.
type Result struct {
	APR        uint64
	Ratio      *big.Int
	EpochMint  *big.Int
	ToStakers  *big.Int
	ToOps      *big.Int
	ToBurner   *big.Int
	FloorValue *big.Int
}

func zeroResult(ratio, floorValue *big.Int) Result {
	return Result{
		APR:        0,
		Ratio:      ratio,
		EpochMint:  big.NewInt(0),
		ToStakers:  big.NewInt(0),
		ToOps:      big.NewInt(0),
		ToBurner:   big.NewInt(0),
		FloorValue: copyBigInt(floorValue),
	}
}

// ProjectedRateRaw maps a backing snapshot onto the epoch mint decision. The
// computation is pure: it reads no collaborator state and has no side effects.
// The floor value is carried through to the split record for the burner but
// does not alter the rate curve.
func (p Params) ProjectedRateRaw(reserveValue, supplyValue, floorValue *big.Int) (Result, error) {
	if isNegative(reserveValue) || isNegative(supplyValue) || isNegative(floorValue) {
		return Result{}, ErrNegativeInput
	}
	ratio := BackingRatio(reserveValue, supplyValue)
	if ratio.Cmp(ratioScaleBig) <= 0 {
		return zeroResult(ratio, floorValue), nil
	}

	excess := new(big.Int).Sub(ratio, ratioScaleBig)
	apr := p.aprForExcess(excess)
	if apr == 0 {
		return zeroResult(ratio, floorValue), nil
	}

	mint := p.epochMint(supplyValue, apr)
	if mint.Sign() == 0 {
		return zeroResult(ratio, floorValue), nil
	}

	toStakers, toOps, toBurner := p.splitMint(mint)
	return Result{
		APR:        apr,
		Ratio:      ratio,
		EpochMint:  mint,
		ToStakers:  toStakers,
		ToOps:      toOps,
		ToBurner:   toBurner,
		FloorValue: copyBigInt(floorValue),
	}, nil
}

// aprForExcess evaluates the uncapped quadratic curve over the scaled excess
// backing and clamps the result to the ceiling afterwards. Clamping happens on
// the final value only, never on intermediate terms, so the curve keeps its
// shape right up to the cap.
func (p Params) aprForExcess(excess *big.Int) uint64 {
	if excess.Sign() <= 0 {
		return 0
	}
	quad := new(big.Int).Mul(excess, excess)
	quad.Mul(quad, new(big.Int).SetUint64(p.CurveQuad))
	quad.Quo(quad, ratioScaleBig)
	quad.Quo(quad, ratioScaleBig)

	lin := new(big.Int).Mul(excess, new(big.Int).SetUint64(p.CurveLin))
	lin.Quo(lin, ratioScaleBig)

	raw := quad.Add(quad, lin)
	ceil := new(big.Int).SetUint64(p.CeilAPR)
	if raw.Cmp(ceil) >= 0 {
		return p.CeilAPR
	}
	return raw.Uint64()
}

// epochMint prorates the annualised rate down to a single epoch. The APR is
// applied as simple interest over the epoch duration.
func (p Params) epochMint(supplyValue *big.Int, apr uint64) *big.Int {
	mint := new(big.Int).Set(supplyValue)
	mint.Mul(mint, new(big.Int).SetUint64(apr))
	mint.Mul(mint, big.NewInt(p.epochSeconds()))
	return mint.Quo(mint, accrualDenom)
}

// splitMint apportions the epoch mint across the three destinations by the
// configured basis point weights. Integer division remainders are assigned to
// the staker share so the three shares always conserve the full mint.
func (p Params) splitMint(mint *big.Int) (toStakers, toOps, toBurner *big.Int) {
	denom := big.NewInt(int64(SplitDenominator))

	toOps = new(big.Int).Mul(mint, big.NewInt(int64(p.OpsSplit)))
	toOps.Quo(toOps, denom)
	toBurner = new(big.Int).Mul(mint, big.NewInt(int64(p.BurnerSplit)))
	toBurner.Quo(toBurner, denom)

	toStakers = new(big.Int).Sub(mint, toOps)
	toStakers.Sub(toStakers, toBurner)
	return toStakers, toOps, toBurner
}

func isNegative(value *big.Int) bool {
	return value != nil && value.Sign() < 0
}

func copyBigInt(value *big.Int) *big.Int {
	if value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}
