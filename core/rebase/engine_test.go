package rebase

import (
	"math/big"
	"math/rand"
	"testing"
)

// scaled returns value * 1e18 / denom as a big integer.
func scaled(value, denom int64) *big.Int {
	out := new(big.Int).Mul(big.NewInt(value), RatioUnit())
	return out.Quo(out, big.NewInt(denom))
}

func TestBackingRatio_ZeroSupply(t *testing.T) {
	for _, reserve := range []int64{0, 1, 7, 1_000_000} {
		ratio := BackingRatio(scaled(reserve, 1), big.NewInt(0))
		if ratio.Sign() != 0 {
			t.Fatalf("reserve %d: expected zero ratio for zero supply, got %s", reserve, ratio)
		}
	}
}

func TestBackingRatio_ExactBacking(t *testing.T) {
	value := scaled(42, 1)
	ratio := BackingRatio(value, value)
	if ratio.Cmp(RatioUnit()) != 0 {
		t.Fatalf("expected ratio %s for 1:1 backing, got %s", RatioUnit(), ratio)
	}
}

func TestProjectedRateRaw_NoExcess(t *testing.T) {
	params := DefaultParams()

	cases := []struct {
		name    string
		reserve *big.Int
		supply  *big.Int
	}{
		{"zero supply", scaled(1, 1), big.NewInt(0)},
		{"exact backing", scaled(1, 1), scaled(1, 1)},
		{"under backing", scaled(1, 2), scaled(1, 1)},
	}
	for _, tc := range cases {
		result, err := params.ProjectedRateRaw(tc.reserve, tc.supply, big.NewInt(0))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if result.APR != 0 {
			t.Fatalf("%s: expected zero apr, got %d", tc.name, result.APR)
		}
		for _, amount := range []*big.Int{result.EpochMint, result.ToStakers, result.ToOps, result.ToBurner} {
			if amount.Sign() != 0 {
				t.Fatalf("%s: expected zero outputs, got mint=%s stakers=%s ops=%s burner=%s",
					tc.name, result.EpochMint, result.ToStakers, result.ToOps, result.ToBurner)
			}
		}
	}
}

func TestProjectedRateRaw_CalibrationPoints(t *testing.T) {
	params := DefaultParams()

	cases := []struct {
		name    string
		reserve *big.Int
		supply  *big.Int
		apr     uint64
	}{
		{"half excess", scaled(3, 1), scaled(2, 1), 500},
		{"full excess", scaled(3, 1), scaled(3, 2), 1250},
		{"clamped", scaled(5, 2), scaled(1, 1), 2000},
	}
	for _, tc := range cases {
		result, err := params.ProjectedRateRaw(tc.reserve, tc.supply, scaled(1, 1))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if result.APR != tc.apr {
			t.Fatalf("%s: expected apr %d, got %d", tc.name, tc.apr, result.APR)
		}
		for name, amount := range map[string]*big.Int{
			"mint":    result.EpochMint,
			"stakers": result.ToStakers,
			"ops":     result.ToOps,
			"burner":  result.ToBurner,
		} {
			if amount.Sign() <= 0 {
				t.Fatalf("%s: expected positive %s share, got %s", tc.name, name, amount)
			}
		}
	}
}

func TestProjectedRateRaw_SharesConserveMint(t *testing.T) {
	params := DefaultParams()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		supply := new(big.Int).Mul(big.NewInt(rng.Int63n(1_000_000)+1), RatioUnit())
		reserve := new(big.Int).Mul(supply, big.NewInt(rng.Int63n(40)+1))
		reserve.Quo(reserve, big.NewInt(10))
		result, err := params.ProjectedRateRaw(reserve, supply, big.NewInt(0))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sum := new(big.Int).Add(result.ToStakers, result.ToOps)
		sum.Add(sum, result.ToBurner)
		if sum.Cmp(result.EpochMint) != 0 {
			t.Fatalf("shares do not conserve mint: %s+%s+%s != %s",
				result.ToStakers, result.ToOps, result.ToBurner, result.EpochMint)
		}
	}
}

func TestAPRCurve_MonotonicBelowCeiling(t *testing.T) {
	params := DefaultParams()
	prev := uint64(0)
	// Sweep the excess from 0 to 150% in 1% steps; the curve must never
	// decrease and must sit exactly at the ceiling by the end of the sweep.
	for step := int64(0); step <= 150; step++ {
		apr := params.aprForExcess(scaled(step, 100))
		if apr < prev {
			t.Fatalf("curve decreased at %d%% excess: %d < %d", step, apr, prev)
		}
		if apr > params.CeilAPR {
			t.Fatalf("curve exceeded ceiling at %d%% excess: %d", step, apr)
		}
		prev = apr
	}
	if prev != params.CeilAPR {
		t.Fatalf("expected curve clamped at %d after sweep, got %d", params.CeilAPR, prev)
	}
}

func TestProjectedRateRaw_NegativeInput(t *testing.T) {
	params := DefaultParams()
	if _, err := params.ProjectedRateRaw(big.NewInt(-1), scaled(1, 1), big.NewInt(0)); err != ErrNegativeInput {
		t.Fatalf("expected ErrNegativeInput, got %v", err)
	}
	if _, err := params.ProjectedRateRaw(scaled(1, 1), big.NewInt(-1), big.NewInt(0)); err != ErrNegativeInput {
		t.Fatalf("expected ErrNegativeInput, got %v", err)
	}
	if _, err := params.ProjectedRateRaw(scaled(1, 1), scaled(1, 1), big.NewInt(-1)); err != ErrNegativeInput {
		t.Fatalf("expected ErrNegativeInput, got %v", err)
	}
}

func TestParams_Validate(t *testing.T) {
	valid := DefaultParams()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default params must validate: %v", err)
	}

	broken := valid
	broken.OpsSplit = 0
	broken.StakerSplit = 9000
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected zero split weight to fail validation")
	}

	broken = valid
	broken.StakerSplit = 9000
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected non-conserving split weights to fail validation")
	}

	broken = valid
	broken.EpochLength = 0
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected zero epoch length to fail validation")
	}
}
