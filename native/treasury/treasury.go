package treasury

import (
	"errors"
	"math/big"
	"sort"
	"sync"
)

var (
	// ErrEmptyAsset indicates a missing reserve asset symbol.
	ErrEmptyAsset = errors.New("treasury: asset must not be empty")
	// ErrInvalidValue indicates a nil or negative reserve value.
	ErrInvalidValue = errors.New("treasury: value must be positive")
	// ErrInsufficientReserve indicates a withdrawal exceeding the booked
	// reserve for the asset.
	ErrInsufficientReserve = errors.New("treasury: insufficient reserve")
)

// Treasury books reserve assets at their 1e18 fixed-point valuation and keeps
// a cached aggregate so the scheduler's hot path reads a single value.
type Treasury struct {
	mu       sync.RWMutex
	reserves map[string]*big.Int
	total    *big.Int
}

// New constructs an empty treasury.
func New() *Treasury {
	return &Treasury{
		reserves: make(map[string]*big.Int),
		total:    big.NewInt(0),
	}
}

// Deposit books additional reserve value under the given asset.
func (t *Treasury) Deposit(asset string, value *big.Int) error {
	if asset == "" {
		return ErrEmptyAsset
	}
	if value == nil || value.Sign() <= 0 {
		return ErrInvalidValue
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.reserves[asset]
	if !ok {
		current = big.NewInt(0)
		t.reserves[asset] = current
	}
	current.Add(current, value)
	t.total.Add(t.total, value)
	return nil
}

// Withdraw releases reserve value previously booked under the asset.
func (t *Treasury) Withdraw(asset string, value *big.Int) error {
	if asset == "" {
		return ErrEmptyAsset
	}
	if value == nil || value.Sign() <= 0 {
		return ErrInvalidValue
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.reserves[asset]
	if !ok || current.Cmp(value) < 0 {
		return ErrInsufficientReserve
	}
	current.Sub(current, value)
	t.total.Sub(t.total, value)
	return nil
}

// ReserveValue returns a copy of the aggregate reserve valuation.
func (t *Treasury) ReserveValue() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.total)
}

// AssetValue returns a copy of the reserve booked under a single asset.
func (t *Treasury) AssetValue(asset string) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	value, ok := t.reserves[asset]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(value)
}

// Assets returns the booked asset symbols in deterministic order.
func (t *Treasury) Assets() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	assets := make([]string, 0, len(t.reserves))
	for asset := range t.reserves {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Sync recomputes the cached aggregate from the per-asset book and returns the
// refreshed value. The cache and the book can only drift if a caller mutated a
// returned value, but the recompute keeps the invariant checkable.
func (t *Treasury) Sync() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := big.NewInt(0)
	for _, value := range t.reserves {
		total.Add(total, value)
	}
	t.total = total
	return new(big.Int).Set(total)
}
