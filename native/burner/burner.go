package burner

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrInvalidAmount indicates a nil, zero or negative amount.
	ErrInvalidAmount = errors.New("burner: amount must be positive")
	// ErrInvalidFloor indicates a nil or negative floor value.
	ErrInvalidFloor = errors.New("burner: floor value must not be negative")
)

// Burner is the price-floor sink. Epoch shares routed here fund the floor
// defence; the burner tracks the floor value it currently commits to so the
// split policy can report it alongside every rebase.
type Burner struct {
	account string

	mu         sync.RWMutex
	received   *big.Int
	floorValue *big.Int
}

// New constructs a burner bound to a ledger account with an initial floor
// valuation in 1e18 fixed point.
func New(account string, floorValue *big.Int) (*Burner, error) {
	if floorValue != nil && floorValue.Sign() < 0 {
		return nil, ErrInvalidFloor
	}
	floor := big.NewInt(0)
	if floorValue != nil {
		floor = new(big.Int).Set(floorValue)
	}
	return &Burner{
		account:    account,
		received:   big.NewInt(0),
		floorValue: floor,
	}, nil
}

// Account returns the burner's ledger account.
func (b *Burner) Account() string { return b.account }

// Receive credits an epoch share to the floor defence budget.
func (b *Burner) Receive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received.Add(b.received, amount)
	return nil
}

// TotalReceived returns a copy of the cumulative shares routed to the burner.
func (b *Burner) TotalReceived() *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(big.Int).Set(b.received)
}

// FloorValue returns a copy of the committed floor valuation.
func (b *Burner) FloorValue() *big.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return new(big.Int).Set(b.floorValue)
}

// RaiseFloor lifts the committed floor valuation. The floor only moves up.
func (b *Burner) RaiseFloor(target *big.Int) error {
	if target == nil || target.Sign() < 0 {
		return ErrInvalidFloor
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if target.Cmp(b.floorValue) > 0 {
		b.floorValue = new(big.Int).Set(target)
	}
	return nil
}
