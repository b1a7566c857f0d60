package ops

import (
	"errors"
	"math/big"
	"sync"
)

// ErrInvalidAmount indicates a nil, zero or negative amount.
var ErrInvalidAmount = errors.New("ops: amount must be positive")

// Sink is the operations funding sink. Tokens live on its ledger account; the
// sink itself only tracks the cumulative inflow for reporting.
type Sink struct {
	account string

	mu       sync.RWMutex
	received *big.Int
}

// NewSink constructs an operations sink bound to a ledger account.
func NewSink(account string) *Sink {
	return &Sink{account: account, received: big.NewInt(0)}
}

// Account returns the sink's ledger account.
func (s *Sink) Account() string { return s.account }

// Receive credits an epoch share to the operations budget.
func (s *Sink) Receive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received.Add(s.received, amount)
	return nil
}

// TotalReceived returns a copy of the cumulative shares routed to operations.
func (s *Sink) TotalReceived() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.received)
}
