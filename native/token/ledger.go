package token

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrInvalidAmount indicates a nil, zero or negative transfer amount.
	ErrInvalidAmount = errors.New("token: amount must be positive")
	// ErrEmptyAccount indicates a missing account identifier.
	ErrEmptyAccount = errors.New("token: account must not be empty")
	// ErrInsufficientBalance indicates the debited account cannot cover the
	// requested transfer.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrUnknownSnapshot indicates a revert to a snapshot id that was never
	// handed out or has already been discarded.
	ErrUnknownSnapshot = errors.New("token: unknown snapshot id")
)

type journalEntry struct {
	account string
	prev    *big.Int
	supply  *big.Int
}

// Ledger is an in-memory fungible token ledger. Mutations are journaled so a
// caller can bracket a multi-step distribution with Snapshot and
// RevertToSnapshot and never expose a partial state.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
	supply   *big.Int

	journal   []journalEntry
	snapshots []int
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]*big.Int),
		supply:   big.NewInt(0),
	}
}

// Mint creates new tokens on the given account and grows the total supply.
func (l *Ledger) Mint(account string, amount *big.Int) error {
	if account == "" {
		return ErrEmptyAccount
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record(account)
	balance := l.balanceRef(account)
	balance.Add(balance, amount)
	l.supply = new(big.Int).Add(l.supply, amount)
	return nil
}

// Burn destroys tokens held by the given account and shrinks the total supply.
func (l *Ledger) Burn(account string, amount *big.Int) error {
	if account == "" {
		return ErrEmptyAccount
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	balance := l.balanceRef(account)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.record(account)
	balance = l.balanceRef(account)
	balance.Sub(balance, amount)
	l.supply = new(big.Int).Sub(l.supply, amount)
	return nil
}

// Transfer moves tokens between two accounts.
func (l *Ledger) Transfer(from, to string, amount *big.Int) error {
	if from == "" || to == "" {
		return ErrEmptyAccount
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.balanceRef(from)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.record(from)
	l.record(to)
	src = l.balanceRef(from)
	dst := l.balanceRef(to)
	src.Sub(src, amount)
	dst.Add(dst, amount)
	return nil
}

// BalanceOf returns a copy of the account balance.
func (l *Ledger) BalanceOf(account string) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, ok := l.balances[account]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

// TotalSupply returns a copy of the circulating supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.supply)
}

// Snapshot marks the current journal position and returns its identifier.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := len(l.snapshots)
	l.snapshots = append(l.snapshots, len(l.journal))
	return id
}

// RevertToSnapshot undoes every mutation recorded after the snapshot was
// taken. Reverting an unknown id is a no-op: the ledger prefers keeping its
// committed state over guessing what to roll back.
func (l *Ledger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id >= len(l.snapshots) {
		return
	}
	mark := l.snapshots[id]
	for i := len(l.journal) - 1; i >= mark; i-- {
		entry := l.journal[i]
		if entry.prev == nil {
			delete(l.balances, entry.account)
		} else {
			l.balances[entry.account] = new(big.Int).Set(entry.prev)
		}
		l.supply = new(big.Int).Set(entry.supply)
	}
	l.journal = l.journal[:mark]
	l.snapshots = l.snapshots[:id]
}

// record appends the account's pre-mutation state to the journal.
func (l *Ledger) record(account string) {
	entry := journalEntry{account: account, supply: new(big.Int).Set(l.supply)}
	if balance, ok := l.balances[account]; ok {
		entry.prev = new(big.Int).Set(balance)
	}
	l.journal = append(l.journal, entry)
}

func (l *Ledger) balanceRef(account string) *big.Int {
	balance, ok := l.balances[account]
	if !ok {
		balance = big.NewInt(0)
		l.balances[account] = balance
	}
	return balance
}
