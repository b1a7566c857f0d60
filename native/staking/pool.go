package staking

import (
	"errors"
	"math/big"
	"sync"
)

const indexScale = int64(1_000_000_000_000_000_000)

var (
	indexScaleBig = big.NewInt(indexScale)

	// ErrInvalidAmount indicates a nil, zero or negative amount.
	ErrInvalidAmount = errors.New("staking: amount must be positive")
	// ErrEmptyStaker indicates a missing staker identifier.
	ErrEmptyStaker = errors.New("staking: staker must not be empty")
	// ErrInsufficientBond indicates an unbond exceeding the staked amount.
	ErrInsufficientBond = errors.New("staking: insufficient bonded amount")
	// ErrNoBondedStake indicates a reward deposit while nothing is bonded.
	ErrNoBondedStake = errors.New("staking: no bonded stake to reward")
)

type position struct {
	bonded *big.Int
	// entryIndex is the global reward index at the position's last touch;
	// rewards accrued before it are already settled into owed.
	entryIndex *big.Int
	owed       *big.Int
}

// Pool accumulates staking positions and distributes epoch rewards pro-rata
// through a global 1e18-scaled reward index.
type Pool struct {
	account string

	mu          sync.RWMutex
	positions   map[string]*position
	totalBonded *big.Int
	rewardIndex *big.Int
	received    *big.Int
}

// NewPool constructs an empty staking pool bound to a ledger account.
func NewPool(account string) *Pool {
	return &Pool{
		account:     account,
		positions:   make(map[string]*position),
		totalBonded: big.NewInt(0),
		rewardIndex: new(big.Int).Set(indexScaleBig),
		received:    big.NewInt(0),
	}
}

// Account returns the pool's ledger account.
func (p *Pool) Account() string { return p.account }

// Bond opens or grows a staking position.
func (p *Pool) Bond(staker string, amount *big.Int) error {
	if staker == "" {
		return ErrEmptyStaker
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.touch(staker)
	pos.bonded.Add(pos.bonded, amount)
	p.totalBonded.Add(p.totalBonded, amount)
	return nil
}

// Unbond shrinks a staking position.
func (p *Pool) Unbond(staker string, amount *big.Int) error {
	if staker == "" {
		return ErrEmptyStaker
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[staker]
	if !ok || pos.bonded.Cmp(amount) < 0 {
		return ErrInsufficientBond
	}
	p.settle(pos)
	pos.bonded.Sub(pos.bonded, amount)
	p.totalBonded.Sub(p.totalBonded, amount)
	return nil
}

// Receive credits an epoch reward to the pool and advances the global index.
// Rewards cannot be distributed while nothing is bonded; the scheduler treats
// that as a dispatch failure and rolls the epoch back.
func (p *Pool) Receive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.totalBonded.Sign() == 0 {
		return ErrNoBondedStake
	}
	increment := new(big.Int).Mul(amount, indexScaleBig)
	increment.Quo(increment, p.totalBonded)
	p.rewardIndex.Add(p.rewardIndex, increment)
	p.received.Add(p.received, amount)
	return nil
}

// BondedOf returns a copy of the staker's bonded amount.
func (p *Pool) BondedOf(staker string) *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[staker]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(pos.bonded)
}

// TotalBonded returns a copy of the aggregate bonded amount.
func (p *Pool) TotalBonded() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.totalBonded)
}

// TotalReceived returns a copy of the cumulative rewards credited to the pool.
func (p *Pool) TotalReceived() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.received)
}

// PendingRewards returns the staker's accrued, unclaimed reward amount.
func (p *Pool) PendingRewards(staker string) *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[staker]
	if !ok {
		return big.NewInt(0)
	}
	pending := new(big.Int).Set(pos.owed)
	pending.Add(pending, p.accruedSince(pos))
	return pending
}

// touch settles the staker's accrued rewards and returns the position.
func (p *Pool) touch(staker string) *position {
	pos, ok := p.positions[staker]
	if !ok {
		pos = &position{
			bonded:     big.NewInt(0),
			entryIndex: new(big.Int).Set(p.rewardIndex),
			owed:       big.NewInt(0),
		}
		p.positions[staker] = pos
		return pos
	}
	p.settle(pos)
	return pos
}

func (p *Pool) settle(pos *position) {
	pos.owed.Add(pos.owed, p.accruedSince(pos))
	pos.entryIndex = new(big.Int).Set(p.rewardIndex)
}

func (p *Pool) accruedSince(pos *position) *big.Int {
	accrued := new(big.Int).Sub(p.rewardIndex, pos.entryIndex)
	if accrued.Sign() <= 0 {
		return big.NewInt(0)
	}
	accrued.Mul(accrued, pos.bonded)
	return accrued.Quo(accrued, indexScaleBig)
}
