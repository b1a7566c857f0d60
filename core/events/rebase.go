package events

import (
	"math/big"
	"strconv"
)

const (
	// TypeRebased is emitted after every epoch execution, including the
	// zero-mint fallback when the reserve guard trips.
	TypeRebased = "rebase.executed"
	// TypeRebaseSkipped is emitted when the reserve-sufficiency guard forces
	// a zero-mint epoch.
	TypeRebaseSkipped = "rebase.reserve_guard"
)

// Rebased captures the outcome of a single epoch execution.
type Rebased struct {
	Epoch      uint64
	ExecutedAt int64
	APR        uint64
	Ratio      *big.Int
	EpochMint  *big.Int
	ToStakers  *big.Int
	ToOps      *big.Int
	ToBurner   *big.Int
}

// EventType implements the event payload contract.
func (Rebased) EventType() string { return TypeRebased }

// Event converts the payload into an emitted Event record.
func (e Rebased) Event() *Event {
	attrs := map[string]string{
		"epoch":       strconv.FormatUint(e.Epoch, 10),
		"executed_at": strconv.FormatInt(e.ExecutedAt, 10),
		"apr":         strconv.FormatUint(e.APR, 10),
		"ratio":       bigString(e.Ratio),
		"epoch_mint":  bigString(e.EpochMint),
		"to_stakers":  bigString(e.ToStakers),
		"to_ops":      bigString(e.ToOps),
		"to_burner":   bigString(e.ToBurner),
	}
	return &Event{Type: TypeRebased, Attributes: attrs}
}

// RebaseSkipped records a reserve-guard fallback for a given epoch.
type RebaseSkipped struct {
	Epoch        uint64
	ExecutedAt   int64
	ReserveValue *big.Int
	SupplyValue  *big.Int
	WantedMint   *big.Int
}

// EventType implements the event payload contract.
func (RebaseSkipped) EventType() string { return TypeRebaseSkipped }

// Event converts the payload into an emitted Event record.
func (e RebaseSkipped) Event() *Event {
	attrs := map[string]string{
		"epoch":         strconv.FormatUint(e.Epoch, 10),
		"executed_at":   strconv.FormatInt(e.ExecutedAt, 10),
		"reserve_value": bigString(e.ReserveValue),
		"supply_value":  bigString(e.SupplyValue),
		"wanted_mint":   bigString(e.WantedMint),
	}
	return &Event{Type: TypeRebaseSkipped, Attributes: attrs}
}

func bigString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
