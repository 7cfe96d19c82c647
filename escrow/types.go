package escrow

import (
	"fmt"
	"math/big"
)

// State represents the lifecycle states of an escrow record.
type State uint8

const (
	// StateCreated is the initial state: the agreement exists but no funds
	// have been deposited.
	StateCreated State = iota
	// StateFunded means the buyer has deposited the agreed amount into
	// ledger custody.
	StateFunded
	// StateCompleted is terminal: both parties approved and the funds were
	// transferred to the seller.
	StateCompleted
	// StateCanceled is terminal: either party canceled and the funds, if
	// any, were returned to the buyer.
	StateCanceled
)

// Valid reports whether the state value is within the supported range.
func (s State) Valid() bool {
	switch s {
	case StateCreated, StateFunded, StateCompleted, StateCanceled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCanceled
}

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateFunded:
		return "funded"
	case StateCompleted:
		return "completed"
	case StateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Escrow holds the state of a single two-party escrow agreement. Buyer,
// seller and amount are immutable after creation; the approval flags are
// monotonic and each settable only by its own party.
type Escrow struct {
	ID             uint64   `json:"id"`
	Buyer          [20]byte `json:"buyer"`
	Seller         [20]byte `json:"seller"`
	Amount         *big.Int `json:"amount"`
	BuyerApproved  bool     `json:"buyerApproved"`
	SellerApproved bool     `json:"sellerApproved"`
	State          State    `json:"state"`
	CreatedAt      int64    `json:"createdAt"`
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates the supplied escrow record and returns a cloned instance
// with a non-nil amount field. The function does not mutate the original
// value.
func Sanitize(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow amount must be non-negative")
	}
	if clone.Buyer == clone.Seller {
		return nil, fmt.Errorf("escrow buyer and seller must differ")
	}
	if !clone.State.Valid() {
		return nil, fmt.Errorf("invalid escrow state: %d", clone.State)
	}
	return clone, nil
}
