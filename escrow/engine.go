package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"escrowd/events"
)

var errNilState = errors.New("escrow engine: state not configured")

// engineState is the backend the engine reads and writes escrow records
// through, plus the external value-transfer primitive. Transfer must be
// atomic: it either fully succeeds or fully fails before returning.
type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id uint64) (*Escrow, bool)
	EscrowNextID() (uint64, error)
	VaultAddress() [20]byte
	Transfer(from, to [20]byte, amount *big.Int) error
}

// Engine wires the escrow state machine with external state and event
// emitters. Operations are serialized by an internal mutex: each one executes
// as an atomic unit of work against a single record, so the transition guards
// never observe a half-applied operation.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.EscrowPut(esc)
}

// Initiate creates and persists a new escrow agreement between the caller
// (the buyer) and the seller. The identifier is allocated by the ledger and
// never reused, even after the record reaches a terminal state.
func (e *Engine) Initiate(buyer, seller [20]byte, amount *big.Int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return 0, errNilState
	}
	if buyer == seller {
		return 0, ErrSelfDealing
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	id, err := e.state.EscrowNextID()
	if err != nil {
		return 0, err
	}
	esc := &Escrow{
		ID:        id,
		Buyer:     buyer,
		Seller:    seller,
		Amount:    cloneBigInt(amount),
		State:     StateCreated,
		CreatedAt: e.now(),
	}
	if err := e.storeEscrow(esc); err != nil {
		return 0, err
	}
	e.emit(NewInitiatedEvent(esc))
	return id, nil
}

// Deposit moves the attached value from the buyer into ledger custody and
// marks the escrow as funded. The attached value must equal the agreed amount
// exactly; over- and underpayment are both rejected so no partial-custody
// state can exist. A failed deposit leaves the record in StateCreated and a
// later retry is allowed.
func (e *Engine) Deposit(id uint64, from [20]byte, value *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if from != esc.Buyer {
		return fmt.Errorf("%w: only the buyer may fund", ErrUnauthorized)
	}
	if esc.State != StateCreated {
		return fmt.Errorf("%w: cannot fund in state %s", ErrInvalidState, esc.State)
	}
	if value == nil || value.Cmp(esc.Amount) != 0 {
		return fmt.Errorf("%w: attached value must equal the agreed amount", ErrInvalidAmount)
	}
	if err := e.state.Transfer(esc.Buyer, e.state.VaultAddress(), esc.Amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	esc.State = StateFunded
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewFundedEvent(esc))
	return nil
}

// Complete records the caller's approval and, once both parties have
// approved, settles the escrow by moving the custodied amount to the seller.
// The dual-approval check runs synchronously within the call that sets the
// second flag: there is no window where both flags are true but funds remain
// in custody.
func (e *Engine) Complete(id uint64, caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.State != StateFunded {
		return fmt.Errorf("%w: cannot approve in state %s", ErrInvalidState, esc.State)
	}
	switch caller {
	case esc.Buyer:
		if esc.BuyerApproved {
			return ErrAlreadyApproved
		}
		esc.BuyerApproved = true
	case esc.Seller:
		if esc.SellerApproved {
			return ErrAlreadyApproved
		}
		esc.SellerApproved = true
	default:
		return fmt.Errorf("%w: only buyer or seller may approve", ErrUnauthorized)
	}
	settled := esc.BuyerApproved && esc.SellerApproved
	if settled {
		// Settlement precedes persistence: if the payout is rejected the
		// operation aborts and the caller's flag is never committed.
		if err := e.state.Transfer(e.state.VaultAddress(), esc.Seller, esc.Amount); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		esc.State = StateCompleted
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewApprovedEvent(esc, caller))
	if settled {
		e.emit(NewCompletedEvent(esc))
	}
	return nil
}

// Cancel aborts the escrow. Canceling a funded escrow refunds the custodied
// amount to the buyer before the record is marked canceled; if the refund
// fails the record remains funded. Canceling an unfunded escrow performs no
// transfer.
func (e *Engine) Cancel(id uint64, caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.State != StateCreated && esc.State != StateFunded {
		return fmt.Errorf("%w: cannot cancel in state %s", ErrInvalidState, esc.State)
	}
	if caller != esc.Buyer && caller != esc.Seller {
		return fmt.Errorf("%w: only buyer or seller may cancel", ErrUnauthorized)
	}
	if esc.State == StateFunded {
		if err := e.state.Transfer(e.state.VaultAddress(), esc.Buyer, esc.Amount); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	esc.State = StateCanceled
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewCanceledEvent(esc))
	return nil
}

// Get returns a copy of the escrow record for read-only inspection.
func (e *Engine) Get(id uint64) (*Escrow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}
