package escrow

import (
	"encoding/hex"
	"strconv"

	"escrowd/events"
)

const (
	EventTypeInitiated = "escrow.initiated"
	EventTypeFunded    = "escrow.funded"
	EventTypeApproved  = "escrow.approved"
	EventTypeCompleted = "escrow.completed"
	EventTypeCanceled  = "escrow.canceled"
)

// NewInitiatedEvent returns the canonical event payload for a newly created
// escrow.
func NewInitiatedEvent(e *Escrow) *events.Event {
	evt := newEscrowEvent(EventTypeInitiated, e)
	if e != nil {
		evt.Attributes["buyer"] = hex.EncodeToString(e.Buyer[:])
		evt.Attributes["seller"] = hex.EncodeToString(e.Seller[:])
		evt.Attributes["amount"] = cloneBigInt(e.Amount).String()
	}
	return evt
}

// NewFundedEvent returns the canonical event payload emitted when the buyer
// deposits the agreed amount into custody.
func NewFundedEvent(e *Escrow) *events.Event {
	evt := newEscrowEvent(EventTypeFunded, e)
	if e != nil {
		evt.Attributes["amount"] = cloneBigInt(e.Amount).String()
	}
	return evt
}

// NewApprovedEvent returns the event payload emitted when one party records
// its approval without yet settling the escrow.
func NewApprovedEvent(e *Escrow, who [20]byte) *events.Event {
	evt := newEscrowEvent(EventTypeApproved, e)
	evt.Attributes["who"] = hex.EncodeToString(who[:])
	return evt
}

// NewCompletedEvent returns the event payload emitted when both approvals are
// in and the funds have moved to the seller.
func NewCompletedEvent(e *Escrow) *events.Event {
	return newEscrowEvent(EventTypeCompleted, e)
}

// NewCanceledEvent returns the event payload emitted when the escrow is
// canceled, after any refund has been performed.
func NewCanceledEvent(e *Escrow) *events.Event {
	return newEscrowEvent(EventTypeCanceled, e)
}

func newEscrowEvent(eventType string, e *Escrow) *events.Event {
	attrs := make(map[string]string)
	if e != nil {
		attrs["id"] = strconv.FormatUint(e.ID, 10)
		attrs["state"] = e.State.String()
	}
	return &events.Event{Type: eventType, Attributes: attrs}
}
