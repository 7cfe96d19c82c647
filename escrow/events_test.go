package escrow

import (
	"encoding/hex"
	"math/big"
	"testing"
)

func TestInitiatedEventAttributes(t *testing.T) {
	esc := &Escrow{
		ID:     5,
		Buyer:  newTestAddress(0x01),
		Seller: newTestAddress(0x02),
		Amount: big.NewInt(250),
		State:  StateCreated,
	}
	evt := NewInitiatedEvent(esc)
	if evt.Type != EventTypeInitiated {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Attributes["id"] != "5" {
		t.Fatalf("unexpected id attribute %q", evt.Attributes["id"])
	}
	if evt.Attributes["buyer"] != hex.EncodeToString(esc.Buyer[:]) {
		t.Fatalf("unexpected buyer attribute %q", evt.Attributes["buyer"])
	}
	if evt.Attributes["seller"] != hex.EncodeToString(esc.Seller[:]) {
		t.Fatalf("unexpected seller attribute %q", evt.Attributes["seller"])
	}
	if evt.Attributes["amount"] != "250" {
		t.Fatalf("unexpected amount attribute %q", evt.Attributes["amount"])
	}
	if evt.Attributes["state"] != "created" {
		t.Fatalf("unexpected state attribute %q", evt.Attributes["state"])
	}
}

func TestApprovedEventRecordsWho(t *testing.T) {
	esc := &Escrow{ID: 1, Buyer: newTestAddress(0x01), Seller: newTestAddress(0x02), Amount: big.NewInt(10), State: StateFunded}
	who := newTestAddress(0x02)

	evt := NewApprovedEvent(esc, who)
	if evt.Type != EventTypeApproved {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Attributes["who"] != hex.EncodeToString(who[:]) {
		t.Fatalf("unexpected who attribute %q", evt.Attributes["who"])
	}
}

func TestLifecycleEventsCarryIDAndState(t *testing.T) {
	esc := &Escrow{ID: 9, Buyer: newTestAddress(0x01), Seller: newTestAddress(0x02), Amount: big.NewInt(10)}

	esc.State = StateFunded
	if evt := NewFundedEvent(esc); evt.Attributes["id"] != "9" || evt.Attributes["state"] != "funded" || evt.Attributes["amount"] != "10" {
		t.Fatalf("unexpected funded attributes %v", evt.Attributes)
	}
	esc.State = StateCompleted
	if evt := NewCompletedEvent(esc); evt.Attributes["state"] != "completed" {
		t.Fatalf("unexpected completed attributes %v", evt.Attributes)
	}
	esc.State = StateCanceled
	if evt := NewCanceledEvent(esc); evt.Attributes["state"] != "canceled" {
		t.Fatalf("unexpected canceled attributes %v", evt.Attributes)
	}
}

func TestEventsTolerateNilEscrow(t *testing.T) {
	for _, evt := range []*struct {
		name string
		got  map[string]string
	}{
		{"initiated", NewInitiatedEvent(nil).Attributes},
		{"funded", NewFundedEvent(nil).Attributes},
		{"completed", NewCompletedEvent(nil).Attributes},
		{"canceled", NewCanceledEvent(nil).Attributes},
	} {
		if evt.got == nil {
			t.Fatalf("%s: attributes must never be nil", evt.name)
		}
	}
}
