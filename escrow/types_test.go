package escrow

import (
	"math/big"
	"testing"
)

func TestStateValid(t *testing.T) {
	for _, s := range []State{StateCreated, StateFunded, StateCompleted, StateCanceled} {
		if !s.Valid() {
			t.Fatalf("state %s must be valid", s)
		}
	}
	if State(200).Valid() {
		t.Fatal("out-of-range state must be invalid")
	}
}

func TestStateTerminal(t *testing.T) {
	if StateCreated.Terminal() || StateFunded.Terminal() {
		t.Fatal("created/funded are not terminal")
	}
	if !StateCompleted.Terminal() || !StateCanceled.Terminal() {
		t.Fatal("completed/canceled are terminal")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateCreated:   "created",
		StateFunded:    "funded",
		StateCompleted: "completed",
		StateCanceled:  "canceled",
		State(99):      "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: got %q want %q", state, got, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := &Escrow{
		ID:     3,
		Buyer:  newTestAddress(0x01),
		Seller: newTestAddress(0x02),
		Amount: big.NewInt(100),
		State:  StateFunded,
	}
	clone := original.Clone()
	clone.Amount.SetInt64(7)
	clone.State = StateCanceled

	if original.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("clone aliased the amount: %s", original.Amount)
	}
	if original.State != StateFunded {
		t.Fatal("clone aliased the struct")
	}

	var nilEscrow *Escrow
	if nilEscrow.Clone() != nil {
		t.Fatal("nil clone must be nil")
	}
}

func TestSanitize(t *testing.T) {
	valid := &Escrow{
		Buyer:  newTestAddress(0x01),
		Seller: newTestAddress(0x02),
		Amount: big.NewInt(10),
		State:  StateCreated,
	}
	if _, err := Sanitize(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sanitized, err := Sanitize(&Escrow{Buyer: newTestAddress(0x01), Seller: newTestAddress(0x02)})
	if err != nil {
		t.Fatalf("nil amount must be normalized: %v", err)
	}
	if sanitized.Amount == nil || sanitized.Amount.Sign() != 0 {
		t.Fatal("nil amount must become zero")
	}

	if _, err := Sanitize(nil); err == nil {
		t.Fatal("nil escrow must be rejected")
	}
	if _, err := Sanitize(&Escrow{Buyer: newTestAddress(0x01), Seller: newTestAddress(0x01), Amount: big.NewInt(1)}); err == nil {
		t.Fatal("identical parties must be rejected")
	}
	if _, err := Sanitize(&Escrow{Buyer: newTestAddress(0x01), Seller: newTestAddress(0x02), Amount: big.NewInt(-1)}); err == nil {
		t.Fatal("negative amount must be rejected")
	}
	if _, err := Sanitize(&Escrow{Buyer: newTestAddress(0x01), Seller: newTestAddress(0x02), Amount: big.NewInt(1), State: State(50)}); err == nil {
		t.Fatal("invalid state must be rejected")
	}
}
