package burner

import (
	"math/big"
	"testing"
)

func TestBurner_ReceiveAndFloor(t *testing.T) {
	sink, err := New("module/burner", big.NewInt(1_000))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := sink.Receive(big.NewInt(25)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := sink.Receive(big.NewInt(75)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got := sink.TotalReceived(); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("total received: got %s want 100", got)
	}
	if err := sink.Receive(big.NewInt(0)); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if got := sink.FloorValue(); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("floor value: got %s want 1000", got)
	}
}

func TestBurner_FloorOnlyMovesUp(t *testing.T) {
	sink, err := New("module/burner", big.NewInt(500))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := sink.RaiseFloor(big.NewInt(400)); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if got := sink.FloorValue(); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("floor lowered: got %s", got)
	}
	if err := sink.RaiseFloor(big.NewInt(900)); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if got := sink.FloorValue(); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("floor: got %s want 900", got)
	}
	if _, err := New("module/burner", big.NewInt(-1)); err != ErrInvalidFloor {
		t.Fatalf("expected ErrInvalidFloor, got %v", err)
	}
}
