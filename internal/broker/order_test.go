package broker

import (
	"errors"
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testTime(day int) time.Time {
	return time.Date(2021, 4, day, 9, 30, 0, 0, time.UTC)
}

func TestNewOrder_Valid(t *testing.T) {
	order, err := NewOrder("600000", DirectionBuy, 10.0, 100, testTime(1), 0.0001, 0.001)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if order.State != OrderStateWait {
		t.Errorf("Expected state WAIT, got %s", order.State)
	}
	if order.Fill != nil {
		t.Errorf("Expected nil fill on a fresh order")
	}
	if order.ID == "" {
		t.Errorf("Expected generated order id")
	}
}

func TestNewOrder_FreshIDPerCall(t *testing.T) {
	first, err := NewOrder("600000", DirectionBuy, 10.0, 100, testTime(1), 0, 0)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}
	second, err := NewOrder("600000", DirectionBuy, 10.0, 100, testTime(1), 0, 0)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if first.ID == second.ID {
		t.Errorf("Expected distinct ids, both were %s", first.ID)
	}
}

func TestNewOrder_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		direction Direction
		price     float64
		quantity  int64
	}{
		{"zero price", "600000", DirectionBuy, 0, 100},
		{"negative price", "600000", DirectionBuy, -1, 100},
		{"zero quantity", "600000", DirectionSell, 10, 0},
		{"negative quantity", "600000", DirectionSell, 10, -100},
		{"empty code", "", DirectionBuy, 10, 100},
		{"reserved direction", "IF2106", DirectionBuyOpen, 10, 100},
		{"unknown direction", "600000", Direction("ASK"), 10, 100},
	}

	for _, tt := range tests {
		_, err := NewOrder(tt.code, tt.direction, tt.price, tt.quantity, testTime(1), 0.0001, 0.001)
		if !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("%s: expected ErrInvalidOrder, got %v", tt.name, err)
		}
	}
}

func TestOrder_DerivedBuyValues(t *testing.T) {
	order, err := NewOrder("600000", DirectionBuy, 10.0, 100, testTime(1), 0.0001, 0.001)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if !almostEqual(order.FrozenCash(), 1000.1) {
		t.Errorf("Expected frozen cash 1000.1, got %v", order.FrozenCash())
	}
	// Sell-only accessors return zero on a buy order, never an error.
	if order.Proceeds() != 0 {
		t.Errorf("Expected zero proceeds on buy order, got %v", order.Proceeds())
	}
	if order.Tax() != 0 {
		t.Errorf("Expected zero tax on buy order, got %v", order.Tax())
	}
	// Fill-derived values are zero before the fill.
	if order.GrossCost() != 0 {
		t.Errorf("Expected zero gross cost before fill, got %v", order.GrossCost())
	}

	if err := order.fill(10.0, 100, testTime(1)); err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	if !almostEqual(order.GrossCost(), 1000.1) {
		t.Errorf("Expected gross cost 1000.1, got %v", order.GrossCost())
	}
	if !almostEqual(order.Commission(), 0.1) {
		t.Errorf("Expected commission 0.1, got %v", order.Commission())
	}
}

func TestOrder_DerivedSellValues(t *testing.T) {
	order, err := NewOrder("600000", DirectionSell, 11.0, 50, testTime(2), 0.0001, 0.001)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if order.FrozenCash() != 0 {
		t.Errorf("Expected zero frozen cash on sell order, got %v", order.FrozenCash())
	}

	if err := order.fill(11.0, 50, testTime(2)); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	// 550 * (1 - 0.0001 - 0.001)
	if !almostEqual(order.Proceeds(), 549.395) {
		t.Errorf("Expected proceeds 549.395, got %v", order.Proceeds())
	}
	if !almostEqual(order.Tax(), 0.55) {
		t.Errorf("Expected tax 0.55, got %v", order.Tax())
	}
	if order.GrossCost() != 0 {
		t.Errorf("Expected zero gross cost on sell order, got %v", order.GrossCost())
	}
}

func TestOrder_FillRequiresWait(t *testing.T) {
	order, err := NewOrder("600000", DirectionBuy, 10.0, 100, testTime(1), 0, 0)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if err := order.cancel(); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	err = order.fill(10.0, 100, testTime(1))
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}

	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Expected InvalidStateError, got %v", err)
	}
	if stateErr.State != OrderStateCancel {
		t.Errorf("Expected state CANCEL in error, got %s", stateErr.State)
	}
}

func TestOrder_CancelIsTerminal(t *testing.T) {
	order, err := NewOrder("600000", DirectionBuy, 10.0, 100, testTime(1), 0, 0)
	if err != nil {
		t.Fatalf("NewOrder failed: %v", err)
	}

	if err := order.cancel(); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if err := order.cancel(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState on second cancel, got %v", err)
	}
}
