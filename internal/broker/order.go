package broker

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction represents the side of an order
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"

	// Reserved for derivative instruments; submission rejects them for now.
	DirectionBuyOpen   Direction = "BUY_OPEN"
	DirectionBuyClose  Direction = "BUY_CLOSE"
	DirectionSellOpen  Direction = "SELL_OPEN"
	DirectionSellClose Direction = "SELL_CLOSE"
)

// IsValid reports whether the direction is accepted for submission
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// OrderState represents the order lifecycle state
type OrderState string

const (
	OrderStateWait   OrderState = "WAIT"
	OrderStateDone   OrderState = "DONE"
	OrderStateCancel OrderState = "CANCEL"
)

// Fill holds the execution details of a filled order
type Fill struct {
	Price    float64
	Quantity int64
	At       time.Time
}

// Order is a single buy/sell instruction with its lifecycle state.
// Monetary quantities (frozen cash, cost, proceeds, commission, tax) are
// derived from the current state, never stored.
type Order struct {
	ID             string
	Code           string
	Direction      Direction
	Price          float64
	Quantity       int64
	SubmittedAt    time.Time
	CommissionRate float64
	TaxRate        float64
	State          OrderState
	Fill           *Fill // nil until filled
}

// NewOrder creates an order in WAIT state with a freshly generated id
func NewOrder(code string, direction Direction, price float64, quantity int64, at time.Time, commissionRate, taxRate float64) (*Order, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code required", ErrInvalidOrder)
	}
	if !direction.IsValid() {
		return nil, fmt.Errorf("%w: unsupported direction %s", ErrInvalidOrder, direction)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidOrder)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}

	return &Order{
		ID:             generateOrderID(),
		Code:           code,
		Direction:      direction,
		Price:          price,
		Quantity:       quantity,
		SubmittedAt:    at,
		CommissionRate: commissionRate,
		TaxRate:        taxRate,
		State:          OrderStateWait,
	}, nil
}

func generateOrderID() string {
	return "ord_" + uuid.New().String()
}

// clone returns a deep copy so read paths never hand out live state
func (o *Order) clone() *Order {
	cp := *o
	if o.Fill != nil {
		f := *o.Fill
		cp.Fill = &f
	}
	return &cp
}

// fill records the execution details. It does not transition the order to
// DONE; the owning account does that after the position and cash updates
// succeed.
func (o *Order) fill(price float64, quantity int64, at time.Time) error {
	if o.State != OrderStateWait {
		return &InvalidStateError{OrderID: o.ID, State: o.State}
	}
	o.Fill = &Fill{Price: price, Quantity: quantity, At: at}
	return nil
}

// cancel transitions the order to its CANCEL terminal state
func (o *Order) cancel() error {
	if o.State != OrderStateWait {
		return &InvalidStateError{OrderID: o.ID, State: o.State}
	}
	o.State = OrderStateCancel
	return nil
}

// FrozenCash returns the cash reservation required at submission.
// Zero for sell orders.
func (o *Order) FrozenCash() float64 {
	if o.Direction != DirectionBuy {
		return 0
	}
	return o.Price * float64(o.Quantity) * (1 + o.CommissionRate)
}

// GrossCost returns the total cash debited by a buy fill, commission included.
// Zero for sell orders or before the fill.
func (o *Order) GrossCost() float64 {
	if o.Direction != DirectionBuy || o.Fill == nil {
		return 0
	}
	return o.Fill.Price * float64(o.Fill.Quantity) * (1 + o.CommissionRate)
}

// Proceeds returns the cash credited by a sell fill, net of commission and
// tax. Zero for buy orders or before the fill.
func (o *Order) Proceeds() float64 {
	if o.Direction != DirectionSell || o.Fill == nil {
		return 0
	}
	return o.Fill.Price * float64(o.Fill.Quantity) * (1 - o.CommissionRate - o.TaxRate)
}

// Commission returns the commission charged on the fill value
func (o *Order) Commission() float64 {
	if o.Fill == nil {
		return 0
	}
	return o.Fill.Price * float64(o.Fill.Quantity) * o.CommissionRate
}

// Tax returns the transaction tax charged on the fill value. Buys are exempt.
func (o *Order) Tax() float64 {
	if o.Direction != DirectionSell || o.Fill == nil {
		return 0
	}
	return o.Fill.Price * float64(o.Fill.Quantity) * o.TaxRate
}
