package broker

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrInvalidOrder     = errors.New("invalid order")
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrUnknownOrder     = errors.New("unknown order")
	ErrUnknownPosition  = errors.New("unknown position")
	ErrInvalidState     = errors.New("invalid order state")
	ErrOverdraw         = errors.New("overdrawn position")
	ErrInvalidTime      = errors.New("time moved backwards")
)

// InsufficientCashError reports a rejected BUY reservation with details
type InsufficientCashError struct {
	OrderCode string
	Required  float64
	Available float64
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("insufficient cash: code=%s required=%.4f available=%.4f",
		e.OrderCode, e.Required, e.Available)
}

func (e *InsufficientCashError) Is(target error) bool {
	return target == ErrInsufficientCash
}

// OverdrawError reports a SELL fill exceeding the sellable quantity
type OverdrawError struct {
	Code      string
	Requested int64
	Available int64
}

func (e *OverdrawError) Error() string {
	return fmt.Sprintf("overdrawn position: code=%s requested=%d available=%d",
		e.Code, e.Requested, e.Available)
}

func (e *OverdrawError) Is(target error) bool {
	return target == ErrOverdraw
}

// InvalidStateError reports an operation applied to an order outside WAIT
type InvalidStateError struct {
	OrderID string
	State   OrderState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid order state: order=%s state=%s", e.OrderID, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
