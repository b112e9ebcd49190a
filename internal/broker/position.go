package broker

import (
	"fmt"
	"time"
)

// InstrumentClass distinguishes instrument kinds for settlement-lag handling
type InstrumentClass string

const (
	ClassEquity InstrumentClass = "equity"
	ClassETF    InstrumentClass = "etf"
	ClassIndex  InstrumentClass = "index"
)

// FillRecord is one entry in a position's ledger. Quantity is signed:
// positive for buys, negative for sells.
type FillRecord struct {
	OrderID    string    `json:"order_id"`
	Code       string    `json:"code"`
	Direction  Direction `json:"direction"`
	Price      float64   `json:"price"`
	Quantity   int64     `json:"quantity"`
	Commission float64   `json:"commission"`
	Tax        float64   `json:"tax"`
	Frozen     bool      `json:"frozen"`
	FilledAt   time.Time `json:"filled_at"`
}

// Position is one instrument's running ledger of fills. Aggregates (held
// quantity, frozen quantity, cost basis) are maintained incrementally on each
// fill and each time advance rather than recomputed from the full ledger.
type Position struct {
	Code      string
	Class     InstrumentClass
	SettleLag int // trading days a bought lot stays frozen

	Held      int64
	FrozenQty int64
	CostBasis float64
	LastPrice float64

	ledger   []FillRecord
	archives [][]FillRecord
}

// NewPosition creates an empty position with a fresh ledger
func NewPosition(code string, class InstrumentClass, settleLag int) *Position {
	return &Position{
		Code:      code,
		Class:     class,
		SettleLag: settleLag,
		ledger:    make([]FillRecord, 0),
	}
}

// Available returns the quantity currently eligible for sale
func (p *Position) Available() int64 {
	return p.Held - p.FrozenQty
}

// RecordFill appends a ledger entry derived from the order's fill and updates
// the running aggregates. Sells exceeding the available quantity fail with
// ErrOverdraw and leave the position untouched.
func (p *Position) RecordFill(order *Order, now time.Time) error {
	if order.Fill == nil {
		return fmt.Errorf("order %s has no fill", order.ID)
	}
	if order.Code != p.Code {
		return fmt.Errorf("code mismatch: order %s, position %s", order.Code, p.Code)
	}

	p.RefreshLag(now)

	fill := order.Fill
	switch order.Direction {
	case DirectionBuy:
		rec := FillRecord{
			OrderID:    order.ID,
			Code:       p.Code,
			Direction:  order.Direction,
			Price:      fill.Price,
			Quantity:   fill.Quantity,
			Commission: order.Commission(),
			Tax:        order.Tax(),
			Frozen:     p.lotFrozen(fill.At, now),
			FilledAt:   fill.At,
		}
		p.ledger = append(p.ledger, rec)
		p.Held += fill.Quantity
		p.CostBasis += order.GrossCost()
		if rec.Frozen {
			p.FrozenQty += fill.Quantity
		}

	case DirectionSell:
		if fill.Quantity > p.Available() {
			return &OverdrawError{Code: p.Code, Requested: fill.Quantity, Available: p.Available()}
		}
		rec := FillRecord{
			OrderID:    order.ID,
			Code:       p.Code,
			Direction:  order.Direction,
			Price:      fill.Price,
			Quantity:   -fill.Quantity,
			Commission: order.Commission(),
			Tax:        order.Tax(),
			FilledAt:   fill.At,
		}
		p.ledger = append(p.ledger, rec)
		// Weighted-average cost: the basis shrinks by the average cost per
		// unit as of this fill, not by the sale proceeds.
		avgCost := p.CostBasis / float64(p.Held)
		p.Held -= fill.Quantity
		p.CostBasis -= avgCost * float64(fill.Quantity)

	default:
		return fmt.Errorf("%w: unsupported direction %s", ErrInvalidOrder, order.Direction)
	}

	if p.Held == 0 {
		p.archive()
	}
	return nil
}

// RefreshLag clears the frozen flag on buy lots that have aged past the
// settlement lag and recomputes the frozen quantity. Idempotent; a no-op when
// nothing has aged.
func (p *Position) RefreshLag(now time.Time) {
	var frozen int64
	for i := range p.ledger {
		rec := &p.ledger[i]
		if !rec.Frozen {
			continue
		}
		if !p.lotFrozen(rec.FilledAt, now) {
			rec.Frozen = false
			continue
		}
		frozen += rec.Quantity
	}
	p.FrozenQty = frozen
}

// lotFrozen reports whether a buy lot filled at fillAt is still settlement-
// frozen as of now. Dates are compared by calendar day; the lot frees up the
// moment the day reaches fillDate + lag.
func (p *Position) lotFrozen(fillAt, now time.Time) bool {
	if p.SettleLag <= 0 {
		return false
	}
	freeDay := dateOnly(fillAt).AddDate(0, 0, p.SettleLag)
	return dateOnly(now).Before(freeDay)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// archive moves the active ledger into history and resets the aggregates.
// Called exactly when the held quantity returns to zero.
func (p *Position) archive() {
	if len(p.ledger) > 0 {
		p.archives = append(p.archives, p.ledger)
	}
	p.ledger = make([]FillRecord, 0)
	p.CostBasis = 0
	p.FrozenQty = 0
}

// PositionSnapshot is an immutable view of a position for settlement reporting
type PositionSnapshot struct {
	Code      string          `json:"code"`
	Class     InstrumentClass `json:"class"`
	CostBasis float64         `json:"cost_basis"`
	Held      int64           `json:"held"`
	Frozen    int64           `json:"frozen"`
	Available int64           `json:"available"`
}

// Snapshot returns an immutable view of the position. Side-effect free.
func (p *Position) Snapshot() PositionSnapshot {
	return PositionSnapshot{
		Code:      p.Code,
		Class:     p.Class,
		CostBasis: p.CostBasis,
		Held:      p.Held,
		Frozen:    p.FrozenQty,
		Available: p.Available(),
	}
}

// Ledger returns a copy of the active ledger
func (p *Position) Ledger() []FillRecord {
	return append([]FillRecord(nil), p.ledger...)
}

// History returns copies of the archived ledgers, oldest first
func (p *Position) History() [][]FillRecord {
	out := make([][]FillRecord, 0, len(p.archives))
	for _, a := range p.archives {
		out = append(out, append([]FillRecord(nil), a...))
	}
	return out
}
