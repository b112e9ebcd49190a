package broker

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Config holds the account constructor parameters
type Config struct {
	InitialCash    float64
	CommissionRate float64
	TaxRate        float64
	SettleLagDays  int
}

// Settlement is an immutable point-in-time record of account state, appended
// to the settlement history by Settle.
type Settlement struct {
	At             time.Time          `json:"at"`
	TotalEquity    float64            `json:"total_equity"`
	AvailableCash  float64            `json:"available_cash"`
	FrozenCash     float64            `json:"frozen_cash"`
	FloatingProfit float64            `json:"floating_profit"`
	Positions      []PositionSnapshot `json:"positions"`
}

// Deal supplies fill parameters for MakeDeal. Zero-valued Price, Quantity and
// At fall back to the order's requested price, quantity and submission time.
type Deal struct {
	OrderID  string
	Price    float64
	Quantity int64
	At       time.Time
}

// Account owns the cash balances, the order table, the position table and the
// settlement history of one simulated brokerage account. It is driven by a
// single sequential caller; every operation either fully applies its state
// change or fails without partial mutation.
type Account struct {
	mu sync.Mutex

	cash       float64
	frozenCash float64
	now        time.Time

	orders     map[string]*Order
	positions  map[string]*Position
	lastPrices map[string]float64

	settlements []Settlement

	commissionRate float64
	taxRate        float64
	settleLag      int
}

// NewAccount creates an account with the given initial cash and rates
func NewAccount(cfg Config) *Account {
	return &Account{
		cash:           cfg.InitialCash,
		orders:         make(map[string]*Order),
		positions:      make(map[string]*Position),
		lastPrices:     make(map[string]float64),
		settlements:    make([]Settlement, 0),
		commissionRate: cfg.CommissionRate,
		taxRate:        cfg.TaxRate,
		settleLag:      cfg.SettleLagDays,
	}
}

// AdvanceTime moves the simulated clock forward and re-evaluates the
// settlement lag of every position. Time must be monotonically non-decreasing.
func (a *Account) AdvanceTime(t time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t.Before(a.now) {
		return fmt.Errorf("%w: %s precedes %s", ErrInvalidTime,
			t.Format(time.RFC3339), a.now.Format(time.RFC3339))
	}
	a.now = t
	for _, pos := range a.positions {
		pos.RefreshLag(t)
	}
	return nil
}

// Now returns the current simulated time
func (a *Account) Now() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now
}

// UpdatePrice stores the latest known price for an instrument. Cached prices
// feed floating-P&L display only, never the cost basis.
func (a *Account) UpdatePrice(code string, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updatePriceLocked(code, price)
}

// UpdatePrices stores a batch of latest prices
func (a *Account) UpdatePrices(prices map[string]float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for code, price := range prices {
		a.updatePriceLocked(code, price)
	}
}

// LastPrice returns the cached price for an instrument if one has been seen.
func (a *Account) LastPrice(code string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	price, ok := a.lastPrices[code]
	return price, ok
}

func (a *Account) updatePriceLocked(code string, price float64) {
	a.lastPrices[code] = price
	if pos, ok := a.positions[code]; ok {
		pos.LastPrice = price
	}
}

// SendOrder constructs an order and stores it in WAIT state. Buy orders
// atomically reserve their frozen-cash requirement; if the reservation would
// drive available cash negative the order is rejected and not stored.
func (a *Account) SendOrder(code string, direction Direction, price float64, quantity int64, at time.Time) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	order, err := NewOrder(code, direction, price, quantity, at, a.commissionRate, a.taxRate)
	if err != nil {
		return "", err
	}

	if direction == DirectionBuy {
		required := order.FrozenCash()
		if required > a.cash {
			return "", &InsufficientCashError{OrderCode: code, Required: required, Available: a.cash}
		}
		a.cash -= required
		a.frozenCash += required
	}

	a.orders[order.ID] = order
	return order.ID, nil
}

// MakeDeal fills a waiting order and applies the position and cash updates.
// For buys the original reservation is released in full and the actual fill
// cost is charged, so price slippage leaves no residual frozen cash.
func (a *Account) MakeDeal(deal Deal) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	order, ok := a.orders[deal.OrderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, deal.OrderID)
	}
	if order.State != OrderStateWait {
		return &InvalidStateError{OrderID: order.ID, State: order.State}
	}

	price := deal.Price
	if price == 0 {
		price = order.Price
	}
	quantity := deal.Quantity
	if quantity == 0 {
		quantity = order.Quantity
	}
	at := deal.At
	if at.IsZero() {
		at = order.SubmittedAt
	}
	if price <= 0 {
		return fmt.Errorf("%w: fill price must be positive", ErrInvalidOrder)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: fill quantity must be positive", ErrInvalidOrder)
	}

	if err := order.fill(price, quantity, at); err != nil {
		return err
	}

	switch order.Direction {
	case DirectionBuy:
		pos, ok := a.positions[order.Code]
		if !ok {
			pos = NewPosition(order.Code, ClassEquity, a.settleLag)
			if last, ok := a.lastPrices[order.Code]; ok {
				pos.LastPrice = last
			}
			a.positions[order.Code] = pos
		}
		if err := pos.RecordFill(order, a.now); err != nil {
			order.Fill = nil
			return err
		}
		reserved := order.FrozenCash()
		a.frozenCash -= reserved
		a.cash += reserved
		a.cash -= order.GrossCost()

	case DirectionSell:
		pos, ok := a.positions[order.Code]
		if !ok {
			order.Fill = nil
			return fmt.Errorf("%w: %s", ErrUnknownPosition, order.Code)
		}
		if err := pos.RecordFill(order, a.now); err != nil {
			order.Fill = nil
			return err
		}
		a.cash += order.Proceeds()
	}

	order.State = OrderStateDone
	return nil
}

// CancelDeal cancels a waiting order and releases any cash it froze
func (a *Account) CancelDeal(orderID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	order, ok := a.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	if err := order.cancel(); err != nil {
		return err
	}

	reserved := order.FrozenCash()
	a.frozenCash -= reserved
	a.cash += reserved
	return nil
}

// CurrentPositions returns snapshots of the positions with a held quantity
// above zero. Closed-out positions stay in the table for historical lookup
// but are excluded here.
func (a *Account) CurrentPositions() map[string]PositionSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]PositionSnapshot)
	for code, pos := range a.positions {
		if pos.Held > 0 {
			out[code] = pos.Snapshot()
		}
	}
	return out
}

// PendingOrders returns copies of the orders still in WAIT state
func (a *Account) PendingOrders() map[string]*Order {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]*Order)
	for id, order := range a.orders {
		if order.State == OrderStateWait {
			out[id] = order.clone()
		}
	}
	return out
}

// Order returns a copy of a stored order by id
func (a *Account) Order(orderID string) (*Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	order, ok := a.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	return order.clone(), nil
}

// Cash returns the available cash balance
func (a *Account) Cash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// FrozenCash returns the cash reserved by waiting buy orders
func (a *Account) FrozenCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozenCash
}

// PositionValue returns the market value of all current positions at their
// latest known prices
func (a *Account) PositionValue() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positionValueLocked()
}

func (a *Account) positionValueLocked() float64 {
	var total float64
	for _, pos := range a.positions {
		if pos.Held > 0 {
			total += float64(pos.Held) * pos.LastPrice
		}
	}
	return total
}

// FloatingProfit returns the unrealized profit of all current positions
func (a *Account) FloatingProfit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.floatingProfitLocked()
}

func (a *Account) floatingProfitLocked() float64 {
	var total float64
	for _, pos := range a.positions {
		if pos.Held > 0 {
			total += float64(pos.Held)*pos.LastPrice - pos.CostBasis
		}
	}
	return total
}

// TotalEquity returns available cash + frozen cash + position value
func (a *Account) TotalEquity() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash + a.frozenCash + a.positionValueLocked()
}

// Settle appends an immutable snapshot of the account to the settlement
// history and returns it. Pure observation; no other state changes.
func (a *Account) Settle() Settlement {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshots := make([]PositionSnapshot, 0, len(a.positions))
	for _, pos := range a.positions {
		if pos.Held > 0 {
			snapshots = append(snapshots, pos.Snapshot())
		}
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Code < snapshots[j].Code
	})

	s := Settlement{
		At:             a.now,
		TotalEquity:    a.cash + a.frozenCash + a.positionValueLocked(),
		AvailableCash:  a.cash,
		FrozenCash:     a.frozenCash,
		FloatingProfit: a.floatingProfitLocked(),
		Positions:      snapshots,
	}
	a.settlements = append(a.settlements, s)
	return s
}

// Settlements returns a copy of the settlement history, oldest first
func (a *Account) Settlements() []Settlement {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Settlement(nil), a.settlements...)
}

// TransactionHistory returns every fill record across all positions, active
// and archived ledgers merged, sorted by fill time
func (a *Account) TransactionHistory() []FillRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []FillRecord
	for _, pos := range a.positions {
		for _, archived := range pos.History() {
			out = append(out, archived...)
		}
		out = append(out, pos.Ledger()...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FilledAt.Before(out[j].FilledAt)
	})
	return out
}
