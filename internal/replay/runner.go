package replay

import (
	"context"
	"fmt"
	"sort"
	"time"

	"paperbroker/internal/broker"
	"paperbroker/internal/logger"
	"paperbroker/internal/storage"
)

// Result summarizes one replay run.
type Result struct {
	Bars        int
	Orders      int
	Fills       int
	Cancels     int
	Rejected    int
	Settlements []broker.Settlement
}

// Runner drives an account through a recorded price series and an
// order script. Orders fill immediately at the latest market price;
// the account is settled at the end of each calendar day. A nil store
// or logger disables persistence or logging.
type Runner struct {
	account *broker.Account
	log     *logger.Logger
	store   storage.Store
}

func NewRunner(account *broker.Account, log *logger.Logger, store storage.Store) *Runner {
	return &Runner{account: account, log: log, store: store}
}

// Run replays the bars in time order, executing script rows as their
// timestamps are reached. Script rows that the account rejects are
// counted and skipped; the run keeps going.
func (r *Runner) Run(ctx context.Context, bars []PriceBar, script []ScriptRow) (Result, error) {
	if len(bars) == 0 {
		return Result{}, fmt.Errorf("no price bars to replay")
	}

	groups := groupBars(bars)
	var res Result
	res.Bars = len(bars)
	next := 0

	for gi, group := range groups {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		at := group[0].At
		if err := r.account.AdvanceTime(at); err != nil {
			return res, fmt.Errorf("advance to %v: %w", at, err)
		}
		prices := make(map[string]float64, len(group))
		for _, bar := range group {
			prices[bar.Code] = bar.Price
		}
		r.account.UpdatePrices(prices)

		for next < len(script) && !script[next].At.After(at) {
			r.execute(script[next], at, &res)
			next++
		}

		lastOfDay := gi == len(groups)-1 || !sameDay(at, groups[gi+1][0].At)
		if lastOfDay {
			settlement := r.account.Settle()
			res.Settlements = append(res.Settlements, settlement)
			if r.store != nil {
				if err := r.store.SaveSettlement(ctx, settlement); err != nil {
					return res, fmt.Errorf("save settlement: %w", err)
				}
			}
			r.logf("settled %s equity=%.2f cash=%.2f frozen=%.2f",
				at.Format("2006-01-02"), settlement.TotalEquity, settlement.AvailableCash, settlement.FrozenCash)
		}
	}

	if r.store != nil {
		if err := r.persistHistory(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) execute(row ScriptRow, at time.Time, res *Result) {
	switch row.Action {
	case ActionCancel:
		for id, order := range r.account.PendingOrders() {
			if order.Code != row.Code {
				continue
			}
			if err := r.account.CancelDeal(id); err != nil {
				r.logf("cancel %s rejected: %v", id, err)
				res.Rejected++
				continue
			}
			res.Cancels++
		}
		return

	case ActionBuy, ActionSell:
		direction := broker.DirectionBuy
		if row.Action == ActionSell {
			direction = broker.DirectionSell
		}
		id, err := r.account.SendOrder(row.Code, direction, row.Price, row.Quantity, at)
		if err != nil {
			r.logf("%s %s %d@%.4f rejected: %v", row.Action, row.Code, row.Quantity, row.Price, err)
			res.Rejected++
			return
		}
		res.Orders++

		deal := broker.Deal{OrderID: id, At: at}
		if price, ok := r.marketPrice(row.Code); ok {
			deal.Price = price
		}
		if err := r.account.MakeDeal(deal); err != nil {
			// Leave the order pending; a later script row may cancel it.
			r.logf("fill %s rejected: %v", id, err)
			res.Rejected++
			return
		}
		res.Fills++
	}
}

func (r *Runner) marketPrice(code string) (float64, bool) {
	return r.account.LastPrice(code)
}

func (r *Runner) persistHistory(ctx context.Context) error {
	byCode := make(map[string][]broker.FillRecord)
	for _, rec := range r.account.TransactionHistory() {
		byCode[rec.Code] = append(byCode[rec.Code], rec)
	}
	for code, fills := range byCode {
		if err := r.store.SaveTransactions(ctx, code, fills); err != nil {
			return fmt.Errorf("save transactions for %s: %w", code, err)
		}
	}
	return nil
}

func (r *Runner) logf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Info(format, args...)
	}
}

// groupBars splits time-sorted bars into groups sharing a timestamp.
func groupBars(bars []PriceBar) [][]PriceBar {
	sorted := append([]PriceBar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	var groups [][]PriceBar
	for _, bar := range sorted {
		if n := len(groups); n > 0 && groups[n-1][0].At.Equal(bar.At) {
			groups[n-1] = append(groups[n-1], bar)
			continue
		}
		groups = append(groups, []PriceBar{bar})
	}
	return groups
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
