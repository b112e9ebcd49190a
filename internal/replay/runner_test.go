package replay

import (
	"context"
	"testing"
	"time"

	"paperbroker/internal/broker"
)

func testAccount() *broker.Account {
	return broker.NewAccount(broker.Config{
		InitialCash:    100000,
		CommissionRate: 0.0001,
		TaxRate:        0.001,
		SettleLagDays:  1,
	})
}

func barAt(day, hour int, code string, price float64) PriceBar {
	return PriceBar{
		Code:  code,
		At:    time.Date(2021, 4, day, hour, 0, 0, 0, time.UTC),
		Price: price,
	}
}

func TestRunnerTwoDayRoundTrip(t *testing.T) {
	acct := testAccount()
	runner := NewRunner(acct, nil, nil)

	bars := []PriceBar{
		barAt(1, 10, "600000", 10.0),
		barAt(1, 14, "600000", 10.2),
		barAt(2, 10, "600000", 11.0),
		barAt(2, 14, "600000", 11.5),
	}
	script := []ScriptRow{
		{At: bars[0].At, Code: "600000", Action: ActionBuy, Price: 10.0, Quantity: 100},
		{At: bars[2].At, Code: "600000", Action: ActionSell, Price: 11.0, Quantity: 50},
	}

	res, err := runner.Run(context.Background(), bars, script)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Orders != 2 || res.Fills != 2 || res.Rejected != 0 {
		t.Errorf("unexpected counts: %+v", res)
	}
	if len(res.Settlements) != 2 {
		t.Fatalf("expected 2 daily settlements, got %d", len(res.Settlements))
	}

	// Day 1 closes with the full buy still settlement-frozen.
	day1 := res.Settlements[0]
	if len(day1.Positions) != 1 || day1.Positions[0].Frozen != 100 {
		t.Errorf("unexpected day 1 positions: %+v", day1.Positions)
	}

	pos, ok := acct.CurrentPositions()["600000"]
	if !ok || pos.Held != 50 {
		t.Fatalf("expected 50 held after run, got %+v", pos)
	}

	// Buy filled at 10.0, sell filled at the day 2 market price of 11.0.
	wantCash := 100000 - 10.0*100*1.0001 + 11.0*50*(1-0.0011)
	if got := acct.Cash(); got < wantCash-1e-9 || got > wantCash+1e-9 {
		t.Errorf("expected cash %v, got %v", wantCash, got)
	}
}

func TestRunnerFillPriceRule(t *testing.T) {
	acct := testAccount()
	runner := NewRunner(acct, nil, nil)

	// Bars exist only for 600000. Its order fills at the latest market
	// price, not the requested 9.5; the 000001 order has no market price
	// yet and falls back to the price on the script row.
	bars := []PriceBar{
		barAt(1, 10, "600000", 10.0),
		barAt(1, 14, "600000", 10.3),
	}
	script := []ScriptRow{
		{At: bars[0].At, Code: "000001", Action: ActionBuy, Price: 5.0, Quantity: 100},
		{At: bars[1].At, Code: "600000", Action: ActionBuy, Price: 9.5, Quantity: 100},
	}

	res, err := runner.Run(context.Background(), bars, script)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Fills != 2 || res.Rejected != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}

	positions := acct.CurrentPositions()
	wantMarket := 10.3 * 100 * 1.0001
	if pos := positions["600000"]; pos.CostBasis < wantMarket-1e-9 || pos.CostBasis > wantMarket+1e-9 {
		t.Errorf("expected market-price basis %v, got %v", wantMarket, pos.CostBasis)
	}
	wantScript := 5.0 * 100 * 1.0001
	if pos := positions["000001"]; pos.CostBasis < wantScript-1e-9 || pos.CostBasis > wantScript+1e-9 {
		t.Errorf("expected script-price basis %v, got %v", wantScript, pos.CostBasis)
	}
}

func TestRunnerRejectsSellOfFrozenLot(t *testing.T) {
	acct := testAccount()
	runner := NewRunner(acct, nil, nil)

	bars := []PriceBar{
		barAt(1, 10, "600000", 10.0),
		barAt(1, 14, "600000", 10.5),
	}
	script := []ScriptRow{
		{At: bars[0].At, Code: "600000", Action: ActionBuy, Price: 10.0, Quantity: 100},
		{At: bars[1].At, Code: "600000", Action: ActionSell, Price: 10.5, Quantity: 100},
	}

	res, err := runner.Run(context.Background(), bars, script)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Fills != 1 || res.Rejected != 1 {
		t.Errorf("expected 1 fill and 1 rejection, got %+v", res)
	}
	if pos, ok := acct.CurrentPositions()["600000"]; !ok || pos.Held != 100 {
		t.Errorf("frozen lot should be intact, got %+v", pos)
	}
}

func TestRunnerCancelClearsPending(t *testing.T) {
	acct := testAccount()
	runner := NewRunner(acct, nil, nil)

	bars := []PriceBar{
		barAt(1, 10, "600000", 10.0),
		barAt(1, 12, "600000", 10.1),
		barAt(1, 14, "600000", 10.2),
	}
	// The sell has no position behind it, so the fill is rejected and the
	// order stays pending until the cancel row clears it.
	script := []ScriptRow{
		{At: bars[0].At, Code: "600000", Action: ActionSell, Price: 10.0, Quantity: 100},
		{At: bars[1].At, Code: "600000", Action: ActionCancel},
	}

	res, err := runner.Run(context.Background(), bars, script)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Cancels != 1 {
		t.Errorf("expected 1 cancel, got %+v", res)
	}
	if len(acct.PendingOrders()) != 0 {
		t.Errorf("expected no pending orders after cancel")
	}
	if acct.Cash() != 100000 {
		t.Errorf("expected cash untouched, got %v", acct.Cash())
	}
}

func TestRunnerEmptyBars(t *testing.T) {
	runner := NewRunner(testAccount(), nil, nil)
	if _, err := runner.Run(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for empty bar series")
	}
}

func TestRunnerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(testAccount(), nil, nil)
	bars := []PriceBar{barAt(1, 10, "600000", 10.0)}
	if _, err := runner.Run(ctx, bars, nil); err == nil {
		t.Fatalf("expected context error")
	}
}
