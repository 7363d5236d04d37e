package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mike-sudo1/TradingBot2/internal/exchange"
	"github.com/Mike-sudo1/TradingBot2/internal/execution"
	"github.com/Mike-sudo1/TradingBot2/internal/portfolio"
	"github.com/Mike-sudo1/TradingBot2/internal/risk"
	"github.com/Mike-sudo1/TradingBot2/internal/scoring"
	"github.com/Mike-sudo1/TradingBot2/internal/signal"
	"github.com/Mike-sudo1/TradingBot2/internal/sizing"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testFilters() *exchange.FilterCache {
	f := exchange.SymbolFilters{TickSize: 0.01, StepSize: 0.00001, MinQty: 0.00001, MinNotional: 5}
	return exchange.NewFilterCache(map[string]exchange.SymbolFilters{
		"BTCUSDT": f,
		"ETHUSDT": f,
	})
}

func testParams() Params {
	return Params{
		MaxCapital:       25,
		FeeTaker:         0.001,
		ProfitTakeBps:    30,
		StopLossBps:      20,
		MinNotionalFloor: 5,
		MaxOpenTrades:    1,
		EntryMinGrade:    scoring.GradeB,
		EntryMinScore:    0, // score floor disabled: every graded signal enters
		RiskUnit:         "bps",
		Scoring:          scoring.Config{MinSamples: 5, TrendWindow: 5},
	}
}

func testRiskParams() risk.Params {
	return risk.Params{DailyMaxDrawdown: 50, CooldownSec: 15, TrailStartBps: 15, TrailStepBps: 5}
}

func newMachine(t *testing.T, params Params, riskParams risk.Params, adapter Adapter) (*CompositeLong, *portfolio.Ledger, *risk.Manager, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	filters := testFilters()
	mgr := risk.NewManager(riskParams, clock.now)
	ledger := portfolio.NewLedger()
	if adapter == nil {
		adapter = execution.NewSimGateway(filters, params.FeeTaker, zerolog.Nop())
	}
	sm := New(params, filters, mgr, adapter, ledger, nil, zerolog.Nop(), clock.now)
	return sm, ledger, mgr, clock
}

func quote(symbol string, px, volume float64) signal.Tick {
	return signal.Tick{Symbol: symbol, Bid: px - 0.005, Ask: px + 0.005, Volume: volume, Ts: time.Now()}
}

// warmUp feeds one tick short of the scoring minimum so the next quote is
// the first actionable one. Returns the last price fed.
func warmUp(t *testing.T, sm *CompositeLong, symbol string, px float64) float64 {
	t.Helper()
	for i := 0; i < 4; i++ {
		px += 0.01
		d := sm.OnTick(context.Background(), quote(symbol, px, 10))
		if d.Kind != KindNone {
			t.Fatalf("expected no decision during warmup, got kind=%d reason=%q", d.Kind, d.Reason)
		}
	}
	return px
}

func openPosition(t *testing.T, sm *CompositeLong, symbol string, startPx float64) (Decision, float64) {
	t.Helper()
	px := warmUp(t, sm, symbol, startPx)
	px += 0.01
	d := sm.OnTick(context.Background(), quote(symbol, px, 10))
	if d.Kind != KindOpen {
		t.Fatalf("expected entry, got kind=%d reason=%q", d.Kind, d.Reason)
	}
	return d, px
}

func TestEntryOpensPosition(t *testing.T) {
	sm, ledger, _, _ := newMachine(t, testParams(), testRiskParams(), nil)
	d, px := openPosition(t, sm, "BTCUSDT", 100.00)

	positions := sm.OpenPositions()
	pos, ok := positions["BTCUSDT"]
	if !ok {
		t.Fatalf("expected an open position after entry")
	}
	if pos.EntryPrice != px {
		t.Fatalf("entry price should be the mid %v, got %v", px, pos.EntryPrice)
	}
	if pos.Stop >= pos.EntryPrice || pos.TakeProfit <= pos.EntryPrice {
		t.Fatalf("stop %v and take profit %v must bracket entry %v", pos.Stop, pos.TakeProfit, pos.EntryPrice)
	}
	if d.Fill.Qty <= 0 || d.Fill.Notional > testParams().MaxCapital {
		t.Fatalf("fill qty %v notional %v out of bounds", d.Fill.Qty, d.Fill.Notional)
	}
	if got := len(ledger.Snapshot()); got != 1 {
		t.Fatalf("expected 1 ledger entry after entry, got %d", got)
	}
}

func TestEntryGateScoreBypassesGradeFloor(t *testing.T) {
	// A flat tape grades C (no trend, no momentum, RSI pinned), but its
	// score still clears a low absolute floor, so the entry goes through.
	params := testParams()
	params.EntryMinGrade = scoring.GradeA
	params.EntryMinScore = 2.0
	sm, _, _, _ := newMachine(t, params, testRiskParams(), nil)

	var d Decision
	for i := 0; i < 5; i++ {
		d = sm.OnTick(context.Background(), quote("BTCUSDT", 100.00, 10))
	}
	if d.Kind != KindOpen {
		t.Fatalf("score above floor should bypass the grade gate, got kind=%d reason=%q", d.Kind, d.Reason)
	}
	if d.Score.Grade == scoring.GradeA {
		t.Fatalf("test needs a sub-threshold grade to prove the bypass, got %s", d.Score.Grade)
	}
}

func TestEntrySkippedWhenGradeAndScoreBothFail(t *testing.T) {
	params := testParams()
	params.EntryMinGrade = scoring.GradeA
	params.EntryMinScore = 3.5
	sm, ledger, _, _ := newMachine(t, params, testRiskParams(), nil)

	var d Decision
	for i := 0; i < 6; i++ {
		d = sm.OnTick(context.Background(), quote("BTCUSDT", 100.00, 10))
	}
	if d.Kind != KindSkip || d.Reason != ReasonGrade {
		t.Fatalf("expected grade skip, got kind=%d reason=%q", d.Kind, d.Reason)
	}
	if len(ledger.Snapshot()) != 0 {
		t.Fatalf("skip must not touch the ledger")
	}
}

func TestStopLossExitStartsCooldown(t *testing.T) {
	sm, ledger, mgr, clock := newMachine(t, testParams(), testRiskParams(), nil)
	_, px := openPosition(t, sm, "BTCUSDT", 100.00)

	d := sm.OnTick(context.Background(), quote("BTCUSDT", 99.00, 10))
	if d.Kind != KindClose || d.Exit != "stop" {
		t.Fatalf("expected stop exit, got kind=%d exit=%q reason=%q", d.Kind, d.Exit, d.Reason)
	}
	if d.PnL >= 0 {
		t.Fatalf("stop exit below entry %v must lose money, got pnl=%v", px, d.PnL)
	}
	if len(sm.OpenPositions()) != 0 {
		t.Fatalf("position must be closed after stop")
	}
	if got := len(ledger.Snapshot()); got != 2 {
		t.Fatalf("expected buy and sell in ledger, got %d", got)
	}

	// Cooldown blocks the next entry until it expires.
	d = sm.OnTick(context.Background(), quote("BTCUSDT", 99.01, 10))
	if d.Kind != KindSkip || d.Reason != ReasonCooldown {
		t.Fatalf("expected cooldown skip, got kind=%d reason=%q", d.Kind, d.Reason)
	}
	clock.advance(16 * time.Second)
	d = sm.OnTick(context.Background(), quote("BTCUSDT", 99.02, 10))
	if d.Kind != KindOpen {
		t.Fatalf("expected entry after cooldown expiry, got kind=%d reason=%q", d.Kind, d.Reason)
	}
	if mgr.Halted() {
		t.Fatalf("small loss must not trip the drawdown halt")
	}
}

func TestTakeProfitExit(t *testing.T) {
	sm, _, mgr, _ := newMachine(t, testParams(), testRiskParams(), nil)
	openPosition(t, sm, "BTCUSDT", 100.00)

	d := sm.OnTick(context.Background(), quote("BTCUSDT", 100.60, 10))
	if d.Kind != KindClose || d.Exit != "take_profit" {
		t.Fatalf("expected take profit exit, got kind=%d exit=%q", d.Kind, d.Exit)
	}
	if d.PnL <= 0 {
		t.Fatalf("take profit exit should realize a gain, got %v", d.PnL)
	}
	if mgr.RealizedPnL() != d.PnL {
		t.Fatalf("realized pnl %v not folded into session total %v", d.PnL, mgr.RealizedPnL())
	}
}

func TestMomentumExitWhenHistogramTurnsNegative(t *testing.T) {
	// Wide stop and target so only the MACD histogram sign can close.
	params := testParams()
	params.StopLossBps = 500
	params.ProfitTakeBps = 1000
	sm, _, _, _ := newMachine(t, params, testRiskParams(), nil)
	_, px := openPosition(t, sm, "BTCUSDT", 100.00)

	var d Decision
	for i := 0; i < 12; i++ {
		px -= 0.05
		d = sm.OnTick(context.Background(), quote("BTCUSDT", px, 10))
		if d.Kind == KindClose {
			break
		}
	}
	if d.Kind != KindClose || d.Exit != "momentum" {
		t.Fatalf("expected momentum exit on fading tape, got kind=%d exit=%q", d.Kind, d.Exit)
	}
}

func TestTrailingStopRatchetsWhileHolding(t *testing.T) {
	params := testParams()
	params.StopLossBps = 100
	params.ProfitTakeBps = 1000
	sm, _, _, _ := newMachine(t, params, testRiskParams(), nil)
	_, px := openPosition(t, sm, "BTCUSDT", 100.00)

	d := sm.OnTick(context.Background(), quote("BTCUSDT", px+1.00, 10))
	if d.Kind != KindHold {
		t.Fatalf("expected hold, got kind=%d exit=%q reason=%q", d.Kind, d.Exit, d.Reason)
	}
	pos := sm.OpenPositions()["BTCUSDT"]
	if pos.Stop <= pos.EntryPrice {
		t.Fatalf("trailing stop should have locked in gains: stop=%v entry=%v", pos.Stop, pos.EntryPrice)
	}
}

func TestMaxOpenTradesCapsEntries(t *testing.T) {
	sm, _, _, _ := newMachine(t, testParams(), testRiskParams(), nil)
	openPosition(t, sm, "BTCUSDT", 100.00)

	px := warmUp(t, sm, "ETHUSDT", 50.00)
	d := sm.OnTick(context.Background(), quote("ETHUSDT", px+0.01, 10))
	if d.Kind != KindSkip || d.Reason != ReasonMaxOpen {
		t.Fatalf("expected max open skip, got kind=%d reason=%q", d.Kind, d.Reason)
	}
	if len(sm.OpenPositions()) != 1 {
		t.Fatalf("cap breach must not open a second position")
	}
}

func TestDrawdownHaltOutlivesCooldown(t *testing.T) {
	riskParams := testRiskParams()
	riskParams.DailyMaxDrawdown = 0.05
	sm, _, mgr, clock := newMachine(t, testParams(), riskParams, nil)
	openPosition(t, sm, "BTCUSDT", 100.00)

	d := sm.OnTick(context.Background(), quote("BTCUSDT", 99.00, 10))
	if d.Kind != KindClose {
		t.Fatalf("expected stop exit, got kind=%d", d.Kind)
	}
	if !mgr.Halted() {
		t.Fatalf("loss beyond the daily limit must halt the session")
	}

	clock.advance(time.Hour)
	d = sm.OnTick(context.Background(), quote("BTCUSDT", 99.01, 10))
	if d.Kind != KindSkip || d.Reason != ReasonCooldown {
		t.Fatalf("halted session must keep skipping entries, got kind=%d reason=%q", d.Kind, d.Reason)
	}
}

type failingAdapter struct{}

func (failingAdapter) Execute(context.Context, string, execution.Side, float64, float64) (execution.Fill, error) {
	return execution.Fill{}, errors.New("gateway unavailable")
}

func TestFailedEntryOrderLeavesNoPosition(t *testing.T) {
	sm, ledger, _, _ := newMachine(t, testParams(), testRiskParams(), failingAdapter{})
	px := warmUp(t, sm, "BTCUSDT", 100.00)

	d := sm.OnTick(context.Background(), quote("BTCUSDT", px+0.01, 10))
	if d.Kind != KindSkip || d.Reason != ReasonExecFailed {
		t.Fatalf("expected exec failure skip, got kind=%d reason=%q", d.Kind, d.Reason)
	}
	if len(sm.OpenPositions()) != 0 || len(ledger.Snapshot()) != 0 {
		t.Fatalf("failed order must leave no state behind")
	}
}

type flakyAdapter struct {
	inner    Adapter
	failFrom int
	calls    int
}

func (a *flakyAdapter) Execute(ctx context.Context, symbol string, side execution.Side, qty, refPrice float64) (execution.Fill, error) {
	a.calls++
	if a.calls >= a.failFrom {
		return execution.Fill{}, errors.New("gateway unavailable")
	}
	return a.inner.Execute(ctx, symbol, side, qty, refPrice)
}

func TestFailedExitOrderKeepsPosition(t *testing.T) {
	params := testParams()
	sim := execution.NewSimGateway(testFilters(), params.FeeTaker, zerolog.Nop())
	adapter := &flakyAdapter{inner: sim, failFrom: 2}
	sm, ledger, mgr, _ := newMachine(t, params, testRiskParams(), adapter)
	openPosition(t, sm, "BTCUSDT", 100.00)

	d := sm.OnTick(context.Background(), quote("BTCUSDT", 99.00, 10))
	if d.Kind != KindHold || d.Reason != ReasonExecFailed {
		t.Fatalf("failed exit must hold the position, got kind=%d reason=%q", d.Kind, d.Reason)
	}
	if len(sm.OpenPositions()) != 1 {
		t.Fatalf("position must survive a failed exit order")
	}
	if mgr.RealizedPnL() != 0 || len(ledger.Snapshot()) != 1 {
		t.Fatalf("failed exit must not realize pnl")
	}
}

func TestSizedQuantityRespectsFilters(t *testing.T) {
	sm, _, _, _ := newMachine(t, testParams(), testRiskParams(), nil)
	d, _ := openPosition(t, sm, "BTCUSDT", 100.00)

	f, _ := testFilters().Get("BTCUSDT")
	if got := sizing.QuantizeFloor(d.Fill.Qty, f.StepSize); got != d.Fill.Qty {
		t.Fatalf("fill qty %v is not aligned to step %v", d.Fill.Qty, f.StepSize)
	}
	if !sizing.NotionalOK(d.Fill.Price, d.Fill.Qty, f, testParams().MinNotionalFloor) {
		t.Fatalf("fill notional below exchange minimum")
	}
}
