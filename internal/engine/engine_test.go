package engine

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
	"github.com/Mike-sudo1/TradingBot2/internal/strategy"
)

func newPaperStack(t *testing.T) (*Engine, *portfolio.Ledger) {
	t.Helper()
	filters := exchange.NewFilterCache(map[string]exchange.SymbolFilters{
		"BTCUSDT": {TickSize: 0.01, StepSize: 0.00001, MinQty: 0.00001, MinNotional: 5},
	})
	params := strategy.Params{
		MaxCapital:       25,
		FeeTaker:         0.001,
		ProfitTakeBps:    30,
		StopLossBps:      20,
		MinNotionalFloor: 5,
		MaxOpenTrades:    1,
		EntryMinGrade:    scoring.GradeB,
		EntryMinScore:    0,
		RiskUnit:         "bps",
		Scoring:          scoring.Config{MinSamples: 5, TrendWindow: 5},
	}
	riskMgr := risk.NewManager(risk.Params{DailyMaxDrawdown: 50, CooldownSec: 1, TrailStartBps: 15, TrailStepBps: 5}, nil)
	ledger := portfolio.NewLedger()
	sim := execution.NewSimGateway(filters, params.FeeTaker, zerolog.Nop())
	sm := strategy.New(params, filters, riskMgr, sim, ledger, nil, zerolog.Nop(), nil)
	return New(sm, riskMgr, sim, zerolog.Nop()), ledger
}

func tickAt(px float64) signal.Tick {
	return signal.Tick{Symbol: "BTCUSDT", Bid: px - 0.005, Ask: px + 0.005, Volume: 10, Ts: time.Now()}
}

func TestPaperRoundTrip(t *testing.T) {
	eng, ledger := newPaperStack(t)

	ticks := make(chan signal.Tick, 16)
	// Warmup ramp, entry on the fifth quote, then a pop through the target.
	for _, px := range []float64{100.01, 100.02, 100.03, 100.04, 100.05, 100.60} {
		ticks <- tickAt(px)
	}
	close(ticks)

	if err := eng.Run(context.Background(), ticks); err != nil {
		t.Fatalf("clean drain should return nil, got %v", err)
	}

	sum := ledger.Summary()
	if sum.Trades != 2 {
		t.Fatalf("expected a buy and a sell, got %d trades", sum.Trades)
	}
	if sum.Realized <= 0 {
		t.Fatalf("round trip through the target should profit, got %v", sum.Realized)
	}
	if sum.Wins != 1 || sum.Losses != 0 {
		t.Fatalf("expected one winning round trip, got wins=%d losses=%d", sum.Wins, sum.Losses)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	eng, _ := newPaperStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eng.Run(ctx, make(chan signal.Tick))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestInvalidTicksAreDropped(t *testing.T) {
	eng, ledger := newPaperStack(t)

	ticks := make(chan signal.Tick, 4)
	ticks <- signal.Tick{Symbol: "BTCUSDT", Bid: 100, Ask: 99, Ts: time.Now()} // crossed
	ticks <- signal.Tick{Symbol: "BTCUSDT", Bid: 0, Ask: 0, Ts: time.Now()}
	close(ticks)

	if err := eng.Run(context.Background(), ticks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(ledger.Snapshot()); got != 0 {
		t.Fatalf("invalid ticks must not trade, got %d ledger rows", got)
	}
}
