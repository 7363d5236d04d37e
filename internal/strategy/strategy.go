// Package strategy decides, per symbol and per tick, whether to open, hold,
// or close a long position under the session risk constraints.
package strategy

import (
	"context"
	"fmt"
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

// Adapter executes an approved (symbol, side, quantity) either for real or
// simulated at the supplied reference price. A returned error means nothing
// was filled.
type Adapter interface {
	Execute(ctx context.Context, symbol string, side execution.Side, qty, refPrice float64) (execution.Fill, error)
}

// Notifier receives human-readable event strings; delivery is best-effort
// and must never block the engine loop.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Params groups the tunable knobs of the entry/exit logic.
type Params struct {
	MaxCapital       float64
	FeeTaker         float64
	ProfitTakeBps    float64
	StopLossBps      float64
	MinNotionalFloor float64
	MaxOpenTrades    int
	EntryMinGrade    scoring.Grade
	EntryMinScore    float64
	RiskUnit         string // "bps" or "usdt"
	Debug            bool
	Scoring          scoring.Config
}

// Kind classifies what a tick made the state machine do.
type Kind int

const (
	// KindNone means not enough history to act.
	KindNone Kind = iota
	// KindSkip means an entry opportunity was declined, with a reason.
	KindSkip
	// KindOpen means a position was opened.
	KindOpen
	// KindHold means an open position was kept (trailing stop applied).
	KindHold
	// KindClose means a position was exited.
	KindClose
)

// Skip reasons surfaced on Decision. Sizing rejects reuse sizing.Reason.
const (
	ReasonCooldown   = "cooldown"
	ReasonMaxOpen    = "max_open"
	ReasonGrade      = "grade"
	ReasonNoFilters  = "no_filters"
	ReasonExecFailed = "exec_failed"
)

// Decision reports the outcome of one tick for logging and tests.
type Decision struct {
	Kind   Kind
	Symbol string
	Reason string
	Score  scoring.Result
	Fill   execution.Fill
	PnL    float64
	Exit   string // stop|take_profit|momentum, set on KindClose
}

type decisionMemo struct {
	price float64
	grade scoring.Grade
	at    time.Time
}

// CompositeLong is the per-symbol FLAT/LONG state machine driven by the
// composite signal grade. It owns all Position mutation; callers must feed
// it one tick at a time.
type CompositeLong struct {
	params   Params
	filters  *exchange.FilterCache
	risk     *risk.Manager
	adapter  Adapter
	ledger   *portfolio.Ledger
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	histories map[string]*scoring.History
	positions map[string]*risk.Position
	memo      map[string]decisionMemo
}

// New wires a state machine; nowFn may be nil for wall-clock time.
func New(params Params, filters *exchange.FilterCache, riskMgr *risk.Manager,
	adapter Adapter, ledger *portfolio.Ledger, notifier Notifier,
	log zerolog.Logger, nowFn func() time.Time) *CompositeLong {

	if nowFn == nil {
		nowFn = time.Now
	}
	return &CompositeLong{
		params:    params,
		filters:   filters,
		risk:      riskMgr,
		adapter:   adapter,
		ledger:    ledger,
		notifier:  notifier,
		log:       log,
		now:       nowFn,
		histories: make(map[string]*scoring.History),
		positions: make(map[string]*risk.Position),
		memo:      make(map[string]decisionMemo),
	}
}

// OpenPositions returns read-only copies of the current positions; callers
// never see live references.
func (s *CompositeLong) OpenPositions() map[string]risk.Position {
	out := make(map[string]risk.Position, len(s.positions))
	for sym, pos := range s.positions {
		out[sym] = *pos
	}
	return out
}

// OnTick consumes one quote: updates history, recomputes the signal, and
// runs the FLAT/LONG transition logic. Exactly one execution request is
// emitted per transition; every skip carries a reason, never an error.
func (s *CompositeLong) OnTick(ctx context.Context, tick signal.Tick) Decision {
	if !tick.Valid() {
		return Decision{Kind: KindNone, Symbol: tick.Symbol}
	}

	h, ok := s.histories[tick.Symbol]
	if !ok {
		h = scoring.NewHistory(s.params.Scoring)
		s.histories[tick.Symbol] = h
	}
	res, ready := h.Update(tick.Symbol, tick.Bid, tick.Ask, tick.Volume)
	if !ready {
		return Decision{Kind: KindNone, Symbol: tick.Symbol}
	}

	mid := tick.Mid()
	if pos, open := s.positions[tick.Symbol]; open {
		return s.manage(ctx, pos, tick, mid, res)
	}
	return s.tryEnter(ctx, tick, mid, res)
}

// manage handles the LONG side: exit conditions first, otherwise the
// trailing-stop ratchet. Cooldown never blocks exits.
func (s *CompositeLong) manage(ctx context.Context, pos *risk.Position, tick signal.Tick, mid float64, res scoring.Result) Decision {
	exit := ""
	switch {
	case mid <= pos.Stop:
		exit = "stop"
	case mid >= pos.TakeProfit:
		exit = "take_profit"
	case res.MACDHist < 0:
		exit = "momentum"
	}
	if exit == "" {
		s.risk.TrailingStop(pos, mid)
		return Decision{Kind: KindHold, Symbol: tick.Symbol, Score: res}
	}

	fill, err := s.adapter.Execute(ctx, pos.Symbol, execution.Sell, pos.Qty, mid)
	if err != nil {
		// Position stays open: a failed order is never treated as a fill.
		s.log.Error().Err(err).Str("sym", pos.Symbol).Msg("exit order failed, keeping position")
		return Decision{Kind: KindHold, Symbol: tick.Symbol, Reason: ReasonExecFailed, Score: res}
	}

	pnl := (fill.Price-pos.EntryPrice)*pos.Qty - fill.Fee
	tripped := s.risk.UpdatePnL(pnl)
	s.ledger.Record(fill, pnl)
	delete(s.positions, pos.Symbol)
	s.risk.StartCooldown()

	s.log.Info().Str("sym", pos.Symbol).Str("exit", exit).
		Float64("qty", fill.Qty).Float64("px", fill.Price).Float64("pnl", pnl).
		Msg("position closed")
	if tripped {
		s.log.Warn().Float64("pnl", s.risk.RealizedPnL()).Msg("daily drawdown limit breached, entries halted for the session")
		s.notify(ctx, fmt.Sprintf("HALT daily drawdown breached, pnl=%.2f", s.risk.RealizedPnL()))
	}
	s.notify(ctx, fmt.Sprintf("SELL %s qty=%.6f px=%.2f pnl=%.2f (%s)", pos.Symbol, fill.Qty, fill.Price, pnl, exit))

	return Decision{Kind: KindClose, Symbol: tick.Symbol, Score: res, Fill: fill, PnL: pnl, Exit: exit}
}

// tryEnter handles the FLAT side: gates, sizing, then the entry order.
func (s *CompositeLong) tryEnter(ctx context.Context, tick signal.Tick, mid float64, res scoring.Result) Decision {
	if !s.risk.CanEnter() {
		return s.skip(tick.Symbol, ReasonCooldown, res)
	}
	if s.params.MaxOpenTrades > 0 && len(s.positions) >= s.params.MaxOpenTrades {
		return s.skip(tick.Symbol, ReasonMaxOpen, res)
	}

	// Entry gate: grade below the floor is still accepted when the absolute
	// score clears the configured minimum. Skip only when both fail.
	if res.Grade.Rank() < s.params.EntryMinGrade.Rank() && res.Score < s.params.EntryMinScore {
		return s.skip(tick.Symbol, ReasonGrade, res)
	}

	f, ok := s.filters.Get(tick.Symbol)
	if !ok {
		return s.skip(tick.Symbol, ReasonNoFilters, res)
	}

	qty, reason := sizing.SizePosition(tick.Ask, s.params.MaxCapital, f, s.params.MinNotionalFloor)
	if qty == 0 {
		return s.skip(tick.Symbol, string(reason), res)
	}
	if !sizing.NotionalOK(tick.Ask, qty, f, s.params.MinNotionalFloor) {
		return s.skip(tick.Symbol, string(sizing.ReasonMinNotional), res)
	}

	stop := mid * (1 - s.params.StopLossBps/10000)
	takeProfit := mid * (1 + s.params.ProfitTakeBps/10000)

	fill, err := s.adapter.Execute(ctx, tick.Symbol, execution.Buy, qty, tick.Ask)
	if err != nil {
		s.log.Error().Err(err).Str("sym", tick.Symbol).Msg("entry order failed")
		return s.skip(tick.Symbol, ReasonExecFailed, res)
	}

	pos := &risk.Position{
		Symbol:     tick.Symbol,
		Side:       "LONG",
		EntryPrice: mid,
		Stop:       stop,
		TakeProfit: takeProfit,
		Qty:        fill.Qty,
		OpenedAt:   s.now(),
	}
	s.positions[tick.Symbol] = pos
	s.ledger.Record(fill, 0)

	s.log.Info().Str("sym", tick.Symbol).Str("grade", string(res.Grade)).
		Float64("qty", fill.Qty).Float64("px", fill.Price).
		Float64("notional", fill.Notional).Float64("fee", fill.Fee).
		Msg("position opened")
	s.notify(ctx, fmt.Sprintf("BUY %s qty=%.6f px=%.2f grade=%s", tick.Symbol, fill.Qty, fill.Price, res.Grade))
	s.logDecision(tick.Symbol, mid, stop, fill.Qty, res)

	return Decision{Kind: KindOpen, Symbol: tick.Symbol, Score: res, Fill: fill}
}

func (s *CompositeLong) skip(symbol, reason string, res scoring.Result) Decision {
	s.log.Debug().Str("sym", symbol).Str("reason", reason).
		Str("grade", string(res.Grade)).Float64("score", res.Score).
		Msg("entry skipped")
	return Decision{Kind: KindSkip, Symbol: symbol, Reason: reason, Score: res}
}

func (s *CompositeLong) notify(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, text)
	}
}

// logDecision emits the detailed entry breakdown in debug mode, de-duplicated
// when price (rounded to tick), grade, and a short interval all match.
func (s *CompositeLong) logDecision(symbol string, mid, stop, qty float64, res scoring.Result) {
	if !s.params.Debug {
		return
	}
	rounded := mid
	if f, ok := s.filters.Get(symbol); ok {
		rounded = sizing.FormatPrice(mid, f)
	}
	last, seen := s.memo[symbol]
	now := s.now()
	if seen && last.price == rounded && last.grade == res.Grade && now.Sub(last.at) < 200*time.Millisecond {
		return
	}
	s.memo[symbol] = decisionMemo{price: rounded, grade: res.Grade, at: now}

	riskLabel := "risk_bps"
	riskVal := (mid - stop) / mid * 10000
	if s.params.RiskUnit == "usdt" {
		riskLabel = "risk_usdt"
		riskVal = (mid - stop) * qty
	}
	s.log.Debug().Str("sym", symbol).Str("grade", string(res.Grade)).
		Float64("score", res.Score).Float64("px", mid).Float64("stop", stop).
		Float64(riskLabel, riskVal).
		Bool("trend", res.Trend).Float64("macd_hist", res.MACDHist).
		Float64("rsi", res.RSI).Float64("vwap_prox", res.VWAPProx).
		Float64("spread", res.Spread).
		Msg("entry decision")
}
