// Package engine runs the single-consumer trading loop: it drains the tick
// channel and feeds each quote through scoring and the position state
// machine, one event at a time.
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Mike-sudo1/TradingBot2/internal/execution"
	"github.com/Mike-sudo1/TradingBot2/internal/metrics"
	"github.com/Mike-sudo1/TradingBot2/internal/risk"
	"github.com/Mike-sudo1/TradingBot2/internal/signal"
	"github.com/Mike-sudo1/TradingBot2/internal/strategy"
)

// QuoteObserver is fed the latest mid price per tick. The simulated gateway
// implements it; live trading passes nil.
type QuoteObserver interface {
	ObserveQuote(symbol string, price float64)
}

// Engine owns the event loop. All strategy and risk state is mutated only
// from Run's goroutine, so none of it needs locking.
type Engine struct {
	sm       *strategy.CompositeLong
	riskMgr  *risk.Manager
	observer QuoteObserver
	log      zerolog.Logger
}

// New assembles the loop around an already-wired state machine.
func New(sm *strategy.CompositeLong, riskMgr *risk.Manager, observer QuoteObserver, log zerolog.Logger) *Engine {
	return &Engine{sm: sm, riskMgr: riskMgr, observer: observer, log: log}
}

// Run consumes ticks until the channel closes or the context is cancelled.
// It returns ctx.Err() on cancellation and nil on a clean drain.
func (e *Engine) Run(ctx context.Context, ticks <-chan signal.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			e.handle(ctx, tick)
		}
	}
}

func (e *Engine) handle(ctx context.Context, tick signal.Tick) {
	if !tick.Valid() {
		return
	}
	metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
	if e.observer != nil {
		e.observer.ObserveQuote(tick.Symbol, tick.Mid())
	}

	d := e.sm.OnTick(ctx, tick)
	switch d.Kind {
	case strategy.KindSkip:
		metrics.SkipsTotal.WithLabelValues(d.Symbol, d.Reason).Inc()
	case strategy.KindOpen:
		metrics.OrdersTotal.WithLabelValues(d.Symbol, string(execution.Buy)).Inc()
	case strategy.KindClose:
		metrics.OrdersTotal.WithLabelValues(d.Symbol, string(execution.Sell)).Inc()
		metrics.TradesClosed.WithLabelValues(d.Symbol, d.Exit).Inc()
		metrics.RealizedPnL.Set(e.riskMgr.RealizedPnL())
	}
	metrics.OpenPositions.Set(float64(len(e.sm.OpenPositions())))
}
