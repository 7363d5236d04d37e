package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mike-sudo1/TradingBot2/internal/exchange"
	"github.com/Mike-sudo1/TradingBot2/internal/sizing"
)

// SimGateway fills orders against the latest observed quote without touching
// the exchange. Prices are floor-formatted to the symbol tick and a taker
// fee is charged so simulated PnL matches what live trading would see.
type SimGateway struct {
	filters  *exchange.FilterCache
	feeTaker float64
	log      zerolog.Logger

	mu     sync.RWMutex
	quotes map[string]float64
}

// NewSimGateway builds a simulator charging feeTaker per fill.
func NewSimGateway(filters *exchange.FilterCache, feeTaker float64, log zerolog.Logger) *SimGateway {
	return &SimGateway{
		filters:  filters,
		feeTaker: feeTaker,
		log:      log,
		quotes:   make(map[string]float64),
	}
}

// Name identifies the gateway in logs.
func (g *SimGateway) Name() string { return "sim" }

// ObserveQuote records the most recent price for a symbol; the engine feeds
// this from the tick stream so market orders fill at the live quote.
func (g *SimGateway) ObserveQuote(symbol string, price float64) {
	if price <= 0 {
		return
	}
	g.mu.Lock()
	g.quotes[symbol] = price
	g.mu.Unlock()
}

// Price returns the last observed quote for the symbol.
func (g *SimGateway) Price(_ context.Context, symbol string) (float64, error) {
	g.mu.RLock()
	px, ok := g.quotes[symbol]
	g.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no quote observed for %s", symbol)
	}
	return px, nil
}

// MarketOrder simulates an immediate fill at the current quote.
func (g *SimGateway) MarketOrder(ctx context.Context, symbol string, side Side, qty float64) (Fill, error) {
	px, err := g.Price(ctx, symbol)
	if err != nil {
		return Fill{}, err
	}
	return g.Simulate(symbol, side, qty, px), nil
}

// Execute fills at the caller's reference price, ignoring the quote cache.
// The strategy passes the ask for buys and the mid for sells.
func (g *SimGateway) Execute(_ context.Context, symbol string, side Side, qty, refPrice float64) (Fill, error) {
	if refPrice <= 0 {
		return Fill{}, fmt.Errorf("invalid reference price %.8f for %s", refPrice, symbol)
	}
	return g.Simulate(symbol, side, qty, refPrice), nil
}

// Simulate builds a fill at the supplied price without any quote lookup.
func (g *SimGateway) Simulate(symbol string, side Side, qty, price float64) Fill {
	if f, ok := g.filters.Get(symbol); ok {
		price = sizing.FormatPrice(price, f)
	}
	notional := qty * price
	fill := Fill{
		Symbol:   symbol,
		Side:     side,
		Qty:      qty,
		Price:    price,
		Notional: notional,
		Fee:      notional * g.feeTaker,
		Executed: false,
		Ts:       time.Now().UTC(),
	}
	g.log.Debug().Str("sym", symbol).Str("side", string(side)).Float64("qty", qty).Float64("px", price).Msg("simulated fill")
	return fill
}
