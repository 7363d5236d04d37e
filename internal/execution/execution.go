// Package execution handles order lifecycle and interaction with the venue.
package execution

import (
	"context"
	"time"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a closing order.
	Sell Side = "SELL"
)

// Fill is the immutable outcome of one executed (or simulated) order.
type Fill struct {
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Qty      float64   `json:"qty"`
	Price    float64   `json:"price"`
	Notional float64   `json:"notional"`
	Fee      float64   `json:"fee"`
	Executed bool      `json:"executed"` // true = real order hit the exchange
	Ts       time.Time `json:"ts"`
}

// Gateway turns an approved (symbol, side, quantity) into a fill, either
// simulated against the current quote or placed live on the exchange. A
// returned error means no position change happened: a failed order must
// never be recorded as a filled position.
type Gateway interface {
	Name() string
	Price(ctx context.Context, symbol string) (float64, error)
	MarketOrder(ctx context.Context, symbol string, side Side, qty float64) (Fill, error)
}
