// Package signal standardizes payloads shared between data ingestion and strategy layers.
package signal

import "time"

// Tick models one best-bid/ask quote update for a symbol.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Volume float64
	Ts     time.Time
}

// Mid returns the mid-market price for the quote.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Spread returns the bid/ask spread as a fraction of the mid price.
func (t Tick) Spread() float64 {
	mid := t.Mid()
	if mid == 0 {
		return 0
	}
	return (t.Ask - t.Bid) / mid
}

// Valid reports whether the quote carries usable prices.
func (t Tick) Valid() bool {
	return t.Symbol != "" && t.Bid > 0 && t.Ask > 0 && t.Ask >= t.Bid
}
