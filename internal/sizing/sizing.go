// Package sizing maps desired capital to exchange-valid order quantities.
//
// All rounding is floor quantization over exact decimals so a result can
// never exceed the available capital or land between exchange increments.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/Mike-sudo1/TradingBot2/internal/exchange"
)

// Reason explains why sizing produced a zero quantity. An empty reason with
// a positive quantity is the only success signal.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonMinQty      Reason = "min_qty"
	ReasonMinNotional Reason = "min_notional"
)

// notionalEpsilon absorbs float representation error on the notional check.
const notionalEpsilon = 1e-8

// QuantizeFloor floors value to an integer multiple of increment using
// decimal arithmetic. A zero increment means no quantization.
func QuantizeFloor(value, increment float64) float64 {
	if increment == 0 {
		return value
	}
	dv := decimal.NewFromFloat(value)
	di := decimal.NewFromFloat(increment)
	steps := dv.Div(di).Truncate(0)
	out, _ := steps.Mul(di).Float64()
	return out
}

// FormatQty floors a quantity to the symbol's step size.
func FormatQty(qty float64, f exchange.SymbolFilters) float64 {
	return QuantizeFloor(qty, f.StepSize)
}

// FormatPrice floors a price to the symbol's tick size.
func FormatPrice(px float64, f exchange.SymbolFilters) float64 {
	return QuantizeFloor(px, f.TickSize)
}

// MinNotional returns the effective minimum order value: the exchange filter
// when present, otherwise the configured floor.
func MinNotional(f exchange.SymbolFilters, floor float64) float64 {
	if f.MinNotional > 0 {
		return f.MinNotional
	}
	return floor
}

// NotionalOK reports whether px*qty clears the minimum order value.
func NotionalOK(px, qty float64, f exchange.SymbolFilters, floor float64) bool {
	return px*qty >= MinNotional(f, floor)-notionalEpsilon
}

// SizePosition converts capital at a reference price into a filter-valid
// quantity. On failure it returns zero with the reject reason.
//
// The fallback path that re-derives quantity from the minimum notional
// re-validates minQty as well: a recomputed quantity must satisfy every
// filter, not only the one that triggered the recomputation.
func SizePosition(refPrice, maxCapital float64, f exchange.SymbolFilters, minNotionalFloor float64) (float64, Reason) {
	if refPrice <= 0 {
		return 0, ReasonMinNotional
	}

	qty := QuantizeFloor(maxCapital/refPrice, f.StepSize)
	if qty < f.MinQty {
		qty = QuantizeFloor(f.MinQty, f.StepSize)
		if qty < f.MinQty {
			// Step size coarser than the minimum itself; nothing fits.
			return 0, ReasonMinQty
		}
	}

	if NotionalOK(refPrice, qty, f, minNotionalFloor) {
		return qty, ReasonNone
	}

	qty = QuantizeFloor(MinNotional(f, minNotionalFloor)/refPrice, f.StepSize)
	if qty < f.MinQty || !NotionalOK(refPrice, qty, f, minNotionalFloor) {
		return 0, ReasonMinNotional
	}
	return qty, ReasonNone
}
