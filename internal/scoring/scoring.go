// Package scoring maintains per-symbol rolling price history and reduces it
// to a composite quality score with a discrete A/B/C grade.
package scoring

import "math"

// Grade buckets a composite score; A outranks B outranks C.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

// Rank orders grades for threshold comparison; unknown grades rank zero.
func (g Grade) Rank() int {
	switch g {
	case GradeA:
		return 3
	case GradeB:
		return 2
	case GradeC:
		return 1
	}
	return 0
}

// Result is the per-tick signal output, recomputed from history every tick.
type Result struct {
	Symbol   string
	Score    float64
	Grade    Grade
	Trend    bool
	MACDHist float64
	RSI      float64
	VWAPProx float64
	Spread   float64
	Volume   float64
}

// Config sets indicator lookbacks. Zero values take the defaults.
type Config struct {
	FastSpan    int // MACD fast EMA, default 12
	SlowSpan    int // MACD slow EMA, default 26
	SignalSpan  int // MACD signal EMA, default 9
	RSIPeriod   int // default 14
	TrendWindow int // long SMA, default 200
	MinSamples  int // ticks required before scoring, default 30
}

func (c Config) withDefaults() Config {
	if c.FastSpan == 0 {
		c.FastSpan = 12
	}
	if c.SlowSpan == 0 {
		c.SlowSpan = 26
	}
	if c.SignalSpan == 0 {
		c.SignalSpan = 9
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = 14
	}
	if c.TrendWindow == 0 {
		c.TrendWindow = 200
	}
	if c.MinSamples == 0 {
		c.MinSamples = 30
	}
	return c
}

// History accumulates one symbol's tick stream and the incremental indicator
// state derived from it. Memory is bounded: only the trend window is
// retained sample-by-sample, everything else is running state.
type History struct {
	cfg Config

	samples  int
	last     float64
	trendWin *window

	emaFast   ema
	emaSlow   ema
	emaSignal ema
	emaGain   ema
	emaLoss   ema

	cumPV  float64
	cumVol float64

	macdHist float64
	rsi      float64
}

// NewHistory builds empty indicator state for one symbol.
func NewHistory(cfg Config) *History {
	cfg = cfg.withDefaults()
	return &History{
		cfg:       cfg,
		trendWin:  newWindow(cfg.TrendWindow),
		emaFast:   newEMA(cfg.FastSpan),
		emaSlow:   newEMA(cfg.SlowSpan),
		emaSignal: newEMA(cfg.SignalSpan),
		emaGain:   newEMA(cfg.RSIPeriod),
		emaLoss:   newEMA(cfg.RSIPeriod),
	}
}

// Update appends one quote and recomputes the composite score. The second
// return value is false while fewer than MinSamples ticks have been seen.
func (h *History) Update(symbol string, bid, ask, volume float64) (Result, bool) {
	mid := (bid + ask) / 2
	h.observe(mid, volume)
	if h.samples < h.cfg.MinSamples {
		return Result{}, false
	}

	spread := 0.0
	if mid > 0 {
		spread = (ask - bid) / mid
	}
	vwapProx := h.vwapProximity(mid)
	trend := h.trendWin.full() && mid > h.trendWin.mean()

	const volumeTerm = 1.0
	score := 0.0
	if trend {
		score += 1
	}
	score += math.Max(h.macdHist, 0)
	score += clampUnit(1 - math.Abs(h.rsi-50)/50)
	score += clampUnit(1 - vwapProx)
	score += clampUnit(1 - spread)
	score += volumeTerm

	grade := GradeC
	switch {
	case score > 4:
		grade = GradeA
	case score > 3:
		grade = GradeB
	}

	return Result{
		Symbol:   symbol,
		Score:    score,
		Grade:    grade,
		Trend:    trend,
		MACDHist: h.macdHist,
		RSI:      h.rsi,
		VWAPProx: vwapProx,
		Spread:   spread,
		Volume:   volumeTerm,
	}, true
}

func (h *History) observe(mid, volume float64) {
	if h.samples > 0 {
		delta := mid - h.last
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain := h.emaGain.update(gain)
		avgLoss := h.emaLoss.update(loss)
		if avgLoss == 0 {
			h.rsi = 100
		} else {
			rs := avgGain / avgLoss
			h.rsi = 100 - 100/(1+rs)
		}
	}

	fast := h.emaFast.update(mid)
	slow := h.emaSlow.update(mid)
	macdLine := fast - slow
	sigLine := h.emaSignal.update(macdLine)
	h.macdHist = macdLine - sigLine

	h.trendWin.push(mid)
	h.cumPV += mid * volume
	h.cumVol += volume

	h.last = mid
	h.samples++
}

// vwapProximity returns |mid - vwap| / vwap, or zero contribution distance
// when no volume has been observed yet (proximity term then adds nothing).
func (h *History) vwapProximity(mid float64) float64 {
	if h.cumVol == 0 {
		return 1 // undefined VWAP: the proximity term contributes zero
	}
	vwap := h.cumPV / h.cumVol
	if vwap == 0 {
		return 1
	}
	return math.Abs(mid-vwap) / vwap
}

// Samples reports how many ticks have been observed.
func (h *History) Samples() int { return h.samples }

// MACDHist exposes the latest momentum histogram value.
func (h *History) MACDHist() float64 { return h.macdHist }

func clampUnit(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	return x
}
