// Package risk owns the session-wide drawdown gate, the entry cooldown, and
// the trailing-stop ratchet applied to open positions.
package risk

import (
	"math"
	"time"
)

// Position is one open long: entry, protective levels, and size. The stop
// only ever ratchets upward while the position is open.
type Position struct {
	Symbol     string
	Side       string
	EntryPrice float64
	Stop       float64
	TakeProfit float64
	Qty        float64
	OpenedAt   time.Time
}

// Params configures the session risk limits.
type Params struct {
	DailyMaxDrawdown float64
	CooldownSec      int
	TrailStartBps    float64
	TrailStepBps     float64
}

// Manager tracks cumulative realized PnL against its running peak and gates
// new entries behind a cooldown. One instance per session; mutated only by
// the engine loop.
type Manager struct {
	params Params
	now    func() time.Time

	cumulativePnL float64
	peakPnL       float64
	cooldownUntil time.Time
	halted        bool
}

// NewManager builds a Manager; nowFn may be nil for wall-clock time.
func NewManager(params Params, nowFn func() time.Time) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Manager{params: params, now: nowFn}
}

// UpdatePnL folds one closed trade into the session totals. Breaching the
// daily max drawdown halts entries for the remainder of the session.
// Returns true when this update tripped the halt.
func (m *Manager) UpdatePnL(pnl float64) bool {
	m.cumulativePnL += pnl
	m.peakPnL = math.Max(m.peakPnL, m.cumulativePnL)
	if !m.halted && m.cumulativePnL-m.peakPnL <= -m.params.DailyMaxDrawdown {
		m.halted = true
		return true
	}
	return false
}

// CanEnter reports whether a new entry is currently permitted. It never
// blocks management of positions that are already open.
func (m *Manager) CanEnter() bool {
	if m.halted {
		return false
	}
	return !m.now().Before(m.cooldownUntil)
}

// StartCooldown blocks new entries for the configured dwell time. Called
// after every exit, winning or losing.
func (m *Manager) StartCooldown() {
	m.cooldownUntil = m.now().Add(time.Duration(m.params.CooldownSec) * time.Second)
}

// Halted reports whether the drawdown kill switch has fired.
func (m *Manager) Halted() bool { return m.halted }

// RealizedPnL returns cumulative session PnL.
func (m *Manager) RealizedPnL() float64 { return m.cumulativePnL }

// Drawdown returns the current distance below the session peak (<= 0).
func (m *Manager) Drawdown() float64 { return m.cumulativePnL - m.peakPnL }

// TrailingStop raises the position stop once the gain exceeds the trail
// start threshold. The stop never decreases.
func (m *Manager) TrailingStop(pos *Position, currentPrice float64) float64 {
	if pos == nil || pos.EntryPrice == 0 {
		return 0
	}
	gainBps := (currentPrice - pos.EntryPrice) / pos.EntryPrice * 10000
	if gainBps > m.params.TrailStartBps {
		candidate := currentPrice * (1 - m.params.TrailStepBps/10000)
		pos.Stop = math.Max(pos.Stop, candidate)
	}
	return pos.Stop
}
