// Package portfolio keeps the session trade history and summary accounting.
package portfolio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/Mike-sudo1/TradingBot2/internal/execution"
)

// Trade is one recorded fill plus the PnL it realized (zero for entries).
type Trade struct {
	Ts     time.Time
	Symbol string
	Side   execution.Side
	Qty    float64
	Price  float64
	Fee    float64
	PnL    float64
}

// Summary aggregates the session's closed-trade statistics.
type Summary struct {
	Trades   int
	Realized float64
	Wins     int
	Losses   int
	WinRate  float64
}

// Ledger stores trades in memory for the lifetime of the session. It is
// safe for concurrent snapshots while the engine records.
type Ledger struct {
	mu     sync.Mutex
	trades []Trade
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends a fill with its realized PnL contribution.
func (l *Ledger) Record(fill execution.Fill, pnl float64) {
	l.mu.Lock()
	l.trades = append(l.trades, Trade{
		Ts:     fill.Ts,
		Symbol: fill.Symbol,
		Side:   fill.Side,
		Qty:    fill.Qty,
		Price:  fill.Price,
		Fee:    fill.Fee,
		PnL:    pnl,
	})
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded trades.
func (l *Ledger) Snapshot() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Summary folds the trade list into session statistics. Only exits carry
// PnL; entries count toward the trade total but not wins/losses.
func (l *Ledger) Summary() Summary {
	trades := l.Snapshot()
	s := Summary{Trades: len(trades)}
	closed := 0
	for _, t := range trades {
		s.Realized += t.PnL
		if t.Side != execution.Sell {
			continue
		}
		closed++
		if t.PnL > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	if closed > 0 {
		s.WinRate = float64(s.Wins) / float64(closed)
	}
	return s
}

// ExportCSV writes the trade history to path, one row per fill.
func (l *Ledger) ExportCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"ts", "symbol", "side", "qty", "price", "fee", "pnl"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range l.Snapshot() {
		row := []string{
			t.Ts.UTC().Format(time.RFC3339Nano),
			t.Symbol,
			string(t.Side),
			strconv.FormatFloat(t.Qty, 'f', -1, 64),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatFloat(t.Fee, 'f', -1, 64),
			strconv.FormatFloat(t.PnL, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
