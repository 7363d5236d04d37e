// Package exchange hosts connectors for the spot venue: trading-rule
// metadata over REST and the best-bid/ask websocket feed.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
)

// SymbolFilters holds the exchange-imposed quantization rules for one symbol.
// All four fields must be present before the symbol is tradable.
type SymbolFilters struct {
	TickSize    float64
	StepSize    float64
	MinQty      float64
	MinNotional float64
}

// Complete reports whether every filter field carries a usable value.
func (f SymbolFilters) Complete() bool {
	return f.TickSize > 0 && f.StepSize > 0 && f.MinQty > 0 && f.MinNotional > 0
}

// FilterCache is an immutable symbol -> filters lookup built at startup.
type FilterCache struct {
	filters map[string]SymbolFilters
}

// NewFilterCache copies the provided map so later mutation of the argument
// cannot leak into the cache.
func NewFilterCache(filters map[string]SymbolFilters) *FilterCache {
	out := make(map[string]SymbolFilters, len(filters))
	for sym, f := range filters {
		out[sym] = f
	}
	return &FilterCache{filters: out}
}

// Get returns the filters for a symbol and whether they are known.
func (c *FilterCache) Get(symbol string) (SymbolFilters, bool) {
	f, ok := c.filters[symbol]
	return f, ok
}

// Symbols lists the cached symbols in deterministic order.
func (c *FilterCache) Symbols() []string {
	out := make([]string, 0, len(c.filters))
	for sym := range c.filters {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType  string `json:"filterType"`
			TickSize    string `json:"tickSize"`
			StepSize    string `json:"stepSize"`
			MinQty      string `json:"minQty"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// FetchSymbolFilters pulls /api/v3/exchangeInfo and builds filters for the
// watched symbols. Symbols with incomplete metadata are returned in missing
// rather than the filter map; the caller decides whether losing them is
// fatal for the whole process.
func FetchSymbolFilters(ctx context.Context, client *http.Client, baseURL string, symbols []string) (map[string]SymbolFilters, []string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v3/exchangeInfo", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build exchangeInfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch exchangeInfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("exchangeInfo status %d: %s", resp.StatusCode, string(body))
	}

	var payload exchangeInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("decode exchangeInfo: %w", err)
	}

	wanted := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		wanted[sym] = struct{}{}
	}

	filters := make(map[string]SymbolFilters, len(symbols))
	for _, entry := range payload.Symbols {
		if _, ok := wanted[entry.Symbol]; !ok {
			continue
		}
		var f SymbolFilters
		for _, fl := range entry.Filters {
			switch fl.FilterType {
			case "PRICE_FILTER":
				f.TickSize = parseFloat(fl.TickSize)
			case "LOT_SIZE":
				f.StepSize = parseFloat(fl.StepSize)
				f.MinQty = parseFloat(fl.MinQty)
			case "NOTIONAL", "MIN_NOTIONAL":
				if f.MinNotional == 0 {
					f.MinNotional = parseFloat(fl.MinNotional)
				}
			}
		}
		if f.Complete() {
			filters[entry.Symbol] = f
		}
	}

	var missing []string
	for _, sym := range symbols {
		if _, ok := filters[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	sort.Strings(missing)
	return filters, missing, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
