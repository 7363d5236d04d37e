package execution

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderTimeout bounds how long one placement may block; a timed-out order is
// a failed execution, retries are the operator's call.
const orderTimeout = 10 * time.Second

// BinanceGateway places signed market orders against the Binance spot REST
// API. It only implements what the engine needs: quote lookup and market
// order placement.
type BinanceGateway struct {
	baseURL   string
	apiKey    string
	apiSecret string
	hc        *http.Client
	log       zerolog.Logger
}

// NewBinanceGateway wires a live order gateway from API credentials.
func NewBinanceGateway(baseURL, apiKey, apiSecret string, log zerolog.Logger) *BinanceGateway {
	return &BinanceGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		hc:        &http.Client{Timeout: orderTimeout},
		log:       log,
	}
}

// Name identifies the gateway in logs.
func (g *BinanceGateway) Name() string { return "binance" }

// Price fetches the current ticker price for a symbol.
func (g *BinanceGateway) Price(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", g.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := g.hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("ticker %s status %d: %s", symbol, resp.StatusCode, string(body))
	}
	var payload struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	px, err := strconv.ParseFloat(payload.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ticker price %q: %w", payload.Price, err)
	}
	return px, nil
}

type binanceOrderResponse struct {
	Symbol              string `json:"symbol"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Fills               []struct {
		Price      string `json:"price"`
		Qty        string `json:"qty"`
		Commission string `json:"commission"`
	} `json:"fills"`
}

// Execute satisfies the strategy adapter. Live orders are matched by the
// exchange, so the reference price is ignored.
func (g *BinanceGateway) Execute(ctx context.Context, symbol string, side Side, qty, _ float64) (Fill, error) {
	return g.MarketOrder(ctx, symbol, side, qty)
}

// MarketOrder submits a signed MARKET order and reports the realized fill.
func (g *BinanceGateway) MarketOrder(ctx context.Context, symbol string, side Side, qty float64) (Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))
	params.Set("newClientOrderId", uuid.NewString())
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")
	query := params.Encode()
	query += "&signature=" + g.sign(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/api/v3/order", strings.NewReader(query))
	if err != nil {
		return Fill{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-MBX-APIKEY", g.apiKey)

	resp, err := g.hc.Do(req)
	if err != nil {
		return Fill{}, fmt.Errorf("place order %s %s: %w", side, symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Fill{}, fmt.Errorf("order %s %s status %d: %s", side, symbol, resp.StatusCode, string(body))
	}

	var payload binanceOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Fill{}, fmt.Errorf("decode order response: %w", err)
	}
	return g.toFill(symbol, side, qty, payload), nil
}

func (g *BinanceGateway) toFill(symbol string, side Side, requestedQty float64, payload binanceOrderResponse) Fill {
	executedQty := parseFloat(payload.ExecutedQty)
	if executedQty == 0 {
		executedQty = requestedQty
	}
	quoteQty := parseFloat(payload.CummulativeQuoteQty)

	var fee float64
	var firstFillPx float64
	for i, f := range payload.Fills {
		if i == 0 {
			firstFillPx = parseFloat(f.Price)
		}
		fee += parseFloat(f.Commission)
	}

	avgPrice := firstFillPx
	if executedQty > 0 && quoteQty > 0 {
		avgPrice = quoteQty / executedQty
	}

	fill := Fill{
		Symbol:   symbol,
		Side:     side,
		Qty:      executedQty,
		Price:    avgPrice,
		Notional: executedQty * avgPrice,
		Fee:      fee,
		Executed: true,
		Ts:       time.Now().UTC(),
	}
	g.log.Info().Str("sym", symbol).Str("side", string(side)).
		Float64("qty", fill.Qty).Float64("px", fill.Price).Float64("fee", fill.Fee).
		Msg("live order filled")
	return fill
}

func (g *BinanceGateway) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(g.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
