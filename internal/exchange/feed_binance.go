package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mike-sudo1/TradingBot2/internal/metrics"
	"github.com/Mike-sudo1/TradingBot2/internal/signal"
)

type bookTickerEnvelope struct {
	Stream string         `json:"stream"`
	Data   bookTickerData `json:"data"`
}

type bookTickerData struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	BidQty string `json:"B"`
	Ask    string `json:"a"`
	AskQty string `json:"A"`
}

func (f *Feed) runBinance(ctx context.Context, out chan<- signal.Tick) error {
	if len(f.symbols) == 0 {
		return fmt.Errorf("binance feed requires at least one symbol")
	}

	streams := make([]string, len(f.symbols))
	for i, sym := range f.symbols {
		streams[i] = strings.ToLower(sym) + "@bookTicker"
	}
	url := fmt.Sprintf("%s?streams=%s", f.streamURL, strings.Join(streams, "/"))

	backoff := f.baseBackoff
	attempts := 0
	var lastErr error

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.setState(stateConnecting)
		delivered, err := f.consumeStream(ctx, url, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		// A session that streamed data resets the consecutive-failure budget.
		if delivered > 0 {
			attempts = 0
			backoff = f.baseBackoff
		}
		attempts++
		if attempts >= f.maxAttempts {
			f.setState(stateDisconnected)
			return fmt.Errorf("%w after %d attempts: %v", ErrStreamExhausted, attempts, lastErr)
		}

		f.setState(stateReconnecting)
		metrics.StreamReconnects.Inc()
		f.log.Warn().Err(err).Int("attempt", attempts).Dur("backoff", backoff).Msg("stream disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > f.maxBackoff {
			backoff = f.maxBackoff
		}
	}
}

// consumeStream owns one websocket session: dial, keepalive, and the read
// loop. It returns how many ticks were delivered alongside the terminal
// error for the session.
func (f *Feed) consumeStream(ctx context.Context, url string, out chan<- signal.Tick) (int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	f.setState(stateStreaming)
	f.log.Info().Strs("symbols", f.symbols).Msg("connected market data stream")

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(f.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.readTimeout))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(f.readTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(f.readTimeout))

		var env bookTickerEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode stream message")
			continue
		}
		tick, ok := parseBookTicker(env.Data)
		if !ok {
			continue
		}

		select {
		case out <- tick:
			metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
			delivered++
		case <-ctx.Done():
			return delivered, ctx.Err()
		}
	}
}

// parseBookTicker converts one bookTicker payload into a Tick. Quote sizes
// are not treated as traded volume; the session VWAP only accumulates real
// volume, which replay data can supply.
func parseBookTicker(d bookTickerData) (signal.Tick, bool) {
	bid, err := strconv.ParseFloat(d.Bid, 64)
	if err != nil {
		return signal.Tick{}, false
	}
	ask, err := strconv.ParseFloat(d.Ask, 64)
	if err != nil {
		return signal.Tick{}, false
	}
	tick := signal.Tick{
		Symbol: strings.ToUpper(d.Symbol),
		Bid:    bid,
		Ask:    ask,
		Ts:     time.Now().UTC(),
	}
	if !tick.Valid() {
		return signal.Tick{}, false
	}
	return tick, true
}
