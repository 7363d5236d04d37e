package exchange

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mike-sudo1/TradingBot2/internal/metrics"
	"github.com/Mike-sudo1/TradingBot2/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic quotes (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBinance streams live bookTicker quotes from Binance public websockets.
	ProviderBinance = "binance"
)

// ErrStreamExhausted reports that the reconnect budget ran out; the caller
// decides whether that terminates the process.
var ErrStreamExhausted = errors.New("stream: reconnect budget exhausted")

// feedState tracks the ingestion connection lifecycle for logging.
type feedState string

const (
	stateDisconnected feedState = "disconnected"
	stateConnecting   feedState = "connecting"
	stateStreaming    feedState = "streaming"
	stateReconnecting feedState = "reconnecting"
)

const (
	defaultStreamURL    = "wss://stream.binance.com:9443/stream"
	defaultBaseBackoff  = time.Second
	defaultMaxBackoff   = 30 * time.Second
	defaultMaxAttempts  = 5
	defaultReadTimeout  = 30 * time.Second
	defaultStubInterval = 500 * time.Millisecond
)

// Feed maintains a live best-bid/ask subscription with automatic reconnect
// and bounded exponential backoff, delivering ticks in arrival order.
type Feed struct {
	provider     string
	symbols      []string
	log          zerolog.Logger
	streamURL    string
	baseBackoff  time.Duration
	maxBackoff   time.Duration
	maxAttempts  int
	readTimeout  time.Duration
	stubInterval time.Duration
	state        feedState
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithStreamURL overrides the websocket endpoint (tests point this at a local server).
func WithStreamURL(u string) Option {
	return func(f *Feed) {
		if u != "" {
			f.streamURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithBackoff tunes the reconnect policy.
func WithBackoff(base, max time.Duration, attempts int) Option {
	return func(f *Feed) {
		if base > 0 {
			f.baseBackoff = base
		}
		if max > 0 {
			f.maxBackoff = max
		}
		if attempts > 0 {
			f.maxAttempts = attempts
		}
	}
}

// WithReadTimeout bounds the liveness window on the websocket.
func WithReadTimeout(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.readTimeout = d
		}
	}
}

// WithStubInterval overrides the synthetic tick cadence.
func WithStubInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.stubInterval = d
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:     strings.ToLower(provider),
		log:          log,
		streamURL:    defaultStreamURL,
		baseBackoff:  defaultBaseBackoff,
		maxBackoff:   defaultMaxBackoff,
		maxAttempts:  defaultMaxAttempts,
		readTimeout:  defaultReadTimeout,
		stubInterval: defaultStubInterval,
		state:        stateDisconnected,
	}
	f.setSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) setSymbols(symbols []string) {
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) setState(next feedState) {
	if f.state == next {
		return
	}
	f.log.Debug().Str("from", string(f.state)).Str("to", string(next)).Msg("stream state")
	f.state = next
}

// Run pushes ticks onto the provided channel until the context is canceled
// or the reconnect budget is exhausted.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Tick) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- signal.Tick) error {
	ticker := time.NewTicker(f.stubInterval)
	defer ticker.Stop()

	px := 100.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px += 0.1
			for _, s := range f.symbols {
				tick := signal.Tick{Symbol: s, Bid: px - 0.01, Ask: px + 0.01, Ts: ts}
				select {
				case out <- tick:
					metrics.TicksTotal.WithLabelValues(s).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
