// Binary backtest replays a recorded quote file through the strategy core
// and prints the session summary. Time advances with the recording, so
// cooldowns and trailing behave as they would have live.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mike-sudo1/TradingBot2/internal/config"
	"github.com/Mike-sudo1/TradingBot2/internal/exchange"
	"github.com/Mike-sudo1/TradingBot2/internal/execution"
	"github.com/Mike-sudo1/TradingBot2/internal/portfolio"
	"github.com/Mike-sudo1/TradingBot2/internal/risk"
	"github.com/Mike-sudo1/TradingBot2/internal/scoring"
	sig "github.com/Mike-sudo1/TradingBot2/internal/signal"
	"github.com/Mike-sudo1/TradingBot2/internal/strategy"
	"github.com/Mike-sudo1/TradingBot2/internal/util"
)

// replayClock tracks the timestamp of the quote currently being replayed.
type replayClock struct{ t time.Time }

func (c *replayClock) now() time.Time { return c.t }

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML configuration")
		dataPath   = flag.String("data", "", "CSV quote recording: ts,symbol,bid,ask,volume")
		outPath    = flag.String("out", "", "optional CSV path for the replayed trades")
	)
	flag.Parse()

	log := util.NewLogger("info")
	if *dataPath == "" {
		log.Fatal().Msg("-data is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}

	clock := &replayClock{}
	riskMgr := risk.NewManager(risk.Params{
		DailyMaxDrawdown: cfg.Risk.DailyMaxDrawdown,
		CooldownSec:      cfg.Risk.CooldownSec,
		TrailStartBps:    cfg.Trading.TrailStartBps,
		TrailStepBps:     cfg.Trading.TrailStepBps,
	}, clock.now)
	ledger := portfolio.NewLedger()

	ticks, symbols, err := readRecording(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dataPath).Msg("read recording")
	}
	// Offline replay uses permissive default filters rather than hitting
	// the exchange; quantization still applies.
	filtersMap := make(map[string]exchange.SymbolFilters, len(symbols))
	for _, sym := range symbols {
		filtersMap[sym] = exchange.SymbolFilters{TickSize: 0.01, StepSize: 0.00001, MinQty: 0.00001, MinNotional: cfg.Trading.MinNotional}
	}
	filters := exchange.NewFilterCache(filtersMap)

	sim := execution.NewSimGateway(filters, cfg.Trading.FeeTaker, zerolog.Nop())
	sm := strategy.New(strategy.Params{
		MaxCapital:       cfg.Trading.MaxCapital,
		FeeTaker:         cfg.Trading.FeeTaker,
		ProfitTakeBps:    cfg.Trading.ProfitTakeBps,
		StopLossBps:      cfg.Trading.StopLossBps,
		MinNotionalFloor: cfg.Trading.MinNotional,
		MaxOpenTrades:    cfg.Trading.MaxOpenTrades,
		EntryMinGrade:    scoring.Grade(cfg.Trading.EntryMinGrade),
		EntryMinScore:    cfg.Trading.EntryMinScore,
		RiskUnit:         cfg.Trading.RiskUnit,
	}, filters, riskMgr, sim, ledger, nil, zerolog.Nop(), clock.now)

	ctx := context.Background()
	for _, tick := range ticks {
		clock.t = tick.Ts
		sim.ObserveQuote(tick.Symbol, tick.Mid())
		sm.OnTick(ctx, tick)
	}

	sum := ledger.Summary()
	log.Info().Int("ticks", len(ticks)).Strs("symbols", symbols).
		Int("trades", sum.Trades).Int("wins", sum.Wins).Int("losses", sum.Losses).
		Float64("win_rate", sum.WinRate).Float64("realized", sum.Realized).
		Bool("halted", riskMgr.Halted()).Msg("replay finished")

	if *outPath != "" {
		if err := ledger.ExportCSV(*outPath); err != nil {
			log.Fatal().Err(err).Str("path", *outPath).Msg("export trades")
		}
		log.Info().Str("path", *outPath).Msg("trades exported")
	}
}

// readRecording loads the full quote file, tolerating a header row. The
// timestamp column accepts RFC 3339 or Unix milliseconds.
func readRecording(path string) ([]sig.Tick, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 5

	var ticks []sig.Tick
	seen := make(map[string]bool)
	var symbols []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if row[0] == "ts" {
			continue
		}
		ts, err := parseTimestamp(row[0])
		if err != nil {
			return nil, nil, err
		}
		symbol := strings.ToUpper(strings.TrimSpace(row[1]))
		bid, _ := strconv.ParseFloat(row[2], 64)
		ask, _ := strconv.ParseFloat(row[3], 64)
		volume, _ := strconv.ParseFloat(row[4], 64)

		tick := sig.Tick{Symbol: symbol, Bid: bid, Ask: ask, Volume: volume, Ts: ts}
		if !tick.Valid() {
			continue
		}
		ticks = append(ticks, tick)
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	return ticks, symbols, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
