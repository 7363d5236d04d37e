// Binary tradebot streams spot quotes for a watchlist and trades them with
// the composite-signal strategy, either simulated (default) or live.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mike-sudo1/TradingBot2/internal/config"
	"github.com/Mike-sudo1/TradingBot2/internal/engine"
	"github.com/Mike-sudo1/TradingBot2/internal/exchange"
	"github.com/Mike-sudo1/TradingBot2/internal/execution"
	"github.com/Mike-sudo1/TradingBot2/internal/metrics"
	"github.com/Mike-sudo1/TradingBot2/internal/notify"
	"github.com/Mike-sudo1/TradingBot2/internal/portfolio"
	"github.com/Mike-sudo1/TradingBot2/internal/risk"
	"github.com/Mike-sudo1/TradingBot2/internal/scoring"
	sig "github.com/Mike-sudo1/TradingBot2/internal/signal"
	"github.com/Mike-sudo1/TradingBot2/internal/strategy"
	"github.com/Mike-sudo1/TradingBot2/internal/util"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML configuration")
		live       = flag.Bool("live", false, "submit real orders instead of simulating")
		debug      = flag.Bool("debug", false, "enable per-tick decision logging")
		watchlist  = flag.String("watchlist", "", "comma-separated symbol override, e.g. BTCUSDT,ETHUSDT")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallbackLog := util.NewLogger("info")
		fallbackLog.Fatal().Err(err).Str("path", *configPath).Msg("load config")
	}
	if *live {
		cfg.Trading.Live = true
	}
	if *debug {
		cfg.Trading.Debug = true
		cfg.App.LogLevel = "debug"
	}
	if cfg.Trading.TradesOnlyLogs && !cfg.Trading.Debug {
		cfg.App.LogLevel = "info"
	}
	if *watchlist != "" {
		cfg.Exchange.Symbols = nil
		for _, sym := range strings.Split(*watchlist, ",") {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				cfg.Exchange.Symbols = append(cfg.Exchange.Symbols, sym)
			}
		}
	}

	log := util.NewLogger(cfg.App.LogLevel)
	if cfg.App.LogDir != "" {
		fileLog, closer, err := util.NewFileLogger(cfg.App.LogLevel, cfg.App.LogDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.App.LogDir).Msg("file logging unavailable, stdout only")
		} else {
			defer closer.Close()
			log = fileLog
		}
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Exchange filters are mandatory: a symbol without complete filters
	// cannot be sized safely, so it is dropped from the session.
	filtersMap, missing, err := exchange.FetchSymbolFilters(ctx, http.DefaultClient, cfg.Exchange.RestURL, cfg.Exchange.Symbols)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch exchange filters")
	}
	for _, sym := range missing {
		log.Warn().Str("sym", sym).Msg("no usable exchange filters, symbol excluded")
	}
	if len(filtersMap) == 0 {
		log.Fatal().Msg("no tradable symbols after filter validation")
	}
	filters := exchange.NewFilterCache(filtersMap)
	symbols := filters.Symbols()

	riskMgr := risk.NewManager(risk.Params{
		DailyMaxDrawdown: cfg.Risk.DailyMaxDrawdown,
		CooldownSec:      cfg.Risk.CooldownSec,
		TrailStartBps:    cfg.Trading.TrailStartBps,
		TrailStepBps:     cfg.Trading.TrailStepBps,
	}, nil)
	ledger := portfolio.NewLedger()

	var notifier strategy.Notifier
	telegram := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	if cfg.Telegram.Enabled && telegram.Enabled() {
		notifier = telegram
	}

	var adapter strategy.Adapter
	var observer engine.QuoteObserver
	if cfg.Trading.Live {
		if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
			log.Fatal().Msg("live trading requires BINANCE_API_KEY and BINANCE_API_SECRET")
		}
		adapter = execution.NewBinanceGateway(cfg.Exchange.RestURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret, log)
		log.Warn().Msg("live trading enabled, orders will hit the exchange")
	} else {
		sim := execution.NewSimGateway(filters, cfg.Trading.FeeTaker, log)
		adapter = sim
		observer = sim
	}

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
		Debug:            cfg.Trading.Debug,
	}, filters, riskMgr, adapter, ledger, notifier, log, nil)

	feed := exchange.NewFeed(exchange.ProviderBinance, symbols, log,
		exchange.WithStreamURL(cfg.Exchange.StreamURL))
	ticks := make(chan sig.Tick, 1024)
	go func() {
		defer close(ticks)
		if err := feed.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	log.Info().Strs("symbols", symbols).Bool("live", cfg.Trading.Live).Msg("engine started")
	if notifier != nil {
		notifier.Notify(ctx, "tradebot started: "+strings.Join(symbols, " "))
	}

	eng := engine.New(sm, riskMgr, observer, log)
	if err := eng.Run(ctx, ticks); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("engine stopped")
	}

	shutdown(log, cfg, ledger, riskMgr, telegram)
}

// shutdown flushes the session ledger to CSV and logs the final tally.
func shutdown(log zerolog.Logger, cfg *config.Config, ledger *portfolio.Ledger, riskMgr *risk.Manager, telegram *notify.Telegram) {
	sum := ledger.Summary()
	log.Info().Int("trades", sum.Trades).Int("wins", sum.Wins).Int("losses", sum.Losses).
		Float64("win_rate", sum.WinRate).Float64("realized", sum.Realized).
		Bool("halted", riskMgr.Halted()).Msg("session summary")

	if sum.Trades > 0 {
		path := "trades.csv"
		if cfg.App.LogDir != "" {
			path = filepath.Join(cfg.App.LogDir, "trades.csv")
		}
		if err := ledger.ExportCSV(path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("export trades")
		} else {
			log.Info().Str("path", path).Msg("trades exported")
		}
	}

	if cfg.Telegram.Enabled && telegram.Enabled() {
		// Fresh context: the run context is already cancelled at this point.
		telegram.Notify(context.Background(), "tradebot stopped")
		// Delivery is fire-and-forget; give it a moment before exiting.
		time.Sleep(2 * time.Second)
	}
}
