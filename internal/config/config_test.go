package config

import (
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "tradebot-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if len(cfg.Exchange.Symbols) != 1 || cfg.Exchange.Symbols[0] != "BTCUSDT" {
		t.Fatalf("expected BTCUSDT symbol, got %+v", cfg.Exchange.Symbols)
	}
	if cfg.Exchange.RestURL != "https://api.binance.com" {
		t.Fatalf("expected rest url default, got %s", cfg.Exchange.RestURL)
	}
	if cfg.Exchange.StreamURL != "wss://stream.binance.com:9443/stream" {
		t.Fatalf("expected stream url default, got %s", cfg.Exchange.StreamURL)
	}
	if cfg.Trading.MaxCapital != 25 {
		t.Fatalf("unexpected max capital: %.2f", cfg.Trading.MaxCapital)
	}
	if cfg.Trading.ProfitTakeBps != 30 || cfg.Trading.StopLossBps != 20 {
		t.Fatalf("unexpected tp/sl bps: %.1f/%.1f", cfg.Trading.ProfitTakeBps, cfg.Trading.StopLossBps)
	}
	if cfg.Trading.EntryMinGrade != "B" {
		t.Fatalf("expected grade normalized to B, got %s", cfg.Trading.EntryMinGrade)
	}
	if cfg.Trading.EntryMinScore != 3.5 {
		t.Fatalf("unexpected entry min score: %.2f", cfg.Trading.EntryMinScore)
	}
	if cfg.Trading.RiskUnit != "bps" {
		t.Fatalf("expected risk unit normalized to bps, got %s", cfg.Trading.RiskUnit)
	}
	if cfg.Risk.DailyMaxDrawdown != 2 {
		t.Fatalf("unexpected daily max drawdown: %.2f", cfg.Risk.DailyMaxDrawdown)
	}
	if cfg.Risk.CooldownSec != 15 {
		t.Fatalf("unexpected cooldown: %d", cfg.Risk.CooldownSec)
	}
	if cfg.Telegram.Enabled {
		t.Fatalf("expected telegram disabled")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join("testdata", "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsBadGrade(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Trading.EntryMinGrade = "Z"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected grade validation error")
	}
}

func TestValidateRejectsBadRiskUnit(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Trading.RiskUnit = "pct"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected risk unit validation error")
	}
}
