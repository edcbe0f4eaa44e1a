package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultNetwork        = "local"
	defaultListenAddress  = ":8090"
	defaultEnvironment    = "dev"
	defaultReportDSN      = "lendmath-reports.db"
	defaultRatePerSecond  = 20
	defaultRateLimitBurst = 40
)

// Load reads a markets file. A missing file yields the built-in presets so
// the tooling works without any configuration.
func Load(path string) (*Markets, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	} else if err != nil {
		return nil, err
	}

	cfg := &Markets{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Write persists cfg as TOML, creating parent directories as needed.
func Write(path string, cfg *Markets) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func (m *Markets) normalize() error {
	if strings.TrimSpace(m.Network) == "" {
		m.Network = defaultNetwork
	}
	rates := make(map[string]RateStrategy, len(m.RateStrategies))
	for symbol, strategy := range m.RateStrategies {
		key := normalizeSymbol(symbol)
		if key == "" {
			return fmt.Errorf("rate strategy with empty symbol")
		}
		if _, exists := rates[key]; exists {
			return fmt.Errorf("rate strategy %s declared twice", key)
		}
		rates[key] = strategy
	}
	m.RateStrategies = rates

	auctions := make(map[string]AuctionStrategy, len(m.AuctionStrategies))
	for name, strategy := range m.AuctionStrategies {
		key := normalizeName(name)
		if key == "" {
			return fmt.Errorf("auction strategy with empty name")
		}
		if _, exists := auctions[key]; exists {
			return fmt.Errorf("auction strategy %s declared twice", key)
		}
		auctions[key] = strategy
	}
	m.AuctionStrategies = auctions

	svc := &m.Service
	if strings.TrimSpace(svc.ListenAddress) == "" {
		svc.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(svc.Environment) == "" {
		svc.Environment = defaultEnvironment
	}
	if strings.TrimSpace(svc.ReportDSN) == "" {
		svc.ReportDSN = defaultReportDSN
	}
	if svc.RateLimitPerSecond == 0 {
		svc.RateLimitPerSecond = defaultRatePerSecond
	}
	if svc.RateLimitBurst == 0 {
		svc.RateLimitBurst = defaultRateLimitBurst
	}
	for i, symbol := range svc.PausedMarkets {
		svc.PausedMarkets[i] = normalizeSymbol(symbol)
	}
	return nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
