package common

import (
	"errors"
	"strings"
)

var ErrMarketPaused = errors.New("market paused")

// PauseView reports whether quotes for a market symbol are suspended.
type PauseView interface {
	IsPaused(symbol string) bool
}

// PausedSet is a static PauseView keyed by upper-case symbol.
type PausedSet map[string]bool

func (p PausedSet) IsPaused(symbol string) bool {
	if p == nil {
		return false
	}
	return p[strings.ToUpper(strings.TrimSpace(symbol))]
}

func Guard(p PauseView, symbol string) error {
	if p == nil || symbol == "" {
		return nil
	}
	if p.IsPaused(symbol) {
		return ErrMarketPaused
	}
	return nil
}
