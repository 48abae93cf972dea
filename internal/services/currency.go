package services

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// CurrencyConverter converts portfolio amounts between USD and SGD. It asks
// the provider for a live rate and falls back to a fixed configured rate when
// the provider is unreachable, so currency conversion can never take the
// dashboard down.
type CurrencyConverter struct {
	source FXSource
	// sgdPerUSD is the fixed fallback rate (SGD per 1 USD).
	sgdPerUSD float64
}

// FXSource supplies spot FX rates: units of 'to' per 1 'from'.
type FXSource interface {
	FXRate(ctx context.Context, from, to string) (float64, error)
}

// NewCurrencyConverter creates a new CurrencyConverter
func NewCurrencyConverter(source FXSource, sgdPerUSD float64) *CurrencyConverter {
	return &CurrencyConverter{
		source:    source,
		sgdPerUSD: sgdPerUSD,
	}
}

// Rate returns how many 'to' units per 1 'from' unit.
func (c *CurrencyConverter) Rate(ctx context.Context, from, to string) float64 {
	if from == to {
		return 1
	}

	if rate, err := c.source.FXRate(ctx, from, to); err == nil && rate > 0 {
		return rate
	}

	log.Warnf("using fixed fallback rate for %s/%s", from, to)
	switch {
	case from == "USD" && to == "SGD":
		return c.sgdPerUSD
	case from == "SGD" && to == "USD":
		return 1 / c.sgdPerUSD
	}

	// Unsupported pair with no live rate: pass amounts through unconverted
	// rather than zeroing them.
	log.Errorf("no conversion available for %s/%s", from, to)
	return 1
}

// Convert converts an amount between currencies.
func (c *CurrencyConverter) Convert(ctx context.Context, amount float64, from, to string) float64 {
	return amount * c.Rate(ctx, from, to)
}
