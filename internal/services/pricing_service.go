package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/cache"
	"github.com/dlow/portfolio-dashboard/internal/models"
	"github.com/dlow/portfolio-dashboard/internal/yahoo"
	log "github.com/sirupsen/logrus"
)

// ErrPriceUnavailable indicates the provider could not supply a datum for a
// symbol. Callers treat it as a per-symbol gap, never a batch failure.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceSource is the market-data contract the analysis pipeline consumes.
// Every method degrades to an error for the requested symbol only; the
// pipeline maps errors to per-symbol availability flags.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error)
	SplitEvents(ctx context.Context, symbol string, start, end time.Time) ([]models.SplitEvent, error)
	FXRate(ctx context.Context, from, to string) (float64, error)
	InvalidateQuote(symbol string)
}

// PricingService layers the in-memory TTL cache over the Yahoo client.
type PricingService struct {
	memCache *cache.MemoryCache
	client   *yahoo.Client
}

// NewPricingService creates a new PricingService
func NewPricingService(memCache *cache.MemoryCache, client *yahoo.Client) *PricingService {
	return &PricingService{
		memCache: memCache,
		client:   client,
	}
}

// CurrentPrice returns the latest price for a symbol, serving from the quote
// cache when fresh.
func (s *PricingService) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if price, ok := s.memCache.GetQuote(symbol); ok {
		return price, nil
	}

	price, err := s.client.GetQuote(ctx, symbol)
	if err != nil {
		log.Warnf("quote fetch failed for %s: %v", symbol, err)
		return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}

	s.memCache.SetQuote(symbol, price)
	return price, nil
}

// DailyHistory returns the daily close series for a symbol over [start, end].
func (s *PricingService) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	prices, _, err := s.history(ctx, symbol, start, end)
	return prices, err
}

// SplitEvents returns the split events for a symbol over [start, end].
// Splits ride along with the history fetch, so asking for both costs one
// provider call.
func (s *PricingService) SplitEvents(ctx context.Context, symbol string, start, end time.Time) ([]models.SplitEvent, error) {
	_, splits, err := s.history(ctx, symbol, start, end)
	return splits, err
}

func (s *PricingService) history(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, []models.SplitEvent, error) {
	if prices, splits, ok := s.memCache.GetHistory(symbol, start, end); ok {
		return prices, splits, nil
	}

	prices, splits, err := s.client.GetDailyHistory(ctx, symbol, start, end)
	if err != nil {
		log.Warnf("history fetch failed for %s: %v", symbol, err)
		return nil, nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
	}

	s.memCache.SetHistory(symbol, start, end, prices, splits)
	return prices, splits, nil
}

// FXRate returns how many 'to' units one 'from' unit buys, trying the direct
// pair and then the inverse. Rates are cached per pair for the quote TTL.
func (s *PricingService) FXRate(ctx context.Context, from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}

	pair := from + to
	if rate, ok := s.memCache.GetFXRate(pair); ok {
		return rate, nil
	}

	rate, err := s.client.GetFXRate(ctx, from, to)
	if err != nil {
		// Try the inverse pair before giving up.
		inverse, invErr := s.client.GetFXRate(ctx, to, from)
		if invErr != nil || inverse == 0 {
			log.Warnf("fx rate fetch failed for %s/%s: %v", from, to, err)
			return 0, fmt.Errorf("%w: %s/%s", ErrPriceUnavailable, from, to)
		}
		rate = 1 / inverse
	}

	s.memCache.SetFXRate(pair, rate)
	return rate, nil
}

// InvalidateQuote drops a symbol's cached quote so the next CurrentPrice call
// refetches it.
func (s *PricingService) InvalidateQuote(symbol string) {
	s.memCache.InvalidateQuote(symbol)
}
