package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/models"
)

// fakeSource is an in-process PriceSource for pipeline tests. Symbols absent
// from the maps behave as provider failures.
type fakeSource struct {
	quotes    map[string]float64
	histories map[string][]models.PricePoint
	splits    map[string][]models.SplitEvent
	fxRates   map[string]float64

	// quoteGate, when set, is received from before every CurrentPrice call
	// so tests can hold a pipeline mid-flight.
	quoteGate chan struct{}
}

func (f *fakeSource) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if f.quoteGate != nil {
		<-f.quoteGate
	}
	if price, ok := f.quotes[symbol]; ok {
		return price, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
}

func (f *fakeSource) DailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	if history, ok := f.histories[symbol]; ok {
		return history, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
}

func (f *fakeSource) SplitEvents(ctx context.Context, symbol string, start, end time.Time) ([]models.SplitEvent, error) {
	if splits, ok := f.splits[symbol]; ok {
		return splits, nil
	}
	if _, ok := f.histories[symbol]; ok {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, symbol)
}

func (f *fakeSource) FXRate(ctx context.Context, from, to string) (float64, error) {
	if rate, ok := f.fxRates[from+to]; ok {
		return rate, nil
	}
	return 0, fmt.Errorf("%w: %s/%s", ErrPriceUnavailable, from, to)
}

func (f *fakeSource) InvalidateQuote(symbol string) {}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func approxEqual(got, want, epsilon float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= epsilon
}
