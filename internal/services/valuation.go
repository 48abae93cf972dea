package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFetches bounds the fan-out against the rate-limited provider.
const maxConcurrentFetches = 5

// Valuer combines positions with provider prices into present-day market
// values and the reconstructed historical portfolio-value series.
type Valuer struct {
	source    PriceSource
	converter *CurrencyConverter
}

// NewValuer creates a new Valuer
func NewValuer(source PriceSource, converter *CurrencyConverter) *Valuer {
	return &Valuer{
		source:    source,
		converter: converter,
	}
}

// CurrentValuation is the present-day view of the portfolio.
type CurrentValuation struct {
	Holdings      map[string]models.Holding
	Summary       models.PortfolioSummaryResponse
	TotalValueUSD float64
	// Unavailable flags symbols whose current price could not be fetched.
	Unavailable map[string]bool
}

// ValueCurrent prices every open position and aggregates the portfolio
// summary. Quote fetches fan out concurrently; a symbol whose quote is
// unavailable keeps nil price/value/XIRR fields and is flagged, never
// silently zeroed or dropped.
func (v *Valuer) ValueCurrent(ctx context.Context, positions map[string]*models.Position, now time.Time) CurrentValuation {
	quotes := v.fetchQuotes(ctx, positions)

	result := CurrentValuation{
		Holdings:    make(map[string]models.Holding, len(positions)),
		Unavailable: make(map[string]bool),
	}

	usdRates := map[string]float64{"USD": 1}

	var totalPnLUSD float64
	for symbol, pos := range positions {
		holding := models.Holding{
			Symbol:   symbol,
			Quantity: pos.Quantity,
			AvgCost:  pos.AvgCost,
			Currency: pos.Currency,
		}

		price, ok := quotes[symbol]
		if !ok {
			result.Unavailable[symbol] = true
			result.Holdings[symbol] = holding
			continue
		}

		marketValue := pos.Quantity * price
		pnl := marketValue - pos.CostBasis
		holding.CurrentPrice = &price
		holding.MarketValue = &marketValue
		holding.UnrealizedPnL = &pnl

		flows := make([]models.CashFlow, len(pos.CashFlows), len(pos.CashFlows)+1)
		copy(flows, pos.CashFlows)
		flows = append(flows, models.CashFlow{Date: now, Amount: marketValue})
		if rate, ok := CalculateXIRR(flows); ok {
			pct := rate * 100
			holding.XIRR = &rate
			holding.XIRRPercentage = &pct
		}

		result.Holdings[symbol] = holding

		if _, ok := usdRates[pos.Currency]; !ok {
			usdRates[pos.Currency] = v.converter.Rate(ctx, pos.Currency, "USD")
		}
		result.TotalValueUSD += marketValue * usdRates[pos.Currency]
		totalPnLUSD += pnl * usdRates[pos.Currency]
	}

	result.Summary = models.PortfolioSummaryResponse{
		TotalHoldings:      len(positions),
		TotalValueUSD:      result.TotalValueUSD,
		TotalValueSGD:      v.converter.Convert(ctx, result.TotalValueUSD, "USD", "SGD"),
		TotalUnrealizedPnL: totalPnLUSD,
		TopHoldings:        topHoldings(result.Holdings, usdRates),
	}

	return result
}

func (v *Valuer) fetchQuotes(ctx context.Context, positions map[string]*models.Position) map[string]float64 {
	quotes := make(map[string]float64, len(positions))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for symbol := range positions {
		symbol := symbol
		g.Go(func() error {
			price, err := v.source.CurrentPrice(ctx, symbol)
			if err != nil {
				// Per-symbol gap; the batch carries on.
				return nil
			}
			mu.Lock()
			quotes[symbol] = price
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return quotes
}

// topHoldings returns the five largest holdings by USD market value.
func topHoldings(holdings map[string]models.Holding, usdRates map[string]float64) []models.TopHolding {
	var top []models.TopHolding
	for symbol, h := range holdings {
		if h.MarketValue == nil {
			continue
		}
		rate, ok := usdRates[h.Currency]
		if !ok {
			rate = 1
		}
		top = append(top, models.TopHolding{
			Symbol:      symbol,
			MarketValue: *h.MarketValue * rate,
		})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].MarketValue != top[j].MarketValue {
			return top[i].MarketValue > top[j].MarketValue
		}
		return top[i].Symbol < top[j].Symbol
	})
	if len(top) > 5 {
		top = top[:5]
	}
	return top
}

// symbolSeries is the per-symbol state while walking the valuation grid.
type symbolSeries struct {
	currency  string
	trades    []models.AdjustedTrade
	prices    map[string]float64 // date (YYYY-MM-DD) -> close
	tradeIdx  int
	quantity  float64
	lastPrice float64
}

// HistoricalSeries reconstructs the daily portfolio value from the earliest
// trade date through today. For each day a symbol contributes its held
// quantity as of that day times the day's close; days without a quote
// forward-fill the most recent known price, and a symbol with no trades yet
// contributes zero. Symbols whose history cannot be fetched are flagged and
// contribute nothing.
func (v *Valuer) HistoricalSeries(ctx context.Context, adjusted map[string][]models.AdjustedTrade, positions map[string]*models.Position, now time.Time) ([]models.ValuationPoint, map[string]bool) {
	unavailable := make(map[string]bool)

	var start time.Time
	series := make(map[string]*symbolSeries)
	for symbol := range positions {
		trades := adjusted[symbol]
		if len(trades) == 0 {
			continue
		}
		if start.IsZero() || trades[0].Date.Before(start) {
			start = trades[0].Date
		}
		series[symbol] = &symbolSeries{
			currency: positions[symbol].Currency,
			trades:   trades,
		}
	}
	if len(series) == 0 {
		return nil, unavailable
	}

	v.fetchHistories(ctx, series, unavailable, start, now)

	usdRates := map[string]float64{"USD": 1}
	for _, s := range series {
		if _, ok := usdRates[s.currency]; !ok {
			usdRates[s.currency] = v.converter.Rate(ctx, s.currency, "USD")
		}
	}
	sgdPerUSD := v.converter.Rate(ctx, "USD", "SGD")

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var points []models.ValuationPoint
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		var totalUSD float64

		for _, s := range series {
			for s.tradeIdx < len(s.trades) && !s.trades[s.tradeIdx].Date.After(d) {
				s.quantity += s.trades[s.tradeIdx].AdjQuantity
				s.tradeIdx++
			}
			if s.quantity < 0 {
				s.quantity = 0
			}
			if price, ok := s.prices[key]; ok {
				s.lastPrice = price
			}
			if s.quantity > 0 && s.lastPrice > 0 {
				totalUSD += s.quantity * s.lastPrice * usdRates[s.currency]
			}
		}

		points = append(points, models.ValuationPoint{
			Date:     d,
			ValueUSD: totalUSD,
			ValueSGD: totalUSD * sgdPerUSD,
		})
	}

	return points, unavailable
}

func (v *Valuer) fetchHistories(ctx context.Context, series map[string]*symbolSeries, unavailable map[string]bool, start, end time.Time) {
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for symbol, s := range series {
		symbol, s := symbol, s
		g.Go(func() error {
			history, err := v.source.DailyHistory(ctx, symbol, start, end)
			if err != nil {
				log.Warnf("historical series missing %s: %v", symbol, err)
				mu.Lock()
				unavailable[symbol] = true
				mu.Unlock()
				return nil
			}
			prices := make(map[string]float64, len(history))
			for _, p := range history {
				prices[p.Date.Format("2006-01-02")] = p.Close
			}
			mu.Lock()
			s.prices = prices
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	for _, s := range series {
		if s.prices == nil {
			s.prices = map[string]float64{}
		}
	}
}
