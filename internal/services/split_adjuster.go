package services

import (
	"context"
	"sort"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/models"
	log "github.com/sirupsen/logrus"
)

// SplitSource supplies split events for a symbol over a date range.
type SplitSource interface {
	SplitEvents(ctx context.Context, symbol string, start, end time.Time) ([]models.SplitEvent, error)
}

// SplitAdjuster restates historical trades in current-share terms using the
// provider's split calendar.
type SplitAdjuster struct {
	source SplitSource
}

// NewSplitAdjuster creates a new SplitAdjuster
func NewSplitAdjuster(source SplitSource) *SplitAdjuster {
	return &SplitAdjuster{source: source}
}

// Adjust rewrites each symbol's trades so quantities and prices are expressed
// post-split. For a trade dated t the adjustment factor is the product of the
// ratios of all splits dated strictly after t: a trade on the split date is
// already in post-split terms. Quantity is multiplied and price divided by
// the factor, preserving quantity*price exactly.
//
// Only splits inside the symbol's [first trade, last trade] window are
// applied. If the provider is unreachable for a symbol, its trades pass
// through unadjusted and the symbol is flagged in the returned availability
// map; one symbol's failure never aborts the batch.
func (a *SplitAdjuster) Adjust(ctx context.Context, trades map[string][]models.Trade) (map[string][]models.AdjustedTrade, []models.SplitAudit, map[string]bool) {
	adjusted := make(map[string][]models.AdjustedTrade, len(trades))
	unavailable := make(map[string]bool)
	var audits []models.SplitAudit

	for symbol, symbolTrades := range trades {
		if len(symbolTrades) == 0 {
			continue
		}

		// Trades arrive date-sorted from the normalizer.
		firstDate := symbolTrades[0].Date
		lastDate := symbolTrades[len(symbolTrades)-1].Date

		splits, err := a.source.SplitEvents(ctx, symbol, firstDate, lastDate)
		if err != nil {
			log.Warnf("split adjustment skipped for %s: %v", symbol, err)
			unavailable[symbol] = true
			adjusted[symbol] = passThrough(symbolTrades)
			continue
		}

		applicable := splits[:0:0]
		for _, s := range splits {
			if !s.Date.Before(firstDate) && !s.Date.After(lastDate) {
				applicable = append(applicable, s)
			}
		}
		sort.Slice(applicable, func(i, j int) bool {
			return applicable[i].Date.Before(applicable[j].Date)
		})

		if len(applicable) == 0 {
			adjusted[symbol] = passThrough(symbolTrades)
			continue
		}

		out := make([]models.AdjustedTrade, 0, len(symbolTrades))
		for _, t := range symbolTrades {
			factor := 1.0
			for _, s := range applicable {
				if s.Date.After(t.Date) {
					factor *= s.Ratio
				}
			}
			out = append(out, models.AdjustedTrade{
				Trade:       t,
				AdjQuantity: t.Quantity * factor,
				AdjPrice:    t.Price / factor,
			})
		}
		adjusted[symbol] = out

		for _, s := range applicable {
			audits = append(audits, auditSplit(symbolTrades, s))
			log.Infof("applied split adjustment: %s %s ratio %.4g:1",
				symbol, s.Date.Format("2006-01-02"), s.Ratio)
		}
	}

	sort.Slice(audits, func(i, j int) bool {
		if !audits[i].Date.Equal(audits[j].Date) {
			return audits[i].Date.After(audits[j].Date)
		}
		return audits[i].Symbol < audits[j].Symbol
	})

	return adjusted, audits, unavailable
}

// passThrough wraps trades without adjustment (no splits, or provider down).
func passThrough(trades []models.Trade) []models.AdjustedTrade {
	out := make([]models.AdjustedTrade, 0, len(trades))
	for _, t := range trades {
		out = append(out, models.AdjustedTrade{
			Trade:       t,
			AdjQuantity: t.Quantity,
			AdjPrice:    t.Price,
		})
	}
	return out
}

// auditSplit records how one split touched a symbol's trade history: the
// trades restated, the last observed trade price before the split and the
// first after. When no post-split trade exists the expected post-split price
// stands in for the observed one.
func auditSplit(trades []models.Trade, split models.SplitEvent) models.SplitAudit {
	audit := models.SplitAudit{
		Symbol: split.Symbol,
		Date:   split.Date,
		Ratio:  split.Ratio,
	}

	for _, t := range trades {
		if t.Date.Before(split.Date) {
			audit.TradesAdjusted++
			audit.PriceBefore = t.Price
		} else if audit.PriceAfter == 0 {
			audit.PriceAfter = t.Price
		}
	}

	if audit.PriceBefore > 0 {
		audit.ExpectedAfter = audit.PriceBefore / split.Ratio
	}
	if audit.PriceAfter == 0 {
		audit.PriceAfter = audit.ExpectedAfter
	}

	return audit
}
