package services

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/models"
	log "github.com/sirupsen/logrus"
)

// NormalizeReport counts the outcome of a normalization pass. Rejected rows
// are dropped individually; only a batch with zero accepted rows is fatal to
// the session, and that decision belongs to the caller.
type NormalizeReport struct {
	Accepted int
	Rejected int
}

// dateLayouts are the timestamp formats accepted on the upload boundary.
// Broker exports vary: IBKR writes "2024-03-01, 09:30:00", others a plain
// date or RFC3339.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02, 15:04:05",
	time.RFC3339,
}

var knownCurrencies = map[string]bool{
	"USD": true,
	"SGD": true,
}

// tradeKey identifies a trade for deduplication across uploaded files.
type tradeKey struct {
	symbol   string
	date     string
	quantity float64
	price    float64
	currency string
}

// NormalizeTrades validates raw rows into canonical trades grouped by symbol.
// Each symbol's trades are ordered by date with input order preserved on ties
// (stable sort), so repeated runs over the same input produce identical
// output. Invalid rows and exact duplicates are counted as rejects, never
// fatal.
func NormalizeTrades(rows []models.RawTradeRow, now time.Time) (map[string][]models.Trade, NormalizeReport) {
	trades := make(map[string][]models.Trade)
	seen := make(map[tradeKey]bool)
	var report NormalizeReport

	for _, row := range rows {
		trade, ok := normalizeRow(row, now)
		if !ok {
			report.Rejected++
			continue
		}

		key := tradeKey{
			symbol:   trade.Symbol,
			date:     trade.Date.Format("2006-01-02"),
			quantity: trade.Quantity,
			price:    trade.Price,
			currency: trade.Currency,
		}
		if seen[key] {
			log.Infof("dropping duplicate trade: %s %s qty=%.4f", trade.Symbol, key.date, trade.Quantity)
			report.Rejected++
			continue
		}
		seen[key] = true

		trades[trade.Symbol] = append(trades[trade.Symbol], trade)
		report.Accepted++
	}

	for symbol := range trades {
		ts := trades[symbol]
		sort.SliceStable(ts, func(i, j int) bool {
			return ts[i].Date.Before(ts[j].Date)
		})
	}

	log.Infof("normalized %d trades across %d symbols (%d rejected)",
		report.Accepted, len(trades), report.Rejected)

	return trades, report
}

func normalizeRow(row models.RawTradeRow, now time.Time) (models.Trade, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
	if symbol == "" {
		return models.Trade{}, false
	}

	date, ok := parseTradeDate(row.DateTime)
	if !ok || date.After(now) {
		log.Debugf("rejecting %s: bad or future date %q", symbol, row.DateTime)
		return models.Trade{}, false
	}

	quantity, err := strconv.ParseFloat(strings.TrimSpace(row.Quantity), 64)
	if err != nil || quantity == 0 {
		log.Debugf("rejecting %s: bad quantity %q", symbol, row.Quantity)
		return models.Trade{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(row.Price), 64)
	if err != nil || price < 0 {
		log.Debugf("rejecting %s: bad price %q", symbol, row.Price)
		return models.Trade{}, false
	}

	currency := strings.ToUpper(strings.TrimSpace(row.Currency))
	if currency == "" {
		currency = "USD"
	}
	if !knownCurrencies[currency] {
		log.Debugf("rejecting %s: unknown currency %q", symbol, row.Currency)
		return models.Trade{}, false
	}

	// The quantity sign is authoritative; an explicit SELL action fixes up
	// exports that report sells as positive quantities.
	if strings.EqualFold(strings.TrimSpace(row.Action), "sell") && quantity > 0 {
		quantity = -quantity
	}

	return models.Trade{
		Symbol:   symbol,
		Date:     date,
		Quantity: quantity,
		Price:    price,
		Currency: currency,
	}, true
}

// parseTradeDate parses a trade timestamp and truncates it to a calendar
// date; the pipeline orders trades by date only.
func parseTradeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
