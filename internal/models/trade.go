package models

import (
	"time"
)

// RawTradeRow is one row from an uploaded trade-history CSV, as strings.
// Semantic validation (dates, numbers, currencies) happens in the normalizer,
// not at parse time, so a bad row can be counted and skipped rather than
// aborting the file.
type RawTradeRow struct {
	Symbol   string
	DateTime string
	Action   string
	Quantity string
	Price    string
	Currency string
}

// Trade is a normalized trade record. Quantity is signed: buys positive,
// sells negative. Immutable once produced by the normalizer.
type Trade struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency"`
}

// SplitEvent is a stock split sourced from the price provider.
// Ratio is new shares per old share (2.0 for a 2-for-1 split).
type SplitEvent struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Ratio  float64   `json:"ratio"`
}

// AdjustedTrade is a Trade restated in current-share terms. AdjQuantity and
// AdjPrice carry the split adjustment; Quantity and Price keep the original
// values. AdjQuantity*AdjPrice always equals Quantity*Price.
type AdjustedTrade struct {
	Trade
	AdjQuantity float64 `json:"adjusted_quantity"`
	AdjPrice    float64 `json:"adjusted_price"`
}

// Cashflow returns the split-adjusted economic value of the trade.
func (t AdjustedTrade) Cashflow() float64 {
	return t.AdjQuantity * t.AdjPrice
}

// CashFlow is a dated signed amount used for XIRR. Buys are negative
// (money out), sells and the synthetic terminal value positive.
type CashFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// Position is the folded state of one symbol's adjusted trades.
// Derived data: recomputed fully on every analysis run, never mutated
// incrementally.
type Position struct {
	Symbol    string     `json:"symbol"`
	Currency  string     `json:"currency"`
	Quantity  float64    `json:"quantity"`
	CostBasis float64    `json:"cost_basis"`
	AvgCost   float64    `json:"avg_cost"`
	CashFlows []CashFlow `json:"-"`
	Oversold  bool       `json:"oversold,omitempty"`
}

// ValuationPoint is the total portfolio value on one date of the
// reconstructed timeline.
type ValuationPoint struct {
	Date     time.Time `json:"date"`
	ValueUSD float64   `json:"value_usd"`
	ValueSGD float64   `json:"value_sgd"`
}

// SplitAudit records one applied split for the split-analysis view.
// PriceBefore is the last observed trade price before the split and
// PriceAfter the first after; when no post-split trade exists PriceAfter
// falls back to ExpectedAfter.
type SplitAudit struct {
	Symbol         string    `json:"symbol"`
	Date           time.Time `json:"date"`
	Ratio          float64   `json:"ratio"`
	TradesAdjusted int       `json:"trades_adjusted"`
	PriceBefore    float64   `json:"price_before"`
	PriceAfter     float64   `json:"price_after"`
	ExpectedAfter  float64   `json:"expected_after_price"`
}

// Holding is the per-symbol view served to the dashboard. Pointer fields are
// nil when the underlying datum is unavailable: a missing current price must
// surface as null, never as zero, and an XIRR that did not converge is
// distinct from a 0% return.
type Holding struct {
	Symbol         string   `json:"symbol"`
	Quantity       float64  `json:"quantity"`
	AvgCost        float64  `json:"avg_cost"`
	CurrentPrice   *float64 `json:"current_price"`
	MarketValue    *float64 `json:"market_value"`
	UnrealizedPnL  *float64 `json:"unrealized_pnl"`
	Currency       string   `json:"currency"`
	XIRR           *float64 `json:"xirr"`
	XIRRPercentage *float64 `json:"xirr_percentage"`
}

// PricePoint is one day of a symbol's historical close series.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}
