package models

// LoadingStatusResponse reports the session state to the polling dashboard.
type LoadingStatusResponse struct {
	LoadingComplete bool   `json:"loading_complete"`
	Failed          bool   `json:"failed"`
	Error           string `json:"error,omitempty"`
}

// TopHolding is one entry of the summary's largest-positions list.
type TopHolding struct {
	Symbol      string  `json:"symbol"`
	MarketValue float64 `json:"market_value"`
}

// PortfolioSummaryResponse is the dashboard overview payload.
// UnavailableSymbols lists holdings with provider data gaps so the dashboard
// can show them as gaps rather than silent zeros.
type PortfolioSummaryResponse struct {
	TotalHoldings      int          `json:"total_holdings"`
	TotalValueUSD      float64      `json:"total_value_usd"`
	TotalValueSGD      float64      `json:"total_value_sgd"`
	TotalUnrealizedPnL float64      `json:"total_unrealized_pnl"`
	TopHoldings        []TopHolding `json:"top_holdings"`
	UnavailableSymbols []string     `json:"unavailable_symbols,omitempty"`
}

// HoldingsResponse maps symbol to its holding view.
type HoldingsResponse struct {
	Holdings            map[string]Holding `json:"holdings"`
	TotalPortfolioValue float64            `json:"total_portfolio_value"`
}

// HoldingDetailResponse is a single holding plus its trade history.
type HoldingDetailResponse struct {
	HoldingInfo   Holding         `json:"holding_info"`
	TradeHistory  []AdjustedTrade `json:"trade_history"`
	TotalTrades   int             `json:"total_trades"`
	FirstPurchase string          `json:"first_purchase"`
	LastTrade     string          `json:"last_trade"`
}

// ValueSeriesResponse is the historical portfolio value chart payload.
// Dates are formatted YYYY-MM-DD; values are in the requested currency.
type ValueSeriesResponse struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// SplitChartData holds the parallel arrays the split-analysis chart consumes.
type SplitChartData struct {
	Symbols      []string  `json:"symbols"`
	BeforePrices []float64 `json:"before_prices"`
	AfterPrices  []float64 `json:"after_prices"`
	Ratios       []float64 `json:"ratios"`
}

// SplitReportResponse is the split-analysis payload.
type SplitReportResponse struct {
	TotalSplits    int            `json:"total_splits"`
	AffectedStocks int            `json:"affected_stocks"`
	TradesAdjusted int            `json:"trades_adjusted"`
	Splits         []SplitAudit   `json:"splits"`
	ChartData      SplitChartData `json:"chart_data"`
}

// UploadResponse acknowledges an upload. The pipeline runs in the
// background; clients poll /api/loading-status for completion.
type UploadResponse struct {
	Message  string `json:"message"`
	Files    int    `json:"files"`
	RowsRead int    `json:"rows_read"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
