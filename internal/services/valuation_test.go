package services

import (
	"context"
	"testing"

	"github.com/dlow/portfolio-dashboard/internal/models"
)

var valuationNow = date(2025, 6, 1)

func testValuer(source *fakeSource) *Valuer {
	return NewValuer(source, NewCurrencyConverter(source, 1.35))
}

func TestValueCurrent_MarksToMarket(t *testing.T) {
	source := &fakeSource{quotes: map[string]float64{"X": 8}}
	valuer := testValuer(source)

	// 20 shares at $5 average cost, quoted at $8.
	positions := map[string]*models.Position{
		"X": {
			Symbol: "X", Currency: "USD",
			Quantity: 20, CostBasis: 100, AvgCost: 5,
			CashFlows: []models.CashFlow{{Date: date(2024, 1, 1), Amount: -100}},
		},
	}

	result := valuer.ValueCurrent(context.Background(), positions, valuationNow)
	h := result.Holdings["X"]
	if h.MarketValue == nil || *h.MarketValue != 160 {
		t.Fatalf("market value = %v, want 160", h.MarketValue)
	}
	if h.UnrealizedPnL == nil || *h.UnrealizedPnL != 60 {
		t.Errorf("unrealized pnl = %v, want 60", h.UnrealizedPnL)
	}
	if h.XIRR == nil {
		t.Error("expected an XIRR with a buy flow and a terminal value")
	}
	if result.TotalValueUSD != 160 {
		t.Errorf("total USD = %v, want 160", result.TotalValueUSD)
	}
	// No live USDSGD rate in the fake: fixed fallback applies.
	if !approxEqual(result.Summary.TotalValueSGD, 216, 1e-9) {
		t.Errorf("total SGD = %v, want 216", result.Summary.TotalValueSGD)
	}
}

func TestValueCurrent_UnavailableQuoteKeepsHolding(t *testing.T) {
	source := &fakeSource{quotes: map[string]float64{"GOOD": 10}}
	valuer := testValuer(source)

	positions := map[string]*models.Position{
		"GOOD": {Symbol: "GOOD", Currency: "USD", Quantity: 1, CostBasis: 8, AvgCost: 8},
		"BAD":  {Symbol: "BAD", Currency: "USD", Quantity: 5, CostBasis: 50, AvgCost: 10},
	}

	result := valuer.ValueCurrent(context.Background(), positions, valuationNow)
	if !result.Unavailable["BAD"] {
		t.Error("expected BAD flagged as unavailable")
	}

	h, ok := result.Holdings["BAD"]
	if !ok {
		t.Fatal("unavailable symbol must still appear in holdings")
	}
	if h.CurrentPrice != nil || h.MarketValue != nil || h.UnrealizedPnL != nil || h.XIRR != nil {
		t.Error("unavailable holding must have nil price fields, not zeros")
	}
	if h.Quantity != 5 || h.AvgCost != 10 {
		t.Errorf("cost-basis fields should survive: %+v", h)
	}

	// Totals cover only the priced holdings.
	if result.TotalValueUSD != 10 {
		t.Errorf("total USD = %v, want 10", result.TotalValueUSD)
	}
	if result.Summary.TotalHoldings != 2 {
		t.Errorf("total holdings = %d, want 2", result.Summary.TotalHoldings)
	}
}

func TestValueCurrent_TopHoldings(t *testing.T) {
	quotes := map[string]float64{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5, "F": 6}
	source := &fakeSource{quotes: quotes}
	valuer := testValuer(source)

	positions := make(map[string]*models.Position, len(quotes))
	for symbol := range quotes {
		positions[symbol] = &models.Position{
			Symbol: symbol, Currency: "USD", Quantity: 10, CostBasis: 10, AvgCost: 1,
		}
	}

	result := valuer.ValueCurrent(context.Background(), positions, valuationNow)
	top := result.Summary.TopHoldings
	if len(top) != 5 {
		t.Fatalf("top holdings = %d, want 5", len(top))
	}
	if top[0].Symbol != "F" || top[0].MarketValue != 60 {
		t.Errorf("largest = %+v, want F at 60", top[0])
	}
	for _, th := range top {
		if th.Symbol == "A" {
			t.Error("smallest holding should fall outside the top five")
		}
	}
}

func TestHistoricalSeries_ForwardFill(t *testing.T) {
	source := &fakeSource{
		histories: map[string][]models.PricePoint{
			"X": {
				{Date: date(2024, 1, 1), Close: 10},
				// 2024-01-02 and 03 missing: weekend, forward-filled.
				{Date: date(2024, 1, 4), Close: 12},
			},
		},
	}
	valuer := testValuer(source)

	adjusted := map[string][]models.AdjustedTrade{
		"X": {adjTrade("X", 2024, 1, 1, 10, 10)},
	}
	positions := map[string]*models.Position{
		"X": {Symbol: "X", Currency: "USD", Quantity: 10, CostBasis: 100, AvgCost: 10},
	}

	points, unavailable := valuer.HistoricalSeries(context.Background(), adjusted, positions, date(2024, 1, 5))
	if len(unavailable) != 0 {
		t.Fatalf("unexpected unavailable symbols: %v", unavailable)
	}
	if len(points) != 5 {
		t.Fatalf("expected 5 daily points, got %d", len(points))
	}

	wantUSD := []float64{100, 100, 100, 120, 120}
	for i, want := range wantUSD {
		if !approxEqual(points[i].ValueUSD, want, 1e-9) {
			t.Errorf("day %d value = %v, want %v", i, points[i].ValueUSD, want)
		}
		if !approxEqual(points[i].ValueSGD, want*1.35, 1e-9) {
			t.Errorf("day %d SGD value = %v, want %v", i, points[i].ValueSGD, want*1.35)
		}
	}
}

func TestHistoricalSeries_QuantityFollowsTrades(t *testing.T) {
	source := &fakeSource{
		histories: map[string][]models.PricePoint{
			"X": {
				{Date: date(2024, 1, 1), Close: 10},
				{Date: date(2024, 1, 2), Close: 10},
				{Date: date(2024, 1, 3), Close: 10},
			},
		},
	}
	valuer := testValuer(source)

	adjusted := map[string][]models.AdjustedTrade{
		"X": {
			adjTrade("X", 2024, 1, 1, 10, 10),
			adjTrade("X", 2024, 1, 3, -4, 10),
		},
	}
	positions := map[string]*models.Position{
		"X": {Symbol: "X", Currency: "USD", Quantity: 6, CostBasis: 60, AvgCost: 10},
	}

	points, _ := valuer.HistoricalSeries(context.Background(), adjusted, positions, date(2024, 1, 3))
	want := []float64{100, 100, 60}
	for i, w := range want {
		if !approxEqual(points[i].ValueUSD, w, 1e-9) {
			t.Errorf("day %d value = %v, want %v", i, points[i].ValueUSD, w)
		}
	}
}

func TestHistoricalSeries_MissingHistoryFlagged(t *testing.T) {
	source := &fakeSource{
		histories: map[string][]models.PricePoint{
			"X": {{Date: date(2024, 1, 1), Close: 10}},
		},
	}
	valuer := testValuer(source)

	adjusted := map[string][]models.AdjustedTrade{
		"X":    {adjTrade("X", 2024, 1, 1, 10, 10)},
		"GONE": {adjTrade("GONE", 2024, 1, 1, 2, 50)},
	}
	positions := map[string]*models.Position{
		"X":    {Symbol: "X", Currency: "USD", Quantity: 10, CostBasis: 100, AvgCost: 10},
		"GONE": {Symbol: "GONE", Currency: "USD", Quantity: 2, CostBasis: 100, AvgCost: 50},
	}

	points, unavailable := valuer.HistoricalSeries(context.Background(), adjusted, positions, date(2024, 1, 2))
	if !unavailable["GONE"] {
		t.Error("expected GONE flagged as unavailable")
	}
	// GONE contributes nothing; X carries the series alone.
	for i, p := range points {
		if !approxEqual(p.ValueUSD, 100, 1e-9) {
			t.Errorf("day %d value = %v, want 100", i, p.ValueUSD)
		}
	}
}
