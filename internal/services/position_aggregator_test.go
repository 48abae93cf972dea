package services

import (
	"testing"
	"time"

	"github.com/dlow/portfolio-dashboard/internal/models"
)

func adjTrade(symbol string, y int, m, d int, qty, price float64) models.AdjustedTrade {
	return models.AdjustedTrade{
		Trade: models.Trade{
			Symbol:   symbol,
			Date:     date(y, time.Month(m), d),
			Quantity: qty,
			Price:    price,
			Currency: "USD",
		},
		AdjQuantity: qty,
		AdjPrice:    price,
	}
}

func TestAggregatePositions_AverageCost(t *testing.T) {
	adjusted := map[string][]models.AdjustedTrade{
		"AAPL": {
			adjTrade("AAPL", 2024, 1, 2, 10, 100),
			adjTrade("AAPL", 2024, 2, 1, 10, 200),
		},
	}

	positions := AggregatePositions(adjusted)
	pos := positions["AAPL"]
	if pos == nil {
		t.Fatal("expected AAPL position")
	}
	if pos.Quantity != 20 {
		t.Errorf("quantity = %v, want 20", pos.Quantity)
	}
	if pos.CostBasis != 3000 {
		t.Errorf("cost basis = %v, want 3000", pos.CostBasis)
	}
	if pos.AvgCost != 150 {
		t.Errorf("avg cost = %v, want 150", pos.AvgCost)
	}
}

func TestAggregatePositions_SellReducesBasisProportionally(t *testing.T) {
	adjusted := map[string][]models.AdjustedTrade{
		"MSFT": {
			adjTrade("MSFT", 2024, 1, 2, 10, 100),
			adjTrade("MSFT", 2024, 3, 1, -4, 150),
		},
	}

	positions := AggregatePositions(adjusted)
	pos := positions["MSFT"]
	if pos.Quantity != 6 {
		t.Errorf("quantity = %v, want 6", pos.Quantity)
	}
	// 4 shares leave at avg cost 100: basis 1000 - 400 = 600.
	if !approxEqual(pos.CostBasis, 600, 1e-9) {
		t.Errorf("cost basis = %v, want 600", pos.CostBasis)
	}
	if !approxEqual(pos.AvgCost, 100, 1e-9) {
		t.Errorf("avg cost = %v, want 100", pos.AvgCost)
	}
}

func TestAggregatePositions_CashFlowSigns(t *testing.T) {
	adjusted := map[string][]models.AdjustedTrade{
		"MSFT": {
			adjTrade("MSFT", 2024, 1, 2, 10, 100),
			adjTrade("MSFT", 2024, 3, 1, -4, 150),
		},
	}

	pos := AggregatePositions(adjusted)["MSFT"]
	if len(pos.CashFlows) != 2 {
		t.Fatalf("expected 2 cash flows, got %d", len(pos.CashFlows))
	}
	if pos.CashFlows[0].Amount != -1000 {
		t.Errorf("buy flow = %v, want -1000", pos.CashFlows[0].Amount)
	}
	if pos.CashFlows[1].Amount != 600 {
		t.Errorf("sell flow = %v, want 600", pos.CashFlows[1].Amount)
	}
}

func TestAggregatePositions_OversellClampsToZero(t *testing.T) {
	adjusted := map[string][]models.AdjustedTrade{
		"TSLA": {
			adjTrade("TSLA", 2024, 1, 2, 5, 200),
			adjTrade("TSLA", 2024, 2, 1, -8, 210),
			adjTrade("TSLA", 2024, 3, 1, 3, 180),
		},
	}

	pos := AggregatePositions(adjusted)["TSLA"]
	if pos == nil {
		t.Fatal("expected TSLA position (reopened after oversell)")
	}
	if !pos.Oversold {
		t.Error("expected Oversold flag")
	}
	// Oversell clamps to zero, then the later buy reopens with 3 @ 180.
	if pos.Quantity != 3 {
		t.Errorf("quantity = %v, want 3", pos.Quantity)
	}
	if !approxEqual(pos.AvgCost, 180, 1e-9) {
		t.Errorf("avg cost = %v, want 180", pos.AvgCost)
	}
}

func TestAggregatePositions_ClosedPositionExcluded(t *testing.T) {
	adjusted := map[string][]models.AdjustedTrade{
		"SOLD": {
			adjTrade("SOLD", 2024, 1, 2, 10, 50),
			adjTrade("SOLD", 2024, 2, 1, -10, 60),
		},
		"HELD": {
			adjTrade("HELD", 2024, 1, 2, 1, 50),
		},
	}

	positions := AggregatePositions(adjusted)
	if _, ok := positions["SOLD"]; ok {
		t.Error("fully sold position should be excluded from holdings")
	}
	if _, ok := positions["HELD"]; !ok {
		t.Error("open position missing")
	}
}
