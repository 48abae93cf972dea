package services

import (
	"math"

	"github.com/dlow/portfolio-dashboard/internal/models"
	log "github.com/sirupsen/logrus"
)

// AggregatePositions folds each symbol's adjusted trades, in date order, into
// a position under average-cost accounting:
//
//   - a buy of q shares at price p adds q to the quantity and q*p to the cost
//     basis, and records a negative cash flow of q*p;
//   - a sell removes the sold quantity at the running average cost (the cost
//     basis shrinks proportionally) and records the full proceeds as a
//     positive cash flow.
//
// A sell larger than the open quantity clamps the position to zero rather
// than going negative; the oversell is logged and the position is marked and
// treated as closed from then on. Positions that end with no open quantity
// are excluded from the result, matching the holdings view.
func AggregatePositions(adjusted map[string][]models.AdjustedTrade) map[string]*models.Position {
	positions := make(map[string]*models.Position, len(adjusted))

	for symbol, trades := range adjusted {
		if len(trades) == 0 {
			continue
		}

		pos := &models.Position{
			Symbol:   symbol,
			Currency: trades[0].Currency,
		}

		for _, t := range trades {
			amount := t.Cashflow()

			if t.AdjQuantity > 0 {
				pos.Quantity += t.AdjQuantity
				pos.CostBasis += amount
				pos.CashFlows = append(pos.CashFlows, models.CashFlow{
					Date:   t.Date,
					Amount: -amount,
				})
				continue
			}

			sellQty := -t.AdjQuantity
			pos.CashFlows = append(pos.CashFlows, models.CashFlow{
				Date:   t.Date,
				Amount: math.Abs(amount),
			})

			if sellQty > pos.Quantity {
				log.Warnf("oversell on %s: selling %.4f with only %.4f held; clamping to zero",
					symbol, sellQty, pos.Quantity)
				pos.Oversold = true
				sellQty = pos.Quantity
			}

			if pos.Quantity > 0 {
				avgCost := pos.CostBasis / pos.Quantity
				pos.CostBasis -= sellQty * avgCost
			}
			pos.Quantity -= sellQty
		}

		if pos.Quantity <= 0 {
			log.Infof("excluding %s from holdings: position fully closed", symbol)
			continue
		}

		pos.AvgCost = pos.CostBasis / pos.Quantity
		positions[symbol] = pos
	}

	return positions
}
