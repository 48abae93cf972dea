package services

import (
	"math"
	"sort"

	"github.com/dlow/portfolio-dashboard/internal/models"
)

// CalculateXIRR computes the money-weighted annualised internal rate of
// return from a dated cash-flow sequence: the rate r at which the sum of
// amount_i / (1+r)^(days_i/365) is zero. The caller appends the synthetic
// terminal flow (current market value at today's date) before calling.
//
// Newton-Raphson runs first with a bisection fallback. The second return
// value is false when no return can be computed: fewer than two flows, all
// flows of one sign, or no convergence within the iteration budget. Callers
// must surface that as "unavailable", which is not the same as a 0% return.
func CalculateXIRR(flows []models.CashFlow) (float64, bool) {
	if len(flows) < 2 {
		return 0, false
	}

	sorted := make([]models.CashFlow, len(flows))
	copy(sorted, flows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	hasNeg, hasPos := false, false
	for _, f := range sorted {
		if f.Amount < 0 {
			hasNeg = true
		}
		if f.Amount > 0 {
			hasPos = true
		}
	}
	if !hasNeg || !hasPos {
		return 0, false
	}

	// Year fractions from the first flow, 365-day convention.
	base := sorted[0].Date
	years := make([]float64, len(sorted))
	for i, f := range sorted {
		years[i] = f.Date.Sub(base).Hours() / 24 / 365.0
	}

	if rate, ok := newtonXIRR(sorted, years); ok {
		return rate, true
	}
	return bisectXIRR(sorted, years)
}

const (
	xirrMaxIter   = 100
	xirrTolerance = 1e-6
	xirrMinRate   = -0.999
)

func xirrNPV(flows []models.CashFlow, years []float64, rate float64) float64 {
	sum := 0.0
	for i, f := range flows {
		sum += f.Amount / math.Pow(1+rate, years[i])
	}
	return sum
}

func newtonXIRR(flows []models.CashFlow, years []float64) (float64, bool) {
	// Seed from the simple return when it is sane, otherwise 10%.
	totalIn, totalOut := 0.0, 0.0
	for _, f := range flows {
		if f.Amount < 0 {
			totalOut -= f.Amount
		} else {
			totalIn += f.Amount
		}
	}
	guess := 0.1
	if totalOut > 0 {
		simple := totalIn/totalOut - 1
		if simple > -0.9 && simple < 10 {
			guess = simple
		}
	}

	rate := guess
	for iter := 0; iter < xirrMaxIter; iter++ {
		npv := 0.0
		dnpv := 0.0

		for i, f := range flows {
			y := years[i]
			b := 1 + rate
			if b <= 0 {
				rate = xirrMinRate
				b = 1 + rate
			}
			discount := math.Pow(b, y)
			if discount == 0 {
				continue
			}
			npv += f.Amount / discount
			if y != 0 {
				dnpv -= y * f.Amount / (discount * b)
			}
		}

		if math.Abs(npv) < xirrTolerance {
			if math.IsNaN(rate) || math.IsInf(rate, 0) {
				return 0, false
			}
			return rate, true
		}
		if dnpv == 0 {
			return 0, false
		}

		next := rate - npv/dnpv
		if next < xirrMinRate {
			next = xirrMinRate
		}
		if next > 100 {
			next = 100
		}
		rate = next
	}

	return 0, false
}

func bisectXIRR(flows []models.CashFlow, years []float64) (float64, bool) {
	lo, hi := -0.99, 10.0
	npvLo := xirrNPV(flows, years, lo)
	npvHi := xirrNPV(flows, years, hi)

	if math.IsNaN(npvLo) || math.IsNaN(npvHi) || npvLo*npvHi > 0 {
		return 0, false
	}

	for iter := 0; iter < 2*xirrMaxIter; iter++ {
		mid := (lo + hi) / 2
		npvMid := xirrNPV(flows, years, mid)
		if math.IsNaN(npvMid) {
			return 0, false
		}
		if math.Abs(npvMid) < xirrTolerance {
			return mid, true
		}
		if npvMid*npvLo < 0 {
			hi = mid
		} else {
			lo = mid
			npvLo = npvMid
		}
	}

	// Iteration budget spent without landing inside the tolerance: report no
	// rate rather than an unverified midpoint.
	mid := (lo + hi) / 2
	if npv := xirrNPV(flows, years, mid); !math.IsNaN(npv) && math.Abs(npv) < xirrTolerance {
		return mid, true
	}
	return 0, false
}
