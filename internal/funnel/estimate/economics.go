package estimate

import (
	"github.com/shopspring/decimal"

	"solar-funnel/internal/models"
)

const (
	lifetimeYears = 25

	// co2KgPerKwh is the grid carbon intensity displaced by each generated kWh.
	co2KgPerKwh = 0.3
)

// Economics derives savings, payback and CO2 figures from a proposal and bill tier.
// Missing inputs give a zero value.
func Economics(p models.Proposal, tier int) models.Economics {
	generation := AnnualGeneration(p.MonthlyGeneration)
	if generation == 0 && p.SystemCost == 0 {
		return models.Economics{}
	}

	consumption := AverageConsumption(tier)
	net := decimal.NewFromFloat(p.SystemCost).Sub(decimal.NewFromFloat(p.GrantAmount))
	if net.IsNegative() {
		net = decimal.Zero
	}

	savings := decimal.NewFromFloat(p.AnnualSavings)
	if savings.IsZero() && tier > 0 {
		savings = impliedSavings(generation, consumption, tier)
	}

	var payback decimal.Decimal
	if savings.IsPositive() {
		payback = net.Div(savings).Round(1)
	}

	return models.Economics{
		EstimatedMonthlyCost: tier,
		AnnualConsumptionKwh: consumption,
		AnnualGenerationKwh:  generation,
		NetSystemCost:        net.Round(2).InexactFloat64(),
		AnnualSavings:        savings.Round(2).InexactFloat64(),
		PaybackYears:         payback.InexactFloat64(),
		LifetimeSavings:      savings.Mul(decimal.NewFromInt(lifetimeYears)).Round(2).InexactFloat64(),
		CO2AvoidedKg:         decimal.NewFromFloat(generation).Mul(decimal.NewFromFloat(co2KgPerKwh)).Round(1).InexactFloat64(),
	}
}

// impliedSavings values the self-consumed generation at the tariff implied by
// the bill: (tier * 12) / consumption euro per kWh.
func impliedSavings(generation, consumption float64, tier int) decimal.Decimal {
	if consumption <= 0 {
		return decimal.Zero
	}
	used := decimal.NewFromFloat(generation).Mul(decimal.NewFromFloat(SelfConsumptionFactor))
	cons := decimal.NewFromFloat(consumption)
	if used.GreaterThan(cons) {
		used = cons
	}
	tariff := decimal.NewFromInt(int64(tier * 12)).Div(cons)
	return used.Mul(tariff)
}
