package estimate

import (
	"math"
	"time"

	"solar-funnel/internal/models"
)

const (
	// SelfConsumptionFactor is the share of generated energy usable on site without storage.
	SelfConsumptionFactor = 0.65

	DefaultConsumptionKwh = 4200.0
)

var consumptionByTier = map[int]float64{
	150: 3000,
	250: 4500,
	350: 6000,
	450: 7500,
	550: 9000,
	700: 10000,
}

// AverageConsumption maps a bill tier to annual kWh. Tiers outside the band
// table, including manual amounts, use the default.
func AverageConsumption(tier int) float64 {
	if kwh, ok := consumptionByTier[tier]; ok {
		return kwh
	}
	return DefaultConsumptionKwh
}

// AnnualGeneration sums the monthly forecast.
func AnnualGeneration(months []models.MonthlyGeneration) float64 {
	var total float64
	for _, m := range months {
		if m.Kwh > 0 {
			total += m.Kwh
		}
	}
	return total
}

// EnergyIndependence computes raw and practical independence for a generation
// total and bill tier. A zero generation yields zero percentages, which callers
// read as "not yet computed".
func EnergyIndependence(generationKwh float64, tier int, calculatedAt time.Time, source string) models.DerivedEnergy {
	consumption := AverageConsumption(tier)
	out := models.DerivedEnergy{
		AnnualPVGenerationKwh: generationKwh,
		AverageConsumptionKwh: consumption,
		SelfConsumptionFactor: SelfConsumptionFactor,
		CalculatedAt:          calculatedAt.UTC(),
		Source:                source,
	}
	if generationKwh <= 0 {
		return out
	}
	out.RawIndependenceRatioPct = int(math.Round(100 * generationKwh / consumption))
	out.PracticalIndependencePct = int(math.Round(100 * generationKwh * SelfConsumptionFactor / consumption))
	return out
}
