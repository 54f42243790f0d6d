// Package estimate holds the deterministic derived-metrics formulas of the funnel:
// bill estimation from a home profile, energy independence and savings economics.
package estimate

import (
	"strconv"
	"strings"

	"solar-funnel/internal/models"
)

// Bill categories.
const (
	CategoryLow     = "Low"
	CategoryAverage = "Average"
	CategoryHigh    = "High"
)

const (
	defaultBaseCost = 140

	surchargeEV             = 60
	surchargeHeatPump       = 80
	surchargeElectricShower = 15
)

// baseCosts is indexed by bedroom bucket: 1, 2, 3, 4, 5+.
var baseCosts = map[string][5]int{
	models.HomeTerraced:     {105, 125, 140, 140, 140},
	models.HomeApartment:    {105, 125, 140, 140, 140},
	models.HomeSemiDetached: {150, 150, 150, 170, 190},
	models.HomeDetached:     {160, 160, 160, 180, 200},
}

// BillEstimate is a monthly bill derived from a home profile.
type BillEstimate struct {
	Amount   int    `json:"amount"`
	Category string `json:"category"`
}

// BaseMonthlyCost looks up the base bill for a home type and bedroom count.
// It is total: unknown home types return 140 and unknown bedroom counts use
// the 3-bedroom value.
func BaseMonthlyCost(homeType, bedrooms string) int {
	row, ok := baseCosts[normalizeHomeType(homeType)]
	if !ok {
		return defaultBaseCost
	}
	return row[bedroomBucket(bedrooms)]
}

// EstimateBill applies the appliance surcharges to the base cost.
func EstimateBill(p models.HomeProfile) BillEstimate {
	amount := BaseMonthlyCost(p.HomeType, p.BedroomCount)
	if p.HasEV {
		amount += surchargeEV
	}
	if p.HasHeatPump {
		amount += surchargeHeatPump
	}
	if p.HasElectricShower {
		amount += surchargeElectricShower
	}
	return BillEstimate{Amount: amount, Category: Categorize(amount)}
}

// Categorize buckets a monthly amount: Low below 140, High above 200.
func Categorize(amount int) string {
	switch {
	case amount < 140:
		return CategoryLow
	case amount > 200:
		return CategoryHigh
	default:
		return CategoryAverage
	}
}

func normalizeHomeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "-")
}

func bedroomBucket(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "+")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 2
	}
	if n > 5 {
		n = 5
	}
	return n - 1
}
