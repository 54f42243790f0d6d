package estimate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

func TestEstimateBill(t *testing.T) {
	tests := []struct {
		name     string
		profile  models.HomeProfile
		amount   int
		category string
	}{
		{
			name:     "semi-detached 4 bed with EV and shower",
			profile:  models.HomeProfile{HomeType: "Semi-detached", BedroomCount: "4", HasEV: true, HasElectricShower: true},
			amount:   245,
			category: CategoryHigh,
		},
		{"terraced 1 bed", models.HomeProfile{HomeType: "terraced", BedroomCount: "1"}, 105, CategoryLow},
		{"apartment capped at 3 bed value", models.HomeProfile{HomeType: "apartment", BedroomCount: "5+"}, 140, CategoryAverage},
		{"detached 5+ bed", models.HomeProfile{HomeType: "detached", BedroomCount: "5+"}, 200, CategoryAverage},
		{"detached 2 bed with heat pump", models.HomeProfile{HomeType: "detached", BedroomCount: "2", HasHeatPump: true}, 240, CategoryHigh},
		{"unknown home type", models.HomeProfile{HomeType: "houseboat", BedroomCount: "2"}, 140, CategoryAverage},
		{"empty profile", models.HomeProfile{}, 140, CategoryAverage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateBill(tt.profile)
			assert.Equal(t, tt.amount, got.Amount)
			assert.Equal(t, tt.category, got.Category)
		})
	}
}

func TestBaseMonthlyCost_IsTotal(t *testing.T) {
	homeTypes := []string{models.HomeTerraced, models.HomeSemiDetached, models.HomeDetached, models.HomeApartment, "", "unknown"}
	bedrooms := []string{"1", "2", "3", "4", "5+", "", "lots"}

	for _, h := range homeTypes {
		for _, b := range bedrooms {
			assert.Positive(t, BaseMonthlyCost(h, b), "homeType=%q bedrooms=%q", h, b)
		}
	}
}

func TestCategorize_Boundaries(t *testing.T) {
	assert.Equal(t, CategoryLow, Categorize(139))
	assert.Equal(t, CategoryAverage, Categorize(140))
	assert.Equal(t, CategoryAverage, Categorize(200))
	assert.Equal(t, CategoryHigh, Categorize(201))
}

func TestEnergyIndependence(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	got := EnergyIndependence(4500, 250, at, Source)
	assert.Equal(t, 4500.0, got.AverageConsumptionKwh)
	assert.Equal(t, 100, got.RawIndependenceRatioPct)
	assert.Equal(t, 65, got.PracticalIndependencePct)
	assert.Equal(t, SelfConsumptionFactor, got.SelfConsumptionFactor)
	assert.Equal(t, Source, got.Source)
	assert.Equal(t, at, got.CalculatedAt)

	assert.Equal(t, got, EnergyIndependence(4500, 250, at, Source))
}

func TestEnergyIndependence_Defaults(t *testing.T) {
	got := EnergyIndependence(0, 350, time.Now(), Source)
	assert.Zero(t, got.RawIndependenceRatioPct)
	assert.Zero(t, got.PracticalIndependencePct)

	assert.Equal(t, DefaultConsumptionKwh, AverageConsumption(0))
	assert.Equal(t, DefaultConsumptionKwh, AverageConsumption(275))
}

func TestEnergyIndependence_Monotonic(t *testing.T) {
	prev := -1
	for gen := 0.0; gen <= 20000; gen += 37 {
		got := EnergyIndependence(gen, 450, time.Time{}, Source)
		assert.GreaterOrEqual(t, got.PracticalIndependencePct, prev)
		assert.LessOrEqual(t, got.PracticalIndependencePct, got.RawIndependenceRatioPct)
		prev = got.PracticalIndependencePct
	}
}

func TestEconomics(t *testing.T) {
	p := models.Proposal{
		MonthlyGeneration: twelveMonths(400),
		SystemCost:        9800,
		GrantAmount:       1800,
		AnnualSavings:     1000,
	}

	got := Economics(p, 250)
	assert.Equal(t, 250, got.EstimatedMonthlyCost)
	assert.Equal(t, 4800.0, got.AnnualGenerationKwh)
	assert.Equal(t, 8000.0, got.NetSystemCost)
	assert.Equal(t, 8.0, got.PaybackYears)
	assert.Equal(t, 25000.0, got.LifetimeSavings)
	assert.Equal(t, 1440.0, got.CO2AvoidedKg)
}

func TestEconomics_ImpliedSavings(t *testing.T) {
	// 3000 kWh * 0.65 = 1950 kWh used, at 150*12/3000 = 0.6 euro/kWh
	p := models.Proposal{MonthlyGeneration: twelveMonths(250), SystemCost: 5850}

	got := Economics(p, 150)
	assert.Equal(t, 1170.0, got.AnnualSavings)
	assert.Equal(t, 5.0, got.PaybackYears)
}

func TestEconomics_MissingInputs(t *testing.T) {
	assert.Equal(t, models.Economics{}, Economics(models.Proposal{}, 250))
}

func TestCalculator_Refresh(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	st := store.New(store.NewRedisBackend(client, "funnel"), "s1", logger.NewTestLogger(t))
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	calc := NewCalculator(logger.NewTestLogger(t)).WithClock(func() time.Time { return at })

	// Nothing stored yet: zeroed artifacts.
	res, err := calc.Refresh(ctx, st)
	require.NoError(t, err)
	assert.Zero(t, res.Energy.RawIndependenceRatioPct)

	require.NoError(t, store.Proposal.Save(ctx, st, models.Proposal{MonthlyGeneration: twelveMonths(375)}))
	require.NoError(t, store.Bill.Save(ctx, st, models.BillAnswers{Tier: 250, Source: models.BillSourceBand}))

	res, err = calc.Refresh(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Energy.RawIndependenceRatioPct)
	assert.Equal(t, 65, res.Energy.PracticalIndependencePct)

	stored, found, err := store.EnergyIndependence.Load(ctx, st)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, res.Energy, stored)

	again, err := calc.Refresh(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestCalculator_UsesEstimatedTierWithoutBill(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	st := store.New(store.NewRedisBackend(client, "funnel"), "s1", logger.NewNoOpLogger())
	ctx := context.Background()

	require.NoError(t, store.HomeProfile.Save(ctx, st, models.HomeProfile{HomeType: models.HomeTerraced, BedroomCount: "1"}))
	require.NoError(t, store.Proposal.Save(ctx, st, models.Proposal{MonthlyGeneration: twelveMonths(100), SystemCost: 6000}))

	res, err := NewCalculator(logger.NewNoOpLogger()).Refresh(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 105, res.Economics.EstimatedMonthlyCost)
	assert.Equal(t, DefaultConsumptionKwh, res.Energy.AverageConsumptionKwh)
}

func twelveMonths(kwh float64) []models.MonthlyGeneration {
	labels := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	out := make([]models.MonthlyGeneration, len(labels))
	for i, l := range labels {
		out[i] = models.MonthlyGeneration{Label: l, Kwh: kwh}
	}
	return out
}
