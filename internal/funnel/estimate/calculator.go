package estimate

import (
	"context"
	"time"

	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/funnel/store"
	"solar-funnel/internal/models"
)

// Source tags derived artifacts written by the Calculator.
const Source = "energy-calculator"

// Calculator reads raw answers from a session store and writes the derived
// energy and economics artifacts back.
type Calculator struct {
	now    func() time.Time
	logger logger.Logger
}

func NewCalculator(log logger.Logger) *Calculator {
	return &Calculator{now: time.Now, logger: log}
}

// WithClock replaces the clock used for calculatedAt.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Result bundles what Refresh wrote.
type Result struct {
	Energy    models.DerivedEnergy `json:"energyIndependence"`
	Economics models.Economics     `json:"economics"`
}

// Refresh recomputes from the stored proposal and bill tier. Missing inputs
// produce zeroed artifacts rather than an error.
func (c *Calculator) Refresh(ctx context.Context, st *store.Store) (*Result, error) {
	proposal, _, err := store.Proposal.Load(ctx, st)
	if err != nil {
		return nil, err
	}
	tier, err := c.tier(ctx, st)
	if err != nil {
		return nil, err
	}

	energy := EnergyIndependence(AnnualGeneration(proposal.MonthlyGeneration), tier, c.now(), Source)
	econ := Economics(proposal, tier)

	if err := st.Merge(ctx, models.KeyEnergyIndependence, energy); err != nil {
		return nil, err
	}
	if err := store.Economics.Save(ctx, st, econ); err != nil {
		return nil, err
	}

	c.logger.Debug("Derived metrics refreshed", map[string]interface{}{
		"session":   st.Namespace(),
		"tier":      tier,
		"raw_pct":   energy.RawIndependenceRatioPct,
		"practical": energy.PracticalIndependencePct,
	})
	return &Result{Energy: energy, Economics: econ}, nil
}

// tier returns the known bill, else an estimate from a complete home profile, else 0.
func (c *Calculator) tier(ctx context.Context, st *store.Store) (int, error) {
	bill, found, err := store.Bill.Load(ctx, st)
	if err != nil {
		return 0, err
	}
	if found && bill.Tier > 0 {
		return bill.Tier, nil
	}
	profile, found, err := store.HomeProfile.Load(ctx, st)
	if err != nil {
		return 0, err
	}
	if found && profile.Complete() {
		return EstimateBill(profile).Amount, nil
	}
	return 0, nil
}
