package models

import "time"

// Coordinates is a geocoded point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is the address captured at the first funnel step.
type Location struct {
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
	Confirmed   bool        `json:"confirmed"`
}

// BillBands are the fixed monthly bill choices (euro/month, median of range).
var BillBands = []int{150, 250, 350, 450, 550, 700}

// BillAnswers records how the electricity bill tier was obtained.
type BillAnswers struct {
	Tier      int    `json:"tier"`
	Source    string `json:"source"` // band | manual | estimate
	Estimated bool   `json:"estimated"`
	Category  string `json:"category,omitempty"`
}

const (
	BillSourceBand     = "band"
	BillSourceManual   = "manual"
	BillSourceEstimate = "estimate"
)

// Home types accepted by the bill estimator.
const (
	HomeTerraced     = "terraced"
	HomeSemiDetached = "semi-detached"
	HomeDetached     = "detached"
	HomeApartment    = "apartment"
)

// HomeProfile is used only to estimate a bill when the visitor does not know it.
type HomeProfile struct {
	HomeType          string `json:"homeType"`
	BedroomCount      string `json:"bedroomCount"`
	HasEV             bool   `json:"hasEV"`
	HasHeatPump       bool   `json:"hasHeatPump"`
	HasElectricShower bool   `json:"hasElectricShower"`
}

// Complete reports whether the estimator has its required answers.
func (p HomeProfile) Complete() bool {
	return p.HomeType != "" && p.BedroomCount != ""
}

// Contact is progressively filled during the funnel.
type Contact struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Known reports whether name and email are both present, so later steps skip asking.
func (c Contact) Known() bool {
	return c.FullName != "" && c.Email != ""
}

// MonthlyGeneration is one entry of the proposal's 12-month forecast.
type MonthlyGeneration struct {
	Label string  `json:"label"`
	Kwh   float64 `json:"kwh"`
}

// Proposal is the value object returned by the proposal service.
type Proposal struct {
	SystemSizeKwp     float64                `json:"systemSizeKwp"`
	PanelCount        int                    `json:"panelCount"`
	MonthlyGeneration []MonthlyGeneration    `json:"monthlyGeneration"`
	SystemCost        float64                `json:"systemCost"`
	GrantAmount       float64                `json:"grantAmount"`
	AnnualSavings     float64                `json:"annualSavings"`
	RoofArea          float64                `json:"roofArea"`
	MaxPanels         int                    `json:"maxPanels"`
	RoofDefaults      map[string]interface{} `json:"roofDefaults,omitempty"`
	Raw               map[string]interface{} `json:"raw,omitempty"`
}

// DerivedEnergy is the energy-independence artifact written back to the store.
type DerivedEnergy struct {
	AnnualPVGenerationKwh    float64   `json:"annualPVGenerationKwh"`
	AverageConsumptionKwh    float64   `json:"averageConsumptionKwh"`
	RawIndependenceRatioPct  int       `json:"rawIndependenceRatioPct"`
	PracticalIndependencePct int       `json:"practicalIndependencePct"`
	SelfConsumptionFactor    float64   `json:"selfConsumptionFactor"`
	CalculatedAt             time.Time `json:"calculatedAt"`
	Source                   string    `json:"source"`
}

// Economics holds the savings figures derived from a proposal.
type Economics struct {
	EstimatedMonthlyCost int     `json:"estimatedMonthlyCost"`
	AnnualConsumptionKwh float64 `json:"annualConsumptionKwh"`
	AnnualGenerationKwh  float64 `json:"annualGenerationKwh"`
	NetSystemCost        float64 `json:"netSystemCost"`
	AnnualSavings        float64 `json:"annualSavings"`
	PaybackYears         float64 `json:"paybackYears"`
	LifetimeSavings      float64 `json:"lifetimeSavings"`
	CO2AvoidedKg         float64 `json:"co2AvoidedKg"`
}

// CallSlot is the chosen appointment. Date is "YYYY-MM-DD", Time is "h:mm AM/PM".
type CallSlot struct {
	Date string `json:"date"`
	Time string `json:"time,omitempty"`
}

// Booking outcomes.
const (
	BookingNone   = "none"
	BookingBooked = "booked"
	BookingFailed = "failed"
)

// BookingOutcome is the last result of a call booking attempt.
type BookingOutcome struct {
	Status    string    `json:"status"`
	LastError string    `json:"lastError,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LeadStatus is the per-funnel "has the user signed up" flag plus the email used.
type LeadStatus struct {
	SignedUp    bool      `json:"signedUp"`
	Email       string    `json:"email,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// BookedCall is one already-booked call as listed by the backend.
type BookedCall struct {
	CallDate string `json:"call_date"` // "Month D, YYYY"
	CallTime string `json:"call_time"` // "h:mm AM/PM"
}
