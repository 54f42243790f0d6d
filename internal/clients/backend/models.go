package backend

import (
	"fmt"

	"github.com/goccy/go-json"

	"solar-funnel/internal/models"
)

// bookingsPage is one page of GET {bookings}. Entries are decoded one by one
// so a malformed entry only loses itself.
type bookingsPage struct {
	Calls   []json.RawMessage `json:"calls"`
	HasNext bool              `json:"has_next"`
}

// SolarPlanData is the accumulated plan attached to a booking.
type SolarPlanData struct {
	Proposal           *models.Proposal      `json:"proposal,omitempty"`
	EnergyIndependence *models.DerivedEnergy `json:"energy_independence,omitempty"`
	Economics          *models.Economics     `json:"economics,omitempty"`
	Bill               *models.BillAnswers   `json:"electricity_bill,omitempty"`
	HomeProfile        *models.HomeProfile   `json:"home_profile,omitempty"`
	RoofArea           float64               `json:"roof_area,omitempty"`
}

// CreateLeadRequest is the body of POST {create-lead}.
type CreateLeadRequest struct {
	Name               string                `json:"name"`
	Email              string                `json:"email"`
	PhoneNumber        *string               `json:"phone_number"`
	BusinessProposal   *models.Proposal      `json:"business_proposal"`
	PersonaliseAnswers map[string]string     `json:"personalise_answers"`
	SelectedLocation   *models.Location      `json:"selectedLocation"`
	RoofArea           float64               `json:"roof_area"`
	EnergyIndependence *models.DerivedEnergy `json:"energy_independence"`
	FinanceInfo        *models.Economics     `json:"financeInfo"`
	Consent            bool                  `json:"consent"`
	CreditUnion        string                `json:"credit_union"`
}

// BookCallRequest is the body of POST {book-call}. CallDate is "Month D, YYYY".
type BookCallRequest struct {
	Email              string            `json:"email"`
	Name               string            `json:"name"`
	Phone              string            `json:"phone"`
	CallDate           string            `json:"call_date"`
	CallTime           string            `json:"call_time"`
	SolarPlanData      SolarPlanData     `json:"solar_plan_data"`
	PersonaliseAnswers map[string]string `json:"personalise_answers"`
	SelectedLocation   *models.Location  `json:"selectedLocation"`
	Branding           interface{}       `json:"branding"`
	CompanyID          string            `json:"company_id"`
}

// APIError is a failed backend call. Status is 0 when no response arrived.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("backend unreachable: %v", e.Err)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorBody covers the message shapes the backend answers errors with.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (b errorBody) text() string {
	switch {
	case b.Message != "":
		return b.Message
	case b.Data.Message != "":
		return b.Data.Message
	default:
		return b.Error
	}
}
