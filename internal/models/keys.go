package models

// Answer store keys. Each key owns one JSON schema, the type noted alongside.
const (
	KeyLocation           = "selectedLocation"   // Location
	KeyBill               = "electricityBill"    // BillAnswers
	KeyHomeProfile        = "homeProfile"        // HomeProfile
	KeyProposal           = "solarProposal"      // Proposal
	KeyEnergyIndependence = "energyIndependence" // DerivedEnergy
	KeyEconomics          = "economics"          // Economics
	KeyRoofArea           = "roofArea"           // float64
	KeyContact            = "contactInfo"        // Contact
	KeyPersonaliseAnswers = "personaliseAnswers" // map[string]string
	KeySelectedInstaller  = "selectedInstaller"  // string
	KeySiteVisit          = "siteVisit"          // map[string]interface{}
	KeyFunnelStep         = "funnelStep"         // string
	KeyCallScheduling     = "callScheduling"     // SchedulingState
	KeySelectedCallSlot   = "selectedCallSlot"   // CallSlot
	KeyBookingOutcome     = "bookingOutcome"     // BookingOutcome
	KeyNavigatedInApp     = "navigatedInApp"     // bool
	KeyLeadStatusPrefix   = "leadStatus:"        // LeadStatus, suffixed by funnel name
	KeySessionInitialised = "sessionInitialised" // time.Time
)

// SchedulingState is the persisted state of the call-scheduling sub-flow.
type SchedulingState struct {
	Step string `json:"step"`
}
