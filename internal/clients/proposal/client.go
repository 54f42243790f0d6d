// Package proposal is the client of the external proposal-generation service.
package proposal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"solar-funnel/internal/common/config"
	httpclient "solar-funnel/internal/common/http"
	"solar-funnel/internal/common/logger"
	"solar-funnel/internal/common/metrics"
	"solar-funnel/internal/common/validation"
	"solar-funnel/internal/models"
)

const serviceName = "proposal"

type request struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	BillAmount int     `json:"billAmount"`
}

type response struct {
	Data            json.RawMessage        `json:"data"`
	RoofArea        *float64               `json:"roof_area"`
	RoofDefaultData map[string]interface{} `json:"roof_default_data"`
	MaxPanels       *int                   `json:"max_panels"`
}

// proposalData is the subset of the opaque data object the funnel reads.
type proposalData struct {
	SystemSizeKwp     float64                    `json:"system_size_kwp"`
	PanelCount        int                        `json:"panel_count"`
	MonthlyGeneration []models.MonthlyGeneration `json:"monthly_generation"`
	SystemCost        float64                    `json:"system_cost"`
	GrantAmount       float64                    `json:"grant_amount"`
	AnnualSavings     float64                    `json:"annual_savings"`
}

type Client struct {
	http   *resty.Client
	path   string
	logger logger.Logger
}

func New(cfg config.ProposalConfig, log logger.Logger) *Client {
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["x-api-key"] = cfg.APIKey
	}
	return &Client{
		http: httpclient.NewClient(httpclient.ClientOptions{
			BaseURL: cfg.BaseURL,
			Timeout: config.GetDuration(cfg.Timeout),
			Headers: headers,
		}),
		path:   cfg.Path,
		logger: log,
	}
}

// FetchProposal requests sizing and savings for a location and monthly bill.
func (c *Client) FetchProposal(ctx context.Context, coords models.Coordinates, billAmount int) (*models.Proposal, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request{Lat: coords.Lat, Lng: coords.Lng, BillAmount: billAmount}).
		Post(c.path)
	metrics.ExternalCallDuration.WithLabelValues(serviceName).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("proposal request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("proposal service returned %d", resp.StatusCode())
	}

	result, err := validation.ValidateBytes(validation.SchemaProposalResponse, resp.Body())
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("proposal response: %s", strings.Join(result.GetErrorMessages(), "; "))
	}

	var body response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	var data proposalData
	if err := json.Unmarshal(body.Data, &data); err != nil {
		return nil, fmt.Errorf("decode proposal data: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body.Data, &raw); err != nil {
		return nil, fmt.Errorf("decode proposal data: %w", err)
	}

	p := &models.Proposal{
		SystemSizeKwp:     data.SystemSizeKwp,
		PanelCount:        data.PanelCount,
		MonthlyGeneration: data.MonthlyGeneration,
		SystemCost:        data.SystemCost,
		GrantAmount:       data.GrantAmount,
		AnnualSavings:     data.AnnualSavings,
		RoofDefaults:      body.RoofDefaultData,
		Raw:               raw,
	}
	if body.RoofArea != nil {
		p.RoofArea = *body.RoofArea
	}
	if body.MaxPanels != nil {
		p.MaxPanels = *body.MaxPanels
	}

	c.logger.Debug("Proposal received", map[string]interface{}{
		"system_size_kwp": p.SystemSizeKwp,
		"panels":          p.PanelCount,
		"months":          len(p.MonthlyGeneration),
	})
	return p, nil
}
