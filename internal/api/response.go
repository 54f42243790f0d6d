package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"solar-funnel/internal/common/errors"
)

// errorBody is the shape every failed request answers with.
type errorBody struct {
	Code      errors.ErrorCode `json:"code"`
	Category  string           `json:"category"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Details   string           `json:"details,omitempty"`
	Retryable bool             `json:"retryable"`
}

var categoryTitles = map[string]string{
	"validation":   "Invalid Details",
	"availability": "Time Unavailable",
	"duplicate":    "Already Exists",
	"server":       "Server Error",
	"network":      "Connection Problem",
	"flow":         "Step Not Available",
	"storage":      "Service Unavailable",
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.Normalize(err)
	category := errors.GetErrorCategory(stdErr.Code)

	title, _ := stdErr.Metadata["title"].(string)
	if title == "" {
		title = categoryTitles[category]
	}
	if title == "" {
		title = "Something Went Wrong"
	}

	status := errors.HTTPStatus(stdErr)
	fields := map[string]interface{}{
		"path":   r.URL.Path,
		"code":   stdErr.Code,
		"status": status,
	}
	if status >= http.StatusInternalServerError {
		fields["details"] = stdErr.Details
		s.logger.Error("Request failed", fields)
	} else {
		s.logger.Debug("Request rejected", fields)
	}

	body := errorBody{
		Code:      stdErr.Code,
		Category:  category,
		Title:     title,
		Message:   stdErr.Message,
		Retryable: stdErr.Retryable,
	}
	if category == "validation" || category == "flow" {
		body.Details = stdErr.Details
	}
	writeJSON(w, status, body)
}

// decode reads an optional JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return errors.NewValidationFailedError("body", err.Error())
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.NewValidationFailedError("body", "request body is not valid JSON")
	}
	return nil
}
