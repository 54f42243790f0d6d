package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaName identifies one of the boundary schemas below.
type SchemaName string

const (
	SchemaBookingsPage      SchemaName = "bookings-page"
	SchemaProposalResponse  SchemaName = "proposal-response"
	SchemaCreateLeadRequest SchemaName = "create-lead-request"
	SchemaBookCallRequest   SchemaName = "book-call-request"
)

var schemaSources = map[SchemaName]string{
	SchemaBookingsPage: `{
		"type": "object",
		"required": ["calls"],
		"properties": {
			"calls": {"type": "array"},
			"has_next": {"type": "boolean"}
		}
	}`,
	SchemaProposalResponse: `{
		"type": "object",
		"required": ["data"],
		"properties": {
			"data": {"type": "object"},
			"roof_area": {"type": ["number", "null"]},
			"max_panels": {"type": ["integer", "null"]}
		}
	}`,
	SchemaCreateLeadRequest: `{
		"type": "object",
		"required": ["name", "email", "consent"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"email": {"type": "string", "format": "email"},
			"phone_number": {"type": ["string", "null"]},
			"consent": {"type": "boolean"},
			"selectedLocation": {"type": ["object", "null"]},
			"energy_independence": {"type": ["object", "null"]}
		}
	}`,
	SchemaBookCallRequest: `{
		"type": "object",
		"required": ["email", "name", "phone", "call_date", "call_time"],
		"properties": {
			"email": {"type": "string", "format": "email"},
			"name": {"type": "string", "minLength": 1},
			"phone": {"type": "string", "minLength": 1},
			"call_date": {"type": "string", "pattern": "^[A-Z][a-z]+ [0-9]{1,2}, [0-9]{4}$"},
			"call_time": {"type": "string", "pattern": "^(1[0-2]|[1-9]):[0-5][0-9] (AM|PM)$"}
		}
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[SchemaName]*gojsonschema.Schema
	compileErr  error
)

func schemas() (map[SchemaName]*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[SchemaName]*gojsonschema.Schema, len(schemaSources))
		for name, src := range schemaSources {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[name] = s
		}
	})
	return compiled, compileErr
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateDocument checks a Go value against a named schema.
func ValidateDocument(name SchemaName, document interface{}) (*ValidationResult, error) {
	return validate(name, gojsonschema.NewGoLoader(document))
}

// ValidateBytes checks raw JSON against a named schema.
func ValidateBytes(name SchemaName, raw []byte) (*ValidationResult, error) {
	return validate(name, gojsonschema.NewBytesLoader(raw))
}

func validate(name SchemaName, doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	all, err := schemas()
	if err != nil {
		return nil, err
	}
	schema, ok := all[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	result, err := schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-\(\)]{7,}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(strings.TrimSpace(phone))
}
