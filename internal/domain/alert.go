package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// CheckCategoryMetrics marks checks backed by a metrics dashboard.
	CheckCategoryMetrics = "metrics"
	// CheckCategoryJenkins marks checks backed by a CI job.
	CheckCategoryJenkins = "jenkins"
)

// FailingCheck is one failing status check attached to an alert.
// Params: check identity, last result error, optional status link, CI job
// number, and optional diagnostic image bytes (base64 on the wire).
// Returns: per-check context for message sections and image uploads.
type FailingCheck struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusLink string `json:"status_link,omitempty"`
	JobNumber  int64  `json:"job_number,omitempty"`
	Image      []byte `json:"image,omitempty"`
}

// Recipient is one monitored-system user to notify.
// Params: host user id plus profile fields used for lookup and display.
// Returns: identity-resolution input.
type Recipient struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName builds the human-readable recipient name for diagnostics.
// Params: none.
// Returns: email or username, with "(First Last)" when both names are set.
func (r Recipient) DisplayName() string {
	name := r.Email
	if name == "" {
		name = r.Username
	}
	if r.FirstName != "" && r.LastName != "" {
		name += " (" + r.FirstName + " " + r.LastName + ")"
	}
	return name
}

// StatusAlert is one status-change notification request for a service.
// Params: service identity, status transition, ordered failing checks, and
// ordered recipient lists including duty officers.
// Returns: the read-only input of one dispatch call.
type StatusAlert struct {
	Service        string         `json:"service"`
	CurrentStatus  ServiceStatus  `json:"current_status"`
	PreviousStatus ServiceStatus  `json:"previous_status"`
	FailingChecks  []FailingCheck `json:"failing_checks,omitempty"`
	Recipients     []Recipient    `json:"recipients,omitempty"`
	DutyOfficers   []Recipient    `json:"duty_officers,omitempty"`
}

// AllRecipients returns recipients followed by duty officers in input order.
// Params: none.
// Returns: combined recipient slice for identity resolution.
func (a StatusAlert) AllRecipients() []Recipient {
	out := make([]Recipient, 0, len(a.Recipients)+len(a.DutyOfficers))
	out = append(out, a.Recipients...)
	out = append(out, a.DutyOfficers...)
	return out
}

// DecodeAlert decodes and validates one alert payload.
// Params: JSON document bytes.
// Returns: validated alert or decode/validation error.
func DecodeAlert(raw []byte) (StatusAlert, error) {
	var alert StatusAlert
	if err := json.Unmarshal(raw, &alert); err != nil {
		return StatusAlert{}, fmt.Errorf("decode alert: %w", err)
	}
	if err := alert.Validate(); err != nil {
		return StatusAlert{}, err
	}
	return alert, nil
}

// Validate validates one alert against the contract.
// Params: alert fields parsed from transport.
// Returns: validation error when the payload is inconsistent.
func (a StatusAlert) Validate() error {
	if strings.TrimSpace(a.Service) == "" {
		return errors.New("service is required")
	}
	if !a.CurrentStatus.Known() {
		return fmt.Errorf("unsupported current_status %q", string(a.CurrentStatus))
	}
	if !a.PreviousStatus.Known() {
		return fmt.Errorf("unsupported previous_status %q", string(a.PreviousStatus))
	}
	for i, check := range a.FailingChecks {
		if strings.TrimSpace(check.Name) == "" {
			return fmt.Errorf("failing_checks[%d]: name is required", i)
		}
	}
	for i, recipient := range a.AllRecipients() {
		if recipient.Email == "" && recipient.Username == "" {
			return fmt.Errorf("recipients[%d]: email or username is required", i)
		}
	}
	return nil
}
