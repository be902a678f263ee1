package domain

import (
	"fmt"
	"strings"
)

// ServiceStatus is the overall status of one monitored service.
// Params: closed five-value status set reported by the monitoring host.
// Returns: normalized status used by the notification policy.
type ServiceStatus string

const (
	// StatusPassing indicates all checks pass.
	StatusPassing ServiceStatus = "PASSING"
	// StatusWarning indicates non-critical degradation.
	StatusWarning ServiceStatus = "WARNING"
	// StatusError indicates failing checks.
	StatusError ServiceStatus = "ERROR"
	// StatusCritical indicates critical failing checks.
	StatusCritical ServiceStatus = "CRITICAL"
	// StatusAcked indicates a failure acknowledged by a human.
	StatusAcked ServiceStatus = "ACKED"
)

// ParseStatus normalizes a transport status string into ServiceStatus.
// Params: raw status value, case-insensitive.
// Returns: parsed status or error for values outside the closed set.
func ParseStatus(raw string) (ServiceStatus, error) {
	status := ServiceStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case StatusPassing, StatusWarning, StatusError, StatusCritical, StatusAcked:
		return status, nil
	default:
		return "", fmt.Errorf("unsupported status %q", raw)
	}
}

// Known reports whether the status belongs to the closed status set.
// Params: none.
// Returns: true for the five supported values.
func (s ServiceStatus) Known() bool {
	switch s {
	case StatusPassing, StatusWarning, StatusError, StatusCritical, StatusAcked:
		return true
	default:
		return false
	}
}
