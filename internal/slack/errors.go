package slack

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ErrCodeUsersNotFound is returned by users.lookupByEmail for unknown emails.
	ErrCodeUsersNotFound = "users_not_found"
	// ErrCodeChannelTypeUnsupported is returned by conversations.join for
	// channel types the bot cannot self-join (private channels).
	ErrCodeChannelTypeUnsupported = "method_not_supported_for_channel_type"
)

// APIError is a Slack response with ok=false.
// Params: error code from the envelope and optional detail list.
// Returns: typed error for call-site classification.
type APIError struct {
	Code    string
	Details []string
}

// Error renders the API error with its code and details.
// Params: none.
// Returns: diagnostic string.
func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return "slack api returned not ok, error type: " + e.Code
	}
	return fmt.Sprintf("slack api returned not ok, error type: %s, errors: %s", e.Code, strings.Join(e.Details, "; "))
}

// TransportError is a non-2xx HTTP response from the Slack endpoint.
// Params: HTTP status code and raw response body.
// Returns: typed error carrying the body for diagnostics.
type TransportError struct {
	Status int
	Body   string
}

// Error renders status and body.
// Params: none.
// Returns: diagnostic string.
func (e *TransportError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("slack api status=%d", e.Status)
	}
	return fmt.Sprintf("slack api status=%d body=%s", e.Status, body)
}

// IsAPIErrorCode reports whether err is an APIError with the given code.
// Params: candidate error and Slack error code.
// Returns: true on matching API error.
func IsAPIErrorCode(err error, code string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}
