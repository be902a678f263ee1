// Package identity maps monitored-system recipients to Slack user ids,
// consulting per-user overrides before falling back to email lookup.
package identity

import (
	"context"
	"log/slog"

	"slackalert/internal/domain"
	"slackalert/internal/slack"
)

// Override is one per-user Slack id override from configuration.
// Params: either the ignore marker or a verbatim Slack user id.
// Returns: tagged override value; no magic-string comparison downstream.
type Override struct {
	Ignore bool
	UserID string
}

// OverrideStore reads the per-user override for one monitored-system user.
// Params: host user id.
// Returns: override and presence flag; re-read on every resolve call.
type OverrideStore interface {
	Override(userID int64) (Override, bool)
}

// UserLookup is the Slack client surface the resolver needs.
// Params: context and email address.
// Returns: Slack user id or lookup error.
type UserLookup interface {
	LookupUserByEmail(ctx context.Context, email string) (string, error)
}

// Reason classifies why a recipient stayed unresolved.
// Params: not-found versus unexpected failure classes.
// Returns: per-user failure class for diagnostics.
type Reason string

const (
	// ReasonNotFound means Slack has no account for the recipient's email.
	ReasonNotFound Reason = "not_found"
	// ReasonUnexpected means lookup failed for a non-not-found cause.
	ReasonUnexpected Reason = "unexpected"
)

// Resolution is the outcome for one recipient.
// Params: exactly one of UserID, Ignored, or Unresolved+Reason is set.
// Returns: per-recipient resolution produced fresh every send.
type Resolution struct {
	UserID     string
	Ignored    bool
	Unresolved bool
	Reason     Reason
}

// Resolver resolves recipients one at a time.
// Params: override store, Slack lookup, and diagnostics logger.
// Returns: resolver whose failures never abort the overall send.
type Resolver struct {
	store  OverrideStore
	lookup UserLookup
	logger *slog.Logger
}

// NewResolver creates an identity resolver.
// Params: override store, Slack lookup surface, and logger.
// Returns: configured resolver.
func NewResolver(store OverrideStore, lookup UserLookup, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, lookup: lookup, logger: logger}
}

// Resolve maps one recipient to a Slack identity.
// Params: context and recipient.
// Returns: override id or ignore marker when configured, otherwise the email
// lookup result; lookup failures come back as unresolved, with unexpected
// failure classes logged.
func (r *Resolver) Resolve(ctx context.Context, recipient domain.Recipient) Resolution {
	if override, ok := r.store.Override(recipient.ID); ok {
		if override.Ignore {
			return Resolution{Ignored: true}
		}
		if override.UserID != "" {
			return Resolution{UserID: override.UserID}
		}
	}

	userID, err := r.lookup.LookupUserByEmail(ctx, recipient.Email)
	if err == nil {
		return Resolution{UserID: userID}
	}
	if slack.IsAPIErrorCode(err, slack.ErrCodeUsersNotFound) {
		return Resolution{Unresolved: true, Reason: ReasonNotFound}
	}
	if r.logger != nil {
		r.logger.Error("slack user lookup failed",
			"user", recipient.DisplayName(), "error", err.Error())
	}
	return Resolution{Unresolved: true, Reason: ReasonUnexpected}
}
