// Package policy decides whether a status transition produces a notification
// and whether on-call humans are @mentioned.
package policy

import "slackalert/internal/domain"

// Decision is the outcome of evaluating one status transition.
// Params: suppress/silent/mention constants.
// Returns: dispatch behavior for one alert.
type Decision int

const (
	// Suppress drops the alert without any API call.
	Suppress Decision = iota
	// SendSilent posts the message without mention blocks.
	SendSilent
	// SendWithMentions posts the message with mention and missing-user blocks.
	SendWithMentions
)

// String renders the decision for logs.
// Params: none.
// Returns: stable lower-case decision name.
func (d Decision) String() string {
	switch d {
	case Suppress:
		return "suppress"
	case SendSilent:
		return "send_silent"
	case SendWithMentions:
		return "send_with_mentions"
	default:
		return "unknown"
	}
}

// Decide evaluates the transition table for one (previous, current) pair.
// Params: previous and current service status.
// Returns: exactly one decision; rule order is load-bearing and must not be
// reordered (repeated ERROR and any WARNING stay silent, reverted or repeated
// ACKED transitions are fully suppressed, every other new failure or fresh
// recovery mentions).
func Decide(previous, current domain.ServiceStatus) Decision {
	decision := SendWithMentions

	if current == domain.StatusWarning {
		// WARNING never pages anyone.
		decision = SendSilent
	}
	if current == domain.StatusError {
		if previous == domain.StatusError {
			// Don't page repeatedly while the same ERROR persists.
			decision = SendSilent
		}
	}
	if current == domain.StatusPassing {
		if previous == domain.StatusAcked {
			// Recovery of an acknowledged failure was already expected.
			return Suppress
		}
		if previous == domain.StatusWarning {
			decision = SendSilent
		}
	}
	if current == domain.StatusAcked {
		if previous == domain.StatusAcked {
			return Suppress
		}
		if previous == domain.StatusPassing {
			return Suppress
		}
		// Entering ACKED notifies without paging.
		decision = SendSilent
	}

	return decision
}
