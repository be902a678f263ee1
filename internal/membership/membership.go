// Package membership keeps the bot and the resolved recipients present in the
// target channel. Everything here is best-effort: reconciliation failures are
// logged and swallowed so they never block posting.
package membership

import (
	"context"
	"log/slog"

	"slackalert/internal/slack"
)

// API is the Slack client surface the reconciler needs.
// Params: join, paginated member listing, and bulk invite operations.
// Returns: narrow dependency for tests.
type API interface {
	JoinChannel(ctx context.Context, channelID string) error
	ChannelMembers(ctx context.Context, channelID string) (map[string]struct{}, error)
	InviteMembers(ctx context.Context, channelID string, userIDs []string) error
}

// Reconciler reconciles channel membership for one dispatch.
// Params: Slack API surface and diagnostics logger.
// Returns: best-effort join and invite operations.
type Reconciler struct {
	api    API
	logger *slog.Logger
}

// NewReconciler creates a channel membership reconciler.
// Params: Slack API surface and logger.
// Returns: configured reconciler.
func NewReconciler(api API, logger *slog.Logger) *Reconciler {
	return &Reconciler{api: api, logger: logger}
}

// EnsureJoined joins the bot into the channel, tolerating already-joined.
// Params: context and channel id.
// Returns: nothing; unsupported-channel-type answers (private channels need a
// manual invite) pass silently, every other failure is logged and swallowed.
func (r *Reconciler) EnsureJoined(ctx context.Context, channelID string) {
	err := r.api.JoinChannel(ctx, channelID)
	if err == nil {
		return
	}
	if slack.IsAPIErrorCode(err, slack.ErrCodeChannelTypeUnsupported) {
		return
	}
	if r.logger != nil {
		r.logger.Warn("could not join channel", "channel", channelID, "error", err.Error())
	}
}

// EnsureMembers invites any desired user ids missing from the channel.
// Params: context, channel id, and desired Slack user ids.
// Returns: nothing; the invite set is desired minus current membership,
// fetched fresh via pagination, and an empty invite set issues no call.
func (r *Reconciler) EnsureMembers(ctx context.Context, channelID string, desired []string) {
	if len(desired) == 0 {
		return
	}

	current, err := r.api.ChannelMembers(ctx, channelID)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("failed to list channel members", "channel", channelID, "error", err.Error())
		}
		return
	}

	missing := make([]string, 0, len(desired))
	seen := make(map[string]struct{}, len(desired))
	for _, id := range desired {
		if _, inChannel := current[id]; inChannel {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return
	}

	if err := r.api.InviteMembers(ctx, channelID, missing); err != nil && r.logger != nil {
		r.logger.Error("failed to add users to channel", "channel", channelID, "error", err.Error())
	}
}
