// Package dispatch orchestrates one alert send: policy decision, identity
// resolution, channel membership reconciliation, block composition, message
// post, and threaded image uploads.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"slackalert/internal/clock"
	"slackalert/internal/compose"
	"slackalert/internal/config"
	"slackalert/internal/domain"
	"slackalert/internal/identity"
	"slackalert/internal/membership"
	"slackalert/internal/permanent"
	"slackalert/internal/policy"
	"slackalert/internal/slack"
)

// maxImageUploads caps threaded diagnostic uploads per alert.
const maxImageUploads = 5

// Dispatcher sends one alert per call against the current config snapshot.
// Params: snapshot provider (reload-aware), logger, and clock.
// Returns: per-alert dispatch with partial-failure isolation.
type Dispatcher struct {
	snapshot func() config.Config
	logger   *slog.Logger
	clock    clock.Clock
}

// NewDispatcher creates an alert dispatcher.
// Params: config snapshot provider, diagnostics logger, and clock.
// Returns: configured dispatcher.
func NewDispatcher(snapshot func() config.Config, logger *slog.Logger, clk clock.Clock) *Dispatcher {
	return &Dispatcher{snapshot: snapshot, logger: logger, clock: clk}
}

// snapshotOverrides adapts one config snapshot to the identity override
// store, converting the ignore sentinel into the tagged value at the
// host/core boundary.
type snapshotOverrides struct {
	cfg config.Config
}

// Override reads one per-user override from the snapshot.
// Params: host user id.
// Returns: tagged override and presence.
func (s snapshotOverrides) Override(userID int64) (identity.Override, bool) {
	raw, ok := config.UserOverride(s.cfg, userID)
	if !ok {
		return identity.Override{}, false
	}
	if raw == config.IgnoreUserID {
		return identity.Override{Ignore: true}, true
	}
	return identity.Override{UserID: raw}, true
}

// Dispatch evaluates and sends one alert.
// Params: context and validated alert.
// Returns: nil on success or suppression; a permanent-marked error for
// missing configuration; the post error when the primary message could not
// be sent. Everything else is logged and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, alert domain.StatusAlert) error {
	logger := d.logger.With(
		"dispatch_id", uuid.NewString(),
		"service", alert.Service,
	)
	started := d.clock.Now()

	decision := policy.Decide(alert.PreviousStatus, alert.CurrentStatus)
	if decision == policy.Suppress {
		logger.Debug("alert suppressed",
			"previous_status", string(alert.PreviousStatus),
			"current_status", string(alert.CurrentStatus))
		return nil
	}

	cfg := d.snapshot()
	if cfg.Slack.ServerURL == "" || cfg.Slack.AccessToken == "" {
		return permanent.Mark(fmt.Errorf("slack instance not configured for service %q", alert.Service))
	}
	channelID := config.ChannelForService(cfg, alert.Service)
	if channelID == "" {
		return permanent.Mark(fmt.Errorf("no slack channel configured for service %q", alert.Service))
	}
	client := slack.NewClient(cfg.Slack.ServerURL, cfg.Slack.AccessToken)

	reconciler := membership.NewReconciler(client, logger)
	reconciler.EnsureJoined(ctx, channelID)

	resolver := identity.NewResolver(snapshotOverrides{cfg: cfg}, client, logger)
	userIDs := make([]string, 0, len(alert.Recipients)+len(alert.DutyOfficers))
	var missing []domain.Recipient
	for _, recipient := range alert.AllRecipients() {
		resolution := resolver.Resolve(ctx, recipient)
		switch {
		case resolution.Ignored:
		case resolution.Unresolved:
			missing = append(missing, recipient)
		default:
			userIDs = append(userIDs, resolution.UserID)
		}
	}

	reconciler.EnsureMembers(ctx, channelID, userIDs)

	composer := compose.NewComposer(compose.Links{
		MonitorBaseURL: cfg.Monitor.BaseURL,
		JenkinsBaseURL: cfg.Monitor.JenkinsBaseURL,
	})
	blocks := composer.Blocks(alert, decision == policy.SendWithMentions, userIDs, missing)

	ts, err := client.PostMessage(ctx, channelID, compose.FallbackText(alert), blocks)
	if err != nil {
		logger.Error("error posting message to slack channel", "channel", channelID, "error", err.Error())
		return fmt.Errorf("post alert for service %q: %w", alert.Service, err)
	}

	d.uploadImages(ctx, client, logger, alert, channelID, ts)

	logger.Info("alert dispatched",
		"channel", channelID,
		"decision", decision.String(),
		"failing_checks", len(alert.FailingChecks),
		"mentions", len(userIDs),
		"missing_users", len(missing),
		"duration", d.clock.Now().Sub(started).String(),
	)
	return nil
}

// uploadImages threads diagnostic images for the first failing checks.
// Params: slack client, per-dispatch logger, alert, channel, and parent ts.
// Returns: nothing; uploads are a nice-to-have, the first failure is logged
// and ends the step.
func (d *Dispatcher) uploadImages(ctx context.Context, client *slack.Client, logger *slog.Logger, alert domain.StatusAlert, channelID, threadTS string) {
	checks := alert.FailingChecks
	if len(checks) > maxImageUploads {
		checks = checks[:maxImageUploads]
	}
	for _, check := range checks {
		if len(check.Image) == 0 {
			continue
		}
		if err := client.UploadFile(ctx, check.Name+".png", check.Image, channelID, threadTS); err != nil {
			logger.Error("failed to upload image", "channel", channelID, "check", check.Name, "error", err.Error())
			return
		}
	}
}
