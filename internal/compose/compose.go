// Package compose renders the fixed block layout for one status alert:
// header, one section per failing check, and optional mention and
// missing-user context blocks.
package compose

import (
	"fmt"
	"strings"

	"slackalert/internal/config"
	"slackalert/internal/domain"
	"slackalert/internal/slack"
)

// statusEmoji maps each status to its header glyph; unknown statuses render
// without a glyph.
var statusEmoji = map[domain.ServiceStatus]string{
	domain.StatusWarning:  ":large_yellow_circle:",
	domain.StatusError:    ":red_circle:",
	domain.StatusCritical: ":alert:",
	domain.StatusPassing:  ":large_green_circle:",
	domain.StatusAcked:    ":zipper_mouth_face:",
}

// Links holds the base URLs for contextual links in message blocks.
// Params: monitoring UI base for check/profile pages and optional Jenkins
// base for CI console links.
// Returns: link builder input for the composer.
type Links struct {
	MonitorBaseURL string
	JenkinsBaseURL string
}

// Composer builds message blocks from alert state and resolved identities.
// Params: link configuration.
// Returns: stateless block builder.
type Composer struct {
	links Links
}

// NewComposer creates a message composer.
// Params: link configuration.
// Returns: configured composer.
func NewComposer(links Links) *Composer {
	return &Composer{links: links}
}

// FallbackText builds the plain notification text shown outside blocks.
// Params: alert.
// Returns: "<service> is <status>".
func FallbackText(alert domain.StatusAlert) string {
	return fmt.Sprintf("%s is %s", alert.Service, alert.CurrentStatus)
}

// Blocks builds the ordered block list for one alert.
// Params: alert, whether mention blocks are enabled, resolved Slack user ids,
// and the recipients that stayed unresolved.
// Returns: header, one section per failing check in input order, and, when
// mentions are enabled, the mention and missing-user context blocks.
func (c *Composer) Blocks(alert domain.StatusAlert, includeMentions bool, mentionIDs []string, missing []domain.Recipient) []slack.Block {
	emoji := statusEmoji[alert.CurrentStatus]
	blocks := []slack.Block{
		slack.Header(fmt.Sprintf("%s %s status is %s %s",
			emoji, alert.Service, strings.ToUpper(string(alert.CurrentStatus)), emoji)),
	}

	for _, check := range alert.FailingChecks {
		blocks = append(blocks, c.checkSection(check))
	}

	if !includeMentions {
		return blocks
	}
	if len(mentionIDs) > 0 {
		mentions := make([]string, 0, len(mentionIDs))
		for _, id := range mentionIDs {
			mentions = append(mentions, slack.Mention(id))
		}
		blocks = append(blocks, slack.Context(strings.Join(mentions, " ")+" :point_up:"))
	}
	if len(missing) > 0 {
		blocks = append(blocks, c.missingUsersContext(missing))
	}
	return blocks
}

// checkSection builds one section block for a failing check.
// Params: failing check.
// Returns: bold-linked check name plus backticked error, with a status-link
// button accessory when the check exposes one.
func (c *Composer) checkSection(check domain.FailingCheck) slack.Block {
	name := strings.ReplaceAll(check.Name, ">", `\>`)
	errorText := strings.ReplaceAll(check.Error, "`", "\\`")
	checkLink := fmt.Sprintf("%s/check/%d", strings.TrimRight(c.links.MonitorBaseURL, "/"), check.ID)
	block := slack.Section(fmt.Sprintf("*<%s|%s>* - `%s`", checkLink, name, errorText))

	statusLink := check.StatusLink
	statusLabel := ""
	switch check.Category {
	case domain.CheckCategoryMetrics:
		statusLabel = "Grafana"
	case domain.CheckCategoryJenkins:
		statusLabel = "Jenkins"
		if statusLink == "" && c.links.JenkinsBaseURL != "" {
			statusLink = fmt.Sprintf("%s/job/%s/%d/console",
				strings.TrimRight(c.links.JenkinsBaseURL, "/"), check.Name, check.JobNumber)
		}
	}
	if statusLink != "" {
		block = block.WithButton(statusLabel, statusLink)
	}
	return block
}

// missingUsersContext builds the context block naming unresolved recipients.
// Params: unresolved recipients in input order.
// Returns: context block with per-user profile links and override
// instructions naming the ignore sentinel.
func (c *Composer) missingUsersContext(missing []domain.Recipient) slack.Block {
	entries := make([]string, 0, len(missing))
	for _, recipient := range missing {
		profileLink := fmt.Sprintf("%s/user/%d/profile/slack",
			strings.TrimRight(c.links.MonitorBaseURL, "/"), recipient.ID)
		entries = append(entries, fmt.Sprintf("%s (<%s|profile>)", recipient.DisplayName(), profileLink))
	}
	text := fmt.Sprintf("Could not find Slack account for some users: %s.\n"+
		"Please ensure they have a Slack account. "+
		"If their Slack email doesn't match their monitoring email, set a user ID override "+
		"in their profile, or enter an ID of '%s' to silence this warning.",
		strings.Join(entries, ", "), config.IgnoreUserID)
	return slack.Context(text)
}
