package slack

// Block model mirrors the subset of the Slack block-kit schema the service
// emits: header, section with an optional button accessory, and context.

// Text is one block-kit text object.
// Params: type is "plain_text" or "mrkdwn".
// Returns: serializable text element.
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji *bool  `json:"emoji,omitempty"`
}

// Button is a section accessory linking to an external page.
// Params: plain-text label and destination URL.
// Returns: serializable accessory.
type Button struct {
	Type     string `json:"type"`
	Text     Text   `json:"text"`
	URL      string `json:"url"`
	ActionID string `json:"action_id"`
}

// Block is one ordered message block.
// Params: block type plus the fields valid for that type.
// Returns: serializable block-kit object.
type Block struct {
	Type      string  `json:"type"`
	Text      *Text   `json:"text,omitempty"`
	Accessory *Button `json:"accessory,omitempty"`
	Elements  []Text  `json:"elements,omitempty"`
}

// Header builds a plain-text header block.
// Params: header text.
// Returns: header block.
func Header(text string) Block {
	return Block{
		Type: "header",
		Text: &Text{Type: "plain_text", Text: text},
	}
}

// Section builds a markdown section block.
// Params: mrkdwn body.
// Returns: section block.
func Section(markdown string) Block {
	return Block{
		Type: "section",
		Text: &Text{Type: "mrkdwn", Text: markdown},
	}
}

// WithButton attaches a link button accessory to a section block.
// Params: plain-text label and destination URL.
// Returns: copy of the block with the accessory set.
func (b Block) WithButton(label, url string) Block {
	noEmoji := false
	b.Accessory = &Button{
		Type:     "button",
		Text:     Text{Type: "plain_text", Text: label, Emoji: &noEmoji},
		URL:      url,
		ActionID: "button-status",
	}
	return b
}

// Context builds a context block with one markdown element.
// Params: mrkdwn body.
// Returns: context block.
func Context(markdown string) Block {
	return Block{
		Type:     "context",
		Elements: []Text{{Type: "mrkdwn", Text: markdown}},
	}
}

// Mention renders the chat mention syntax for one user id.
// Params: Slack user id.
// Returns: "<@ID>" markup.
func Mention(userID string) string {
	return "<@" + userID + ">"
}
