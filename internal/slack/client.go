// Package slack is a thin client for the Slack Web API subset used by alert
// dispatch: user lookup, channel membership, joining, inviting, message
// posting, and threaded file upload.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 10 * time.Second
	// DefaultUploadTimeout bounds files.upload since bodies can be large.
	DefaultUploadTimeout = 30 * time.Second
)

// Client issues stateless requests against one Slack workspace endpoint.
// Params: server base URL and bearer access token.
// Returns: per-operation API methods with typed errors.
type Client struct {
	serverURL string
	token     string
	client    *http.Client
	uploads   *http.Client
}

// NewClient creates a Slack Web API client.
// Params: workspace server base URL and bot access token.
// Returns: client with default request and upload timeouts.
func NewClient(serverURL, token string) *Client {
	return &Client{
		serverURL: strings.TrimRight(strings.TrimSpace(serverURL), "/"),
		token:     strings.TrimSpace(token),
		client:    &http.Client{Timeout: defaultRequestTimeout},
		uploads:   &http.Client{Timeout: DefaultUploadTimeout},
	}
}

// apiURL joins the workspace base URL with one Web API method.
// Params: method name like "chat.postMessage".
// Returns: absolute endpoint URL.
func (c *Client) apiURL(method string) string {
	return c.serverURL + "/api/" + method
}

// envelope is the common Slack response wrapper.
// Params: ok flag plus error code and detail list when ok=false.
// Returns: decoded envelope for the single validation step.
type envelope struct {
	OK     bool     `json:"ok"`
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

// checkResponse validates HTTP status and the ok envelope in one step.
// Params: response and body bytes already read by the caller.
// Returns: nil, *TransportError on non-2xx, or *APIError on ok=false.
func checkResponse(response *http.Response, body []byte) error {
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &TransportError{Status: response.StatusCode, Body: string(body)}
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode slack envelope: %w", err)
	}
	if !env.OK {
		code := env.Error
		if code == "" {
			code = "<error field missing>"
		}
		return &APIError{Code: code, Details: env.Errors}
	}
	return nil
}

// do sends one request and runs the envelope validation step.
// Params: prepared request.
// Returns: response body bytes for caller-side decoding.
func (c *Client) do(request *http.Request) ([]byte, error) {
	return c.doWith(c.client, request)
}

// doWith sends one request over the given HTTP client.
// Params: transport client (regular or upload-bounded) and prepared request.
// Returns: response body bytes for caller-side decoding.
func (c *Client) doWith(client *http.Client, request *http.Request) ([]byte, error) {
	request.Header.Set("Authorization", "Bearer "+c.token)
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("slack request %s: %w", request.URL.Path, err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read slack response %s: %w", request.URL.Path, err)
	}
	if err := checkResponse(response, body); err != nil {
		return nil, err
	}
	return body, nil
}

// get sends one GET request with query parameters.
// Params: context, method name, and query values.
// Returns: validated response body.
func (c *Client) get(ctx context.Context, method string, query url.Values) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL(method)+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build slack request %s: %w", method, err)
	}
	return c.do(request)
}

// postJSON sends one POST request with a JSON body.
// Params: context, method name, and payload to marshal.
// Returns: validated response body.
func (c *Client) postJSON(ctx context.Context, method string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode slack payload %s: %w", method, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(method), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build slack request %s: %w", method, err)
	}
	request.Header.Set("Content-Type", "application/json")
	return c.do(request)
}

// LookupUserByEmail resolves a Slack user id from an email address.
// Params: context and email to look up.
// Returns: user id, or APIError with code users_not_found for unknown emails.
func (c *Client) LookupUserByEmail(ctx context.Context, email string) (string, error) {
	query := url.Values{}
	query.Set("email", email)
	body, err := c.get(ctx, "users.lookupByEmail", query)
	if err != nil {
		return "", err
	}
	var decoded struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode users.lookupByEmail response: %w", err)
	}
	return decoded.User.ID, nil
}

// ChannelMembers lists all user ids in a channel via cursor pagination.
// Params: context and channel id.
// Returns: membership set; any empty or absent next_cursor ends the loop, so
// the loop terminates even under buggy pagination metadata.
func (c *Client) ChannelMembers(ctx context.Context, channelID string) (map[string]struct{}, error) {
	members := make(map[string]struct{})
	cursor := ""
	for {
		query := url.Values{}
		query.Set("channel", channelID)
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		body, err := c.get(ctx, "conversations.members", query)
		if err != nil {
			return nil, err
		}
		var decoded struct {
			Members          []string `json:"members"`
			ResponseMetadata struct {
				NextCursor string `json:"next_cursor"`
			} `json:"response_metadata"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decode conversations.members response: %w", err)
		}
		for _, id := range decoded.Members {
			members[id] = struct{}{}
		}
		cursor = decoded.ResponseMetadata.NextCursor
		if cursor == "" {
			return members, nil
		}
	}
}

// JoinChannel joins the bot into a channel; succeeds if already joined.
// Params: context and channel id.
// Returns: APIError with code method_not_supported_for_channel_type for
// channels the bot cannot self-join.
func (c *Client) JoinChannel(ctx context.Context, channelID string) error {
	_, err := c.postJSON(ctx, "conversations.join", map[string]string{"channel": channelID})
	return err
}

// InviteMembers invites user ids into a channel with one bulk call.
// Params: context, channel id, and user id list (comma-joined on the wire).
// Returns: API or transport error.
func (c *Client) InviteMembers(ctx context.Context, channelID string, userIDs []string) error {
	_, err := c.postJSON(ctx, "conversations.invite", map[string]string{
		"channel": channelID,
		"users":   strings.Join(userIDs, ","),
	})
	return err
}

// PostMessage posts one block message to a channel.
// Params: context, channel id, fallback text shown in notifications, and the
// ordered block list.
// Returns: the post's ts value, used to thread replies.
func (c *Client) PostMessage(ctx context.Context, channelID, fallbackText string, blocks []Block) (string, error) {
	body, err := c.postJSON(ctx, "chat.postMessage", map[string]any{
		"channel": channelID,
		"text":    fallbackText,
		"blocks":  blocks,
	})
	if err != nil {
		return "", err
	}
	var decoded struct {
		TS string `json:"ts"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode chat.postMessage response: %w", err)
	}
	return decoded.TS, nil
}

// UploadFile uploads a file into a channel as a threaded reply.
// Params: context, file name, raw bytes, channel id, and parent thread ts.
// Returns: API or transport error; bounded by the upload client timeout.
func (c *Client) UploadFile(ctx context.Context, fileName string, data []byte, channelID, threadTS string) error {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	for field, value := range map[string]string{
		"filename":  fileName,
		"channels":  channelID,
		"thread_ts": threadTS,
	} {
		if err := writer.WriteField(field, value); err != nil {
			return fmt.Errorf("encode files.upload field %s: %w", field, err)
		}
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("encode files.upload file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("write files.upload file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish files.upload body: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("files.upload"), &buffer)
	if err != nil {
		return fmt.Errorf("build slack request files.upload: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	_, err = c.doWith(c.uploads, request)
	return err
}
