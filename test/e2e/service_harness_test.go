package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"slackalert/internal/app"
	"slackalert/internal/clock"
	"slackalert/internal/config"
)

// fakeWorkspace is an httptest-backed Slack endpoint recording posted messages.
type fakeWorkspace struct {
	mu       sync.Mutex
	server   *httptest.Server
	channels []string
	texts    []string
}

func newFakeWorkspace(t *testing.T) *fakeWorkspace {
	t.Helper()
	fake := &fakeWorkspace{}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeWorkspace) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch strings.TrimPrefix(r.URL.Path, "/api/") {
	case "conversations.members":
		_, _ = fmt.Fprint(w, `{"ok":true,"members":[]}`)
	case "chat.postMessage":
		var payload struct {
			Channel string `json:"channel"`
			Text    string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.channels = append(f.channels, payload.Channel)
		f.texts = append(f.texts, payload.Text)
		_, _ = fmt.Fprint(w, `{"ok":true,"ts":"1700.1"}`)
	default:
		_, _ = fmt.Fprint(w, `{"ok":true}`)
	}
}

func (f *fakeWorkspace) postedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.channels...)
}

// writeServiceConfig renders a single-file service config for e2e scenarios.
// Params: test handle, HTTP port, Slack server URL, and default channel.
// Returns: absolute config path inside a temp dir.
func writeServiceConfig(t *testing.T, port int, slackURL, channelID string, extra string) string {
	t.Helper()

	cfg := fmt.Sprintf(`
[service]
mode = "single"
reload_enabled = false

[log.console]
enabled = true
level = "error"
format = "line"

[ingest.http]
enabled = true
listen = "127.0.0.1:%d"
health_path = "/healthz"
ready_path = "/readyz"
ingest_path = "/alerts"
max_body_bytes = 1048576

[slack]
server_url = "%s"
access_token = "xoxb-e2e"
default_channel_id = "%s"

[monitor]
base_url = "https://cabot.example.com"
%s`, port, slackURL, channelID, extra)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

// newServiceFromConfig creates a Service from a file config path.
// Params: test handle and absolute config path.
// Returns: initialized service instance.
func newServiceFromConfig(t *testing.T, path string) *app.Service {
	t.Helper()

	source, err := config.FromCLI(path, "")
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

// runService starts the service in background with a cancellable context.
// Params: test handle and initialized service.
// Returns: cancel callback and done channel with Run result.
func runService(t *testing.T, service *app.Service) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.Run(ctx)
	}()
	return cancel, done
}

// waitReady waits for the /readyz endpoint to return 200.
// Params: test handle and HTTP port.
// Returns: service is ready or test fails on timeout.
func waitReady(t *testing.T, port int) {
	t.Helper()
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitFor(t, 8*time.Second, func() bool {
		response, err := http.Get(baseURL + "/readyz")
		if err != nil {
			return false
		}
		defer response.Body.Close()
		return response.StatusCode == http.StatusOK
	})
}

// waitServiceStop asserts service Run exits without error after cancellation.
// Params: test handle and done channel returned by runService.
// Returns: test fails if stop timeout/error happens.
func waitServiceStop(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case runErr := <-done:
		if runErr != nil {
			t.Fatalf("service run error: %v", runErr)
		}
	case <-time.After(8 * time.Second):
		t.Fatalf("service did not stop after cancel")
	}
}

func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for condition")
}
