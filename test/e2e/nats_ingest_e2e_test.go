package e2e

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"slackalert/test/testutil"
)

const (
	e2eAlertStream  = "ALERT_DISPATCH_E2E"
	e2eAlertSubject = "alerts.dispatch.e2e"
)

// ensureAlertStream creates the JetStream stream used by NATS ingest.
// Params: test handle, server URL, stream name, and subject.
// Returns: stream exists with required subject.
func ensureAlertStream(tb testing.TB, url, streamName, subject string) {
	tb.Helper()

	nc, err := nats.Connect(url)
	if err != nil {
		tb.Fatalf("connect nats: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		tb.Fatalf("jetstream init: %v", err)
	}

	if _, err := js.StreamInfo(streamName); err == nil {
		return
	} else if !errors.Is(err, nats.ErrStreamNotFound) && !strings.Contains(strings.ToLower(err.Error()), "stream not found") {
		tb.Fatalf("stream info failed: %v", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		tb.Fatalf("add stream %q failed: %v", streamName, err)
	}
}

// publishAlert publishes one alert document to the ingest subject.
// Params: test handle, server URL, subject, and payload.
// Returns: message is persisted in the stream.
func publishAlert(tb testing.TB, url, subject string, payload []byte) {
	tb.Helper()

	nc, err := nats.Connect(url)
	if err != nil {
		tb.Fatalf("connect nats: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		tb.Fatalf("jetstream init: %v", err)
	}
	if _, err := js.Publish(subject, payload); err != nil {
		tb.Fatalf("publish alert: %v", err)
	}
}

func TestServiceNATSIngestDispatchesAlert(t *testing.T) {
	natsURL, stopNATS := testutil.StartLocalNATSServer(t)
	defer stopNATS()
	ensureAlertStream(t, natsURL, e2eAlertStream, e2eAlertSubject)

	port, err := freePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	workspace := newFakeWorkspace(t)

	cfg := fmt.Sprintf(`
[service]
mode = "nats"
reload_enabled = false

[log.console]
enabled = true
level = "error"
format = "line"

[ingest.http]
enabled = true
listen = "127.0.0.1:%d"

[ingest.nats]
enabled = true
url = ["%s"]
subject = "%s"
stream = "%s"
consumer_name = "slackalert-e2e"
deliver_group = "slackalert-e2e-workers"

[slack]
server_url = "%s"
access_token = "xoxb-e2e"
default_channel_id = "C100"

[monitor]
base_url = "https://cabot.example.com"
`, port, natsURL, e2eAlertSubject, e2eAlertStream, workspace.server.URL)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	service := newServiceFromConfig(t, configPath)
	cancel, done := runService(t, service)
	defer cancel()
	waitReady(t, port)

	// Malformed documents are acknowledged without dispatch.
	publishAlert(t, natsURL, e2eAlertSubject, []byte(`{not json`))
	publishAlert(t, natsURL, e2eAlertSubject, []byte(`{"service":"billing","current_status":"CRITICAL","previous_status":"PASSING"}`))

	waitFor(t, 10*time.Second, func() bool {
		return len(workspace.postedChannels()) == 1
	})
	if got := workspace.postedChannels()[0]; got != "C100" {
		t.Fatalf("expected post to C100, got %q", got)
	}

	cancel()
	waitServiceStop(t, done)
}
