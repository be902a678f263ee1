package domain

import (
	"strings"
	"testing"
)

func TestDecodeAlertValid(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"service": "payments",
		"current_status": "ERROR",
		"previous_status": "PASSING",
		"failing_checks": [{"id": 7, "name": "latency", "category": "metrics", "error": "p99 too high"}],
		"recipients": [{"id": 1, "email": "a@example.com"}],
		"duty_officers": [{"id": 2, "username": "oncall"}]
	}`)

	alert, err := DecodeAlert(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if alert.CurrentStatus != StatusError || alert.PreviousStatus != StatusPassing {
		t.Fatalf("statuses mismatch: %s/%s", alert.CurrentStatus, alert.PreviousStatus)
	}
	all := alert.AllRecipients()
	if len(all) != 2 || all[0].Email != "a@example.com" || all[1].Username != "oncall" {
		t.Fatalf("recipients order mismatch: %+v", all)
	}
}

func TestDecodeAlertRejectsInvalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing service":    `{"current_status":"ERROR","previous_status":"PASSING"}`,
		"bad current status": `{"service":"s","current_status":"BROKEN","previous_status":"PASSING"}`,
		"bad prev status":    `{"service":"s","current_status":"ERROR","previous_status":""}`,
		"nameless check":     `{"service":"s","current_status":"ERROR","previous_status":"PASSING","failing_checks":[{"id":1}]}`,
		"blank recipient":    `{"service":"s","current_status":"ERROR","previous_status":"PASSING","recipients":[{"id":1}]}`,
	}
	for name, raw := range cases {
		if _, err := DecodeAlert([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	status, err := ParseStatus(" error ")
	if err != nil || status != StatusError {
		t.Fatalf("got %q, %v", status, err)
	}
	if _, err := ParseStatus("unknown"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestRecipientDisplayName(t *testing.T) {
	t.Parallel()

	full := Recipient{Email: "a@example.com", FirstName: "Ada", LastName: "Lovelace"}
	if got := full.DisplayName(); got != "a@example.com (Ada Lovelace)" {
		t.Fatalf("display name %q", got)
	}
	usernameOnly := Recipient{Username: "oncall"}
	if got := usernameOnly.DisplayName(); got != "oncall" {
		t.Fatalf("display name %q", got)
	}
	partial := Recipient{Email: "b@example.com", FirstName: "Solo"}
	if got := partial.DisplayName(); strings.Contains(got, "(") {
		t.Fatalf("partial names must not render parens: %q", got)
	}
}
