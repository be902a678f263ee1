package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLookupUserByEmail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users.lookupByEmail" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-token" {
			t.Errorf("auth header=%q", got)
		}
		if got := r.URL.Query().Get("email"); got != "a@example.com" {
			t.Errorf("email=%q", got)
		}
		_, _ = fmt.Fprint(w, `{"ok":true,"user":{"id":"U123"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "xoxb-token")
	id, err := client.LookupUserByEmail(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != "U123" {
		t.Fatalf("id=%q", id)
	}
}

func TestLookupUserByEmailNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"ok":false,"error":"users_not_found"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "t")
	_, err := client.LookupUserByEmail(context.Background(), "nobody@example.com")
	if !IsAPIErrorCode(err, ErrCodeUsersNotFound) {
		t.Fatalf("expected users_not_found api error, got %v", err)
	}
}

func TestTransportErrorCarriesBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = fmt.Fprint(w, "upstream broke")
	}))
	defer server.Close()

	client := NewClient(server.URL, "t")
	err := client.JoinChannel(context.Background(), "C1")
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if transportErr.Status != http.StatusBadGateway || !strings.Contains(transportErr.Body, "upstream broke") {
		t.Fatalf("transport error lost diagnostics: %+v", transportErr)
	}
}

func TestEnvelopeMissingErrorField(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"ok":false}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "t")
	err := client.JoinChannel(context.Background(), "C1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Code != "<error field missing>" {
		t.Fatalf("code=%q", apiErr.Code)
	}
}

func TestChannelMembersPagination(t *testing.T) {
	t.Parallel()

	// The final page either sends next_cursor="" or omits response_metadata
	// entirely; both must end the loop after exactly N requests for N pages.
	cases := map[string][]string{
		"empty cursor": {
			`{"ok":true,"members":["U1","U2"],"response_metadata":{"next_cursor":"page2"}}`,
			`{"ok":true,"members":["U3"],"response_metadata":{"next_cursor":""}}`,
		},
		"missing metadata": {
			`{"ok":true,"members":["U1","U2"],"response_metadata":{"next_cursor":"page2"}}`,
			`{"ok":true,"members":["U3"]}`,
		},
	}

	for name, pages := range cases {
		pages := pages
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			requests := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if requests > 0 {
					if got := r.URL.Query().Get("cursor"); got != "page2" {
						t.Errorf("request %d cursor=%q", requests, got)
					}
				}
				page := pages[requests]
				requests++
				_, _ = fmt.Fprint(w, page)
			}))
			defer server.Close()

			client := NewClient(server.URL, "t")
			members, err := client.ChannelMembers(context.Background(), "C1")
			if err != nil {
				t.Fatalf("members: %v", err)
			}
			if requests != 2 {
				t.Fatalf("expected 2 requests, got %d", requests)
			}
			if len(members) != 3 {
				t.Fatalf("members=%v", members)
			}
			for _, id := range []string{"U1", "U2", "U3"} {
				if _, ok := members[id]; !ok {
					t.Fatalf("missing member %s", id)
				}
			}
		})
	}
}

func TestInviteMembersJoinsIDs(t *testing.T) {
	t.Parallel()

	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations.invite" || r.Method != http.MethodPost {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "t")
	if err := client.InviteMembers(context.Background(), "C1", []string{"U1", "U2"}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if payload["channel"] != "C1" || payload["users"] != "U1,U2" {
		t.Fatalf("payload=%v", payload)
	}
}

func TestPostMessageReturnsTS(t *testing.T) {
	t.Parallel()

	var payload struct {
		Channel string  `json:"channel"`
		Text    string  `json:"text"`
		Blocks  []Block `json:"blocks"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat.postMessage" {
			t.Errorf("path=%s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = fmt.Fprint(w, `{"ok":true,"ts":"1700000000.000100"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "t")
	blocks := []Block{Header("hi"), Section("*body*").WithButton("Grafana", "https://grafana.example.com/d/1")}
	ts, err := client.PostMessage(context.Background(), "C1", "fallback", blocks)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if ts != "1700000000.000100" {
		t.Fatalf("ts=%q", ts)
	}
	if payload.Channel != "C1" || payload.Text != "fallback" || len(payload.Blocks) != 2 {
		t.Fatalf("payload=%+v", payload)
	}
	if payload.Blocks[1].Accessory == nil || payload.Blocks[1].Accessory.Text.Text != "Grafana" {
		t.Fatalf("accessory lost: %+v", payload.Blocks[1])
	}
	if payload.Blocks[1].Accessory.Text.Emoji == nil || *payload.Blocks[1].Accessory.Text.Emoji {
		t.Fatal("button label must serialize emoji=false")
	}
}

func TestUploadFileMultipart(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files.upload" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("filename"); got != "check.png" {
			t.Errorf("filename=%q", got)
		}
		if got := r.FormValue("channels"); got != "C1" {
			t.Errorf("channels=%q", got)
		}
		if got := r.FormValue("thread_ts"); got != "1700.1" {
			t.Errorf("thread_ts=%q", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			defer file.Close()
			buf := make([]byte, 8)
			n, _ := file.Read(buf)
			if string(buf[:n]) != "PNGDATA" {
				t.Errorf("file bytes=%q", buf[:n])
			}
		}
		_, _ = fmt.Fprint(w, `{"ok":true,"file":{"id":"F1"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "t")
	if err := client.UploadFile(context.Background(), "check.png", []byte("PNGDATA"), "C1", "1700.1"); err != nil {
		t.Fatalf("upload: %v", err)
	}
}
