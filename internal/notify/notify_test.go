package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/CosmoTheDev/ctrlreview/internal/config"
)

func TestWebhookSendSignsPayload(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Ctrlreview-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhook(config.WebhookNotifyConfig{URL: srv.URL, Secret: "s3cret"})
	evt := Event{
		Type:      EventFixesApplied,
		Title:     "2 fixes applied",
		Body:      "main.py: Rename variable",
		SessionID: "ab12cd34ef56",
	}
	if err := ch.Send(context.Background(), evt); err != nil {
		t.Fatalf("send: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["type"] != EventFixesApplied || payload["session_id"] != "ab12cd34ef56" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Fatalf("signature = %q, want %q", gotSig, want)
	}
}

func TestWebhookSendRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := NewWebhook(config.WebhookNotifyConfig{URL: srv.URL})
	if err := ch.Send(context.Background(), Event{Type: EventSessionFailed}); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestSlackSendColorsByEventType(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewSlack(config.SlackNotifyConfig{WebhookURL: srv.URL})
	evt := Event{Type: EventSessionFailed, Title: "Review failed", SessionID: "ab12cd34ef56"}
	if err := ch.Send(context.Background(), evt); err != nil {
		t.Fatalf("send: %v", err)
	}

	var payload struct {
		Attachments []struct {
			Color  string `json:"color"`
			Footer string `json:"footer"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Attachments) != 1 || payload.Attachments[0].Color != "#EF4444" {
		t.Fatalf("unexpected attachment: %+v", payload.Attachments)
	}
	if payload.Attachments[0].Footer != "ctrlreview ab12cd34ef56" {
		t.Fatalf("footer = %q", payload.Attachments[0].Footer)
	}
}

func TestDispatcherFiltersEventTypes(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotifyConfig{
		Events:  []string{EventSessionFailed},
		Webhook: config.WebhookNotifyConfig{URL: srv.URL},
	})
	if !d.IsAnyConfigured() {
		t.Fatal("webhook channel should be configured")
	}

	d.Notify(context.Background(), Event{Type: EventSessionCompleted})
	if hits.Load() != 0 {
		t.Fatalf("filtered event was sent (%d hits)", hits.Load())
	}
	d.Notify(context.Background(), Event{Type: EventSessionFailed})
	if hits.Load() != 1 {
		t.Fatalf("expected 1 hit, got %d", hits.Load())
	}
}

func TestDispatcherDefaultEvents(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotifyConfig{
		Webhook: config.WebhookNotifyConfig{URL: srv.URL},
	})

	d.Notify(context.Background(), Event{Type: EventSessionCompleted})
	d.Notify(context.Background(), Event{Type: EventPRCommented})
	if hits.Load() != 0 {
		t.Fatalf("non-default events were sent (%d hits)", hits.Load())
	}
	d.Notify(context.Background(), Event{Type: EventSessionFailed})
	d.Notify(context.Background(), Event{Type: EventFixesApplied})
	if hits.Load() != 2 {
		t.Fatalf("expected 2 hits for default events, got %d", hits.Load())
	}
}

func TestChannelsReportConfigured(t *testing.T) {
	if NewSlack(config.SlackNotifyConfig{}).IsConfigured() {
		t.Error("empty slack config should not be configured")
	}
	if NewTelegram(config.TelegramNotifyConfig{BotToken: "x"}).IsConfigured() {
		t.Error("telegram without chat_id should not be configured")
	}
	if NewEmail(config.EmailNotifyConfig{SMTPHost: "smtp.example.com"}).IsConfigured() {
		t.Error("email without from/to should not be configured")
	}
	if !NewWebhook(config.WebhookNotifyConfig{URL: "https://example.com/hook"}).IsConfigured() {
		t.Error("webhook with URL should be configured")
	}
}
