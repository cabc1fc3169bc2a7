package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendWebhookDelivery(t *testing.T) {
	var received WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := &WebhookPayload{
		Event:         "recording_completed",
		Basename:      "2026-08-29_10_00_00",
		LengthSeconds: 4.5,
		Threshold:     0.1,
		Timestamp:     timestampUTC(),
	}
	if err := sendWebhook(srv.URL, payload); err != nil {
		t.Fatalf("sendWebhook failed: %v", err)
	}

	if received.Event != payload.Event || received.Basename != payload.Basename {
		t.Errorf("received %+v, want %+v", received, payload)
	}
}

func TestSendWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := sendWebhook(srv.URL, &WebhookPayload{Event: "test", Timestamp: timestampUTC()})
	if err == nil {
		t.Error("sendWebhook accepted a 500 response")
	}
}

func TestSendWebhookUnconfiguredIsNoop(t *testing.T) {
	if err := sendWebhook("", &WebhookPayload{Event: "test"}); err != nil {
		t.Errorf("unconfigured webhook returned %v", err)
	}
}

func TestSendTestWebhookRequiresURL(t *testing.T) {
	if err := SendTestWebhook("", "station"); err == nil {
		t.Error("SendTestWebhook accepted an empty URL")
	}
}
