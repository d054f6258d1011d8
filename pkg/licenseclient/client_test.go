package licenseclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:   server.URL,
		AppKey:    "app_test",
		AppSecret: "sk_test",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client, server
}

func TestActivateSendsProtocolHeaders(t *testing.T) {
	var gotKey, gotSecret, gotAuth string
	var gotBody map[string]string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-app-key")
		gotSecret = r.Header.Get("x-app-secret")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		expires := time.Now().AddDate(0, 0, 30)
		_ = json.NewEncoder(w).Encode(ActivationResponse{
			Success:   true,
			Message:   "License activated successfully",
			ExpiresAt: &expires,
		})
	}))

	resp, err := client.Activate(context.Background(), "bearer-token", "KOFI-AAAAA")
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if !resp.Success || resp.ExpiresAt == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if gotKey != "app_test" || gotSecret != "sk_test" {
		t.Fatalf("app credentials not sent: key=%q secret=%q", gotKey, gotSecret)
	}
	if gotAuth != "Bearer bearer-token" {
		t.Fatalf("unexpected Authorization header %q", gotAuth)
	}
	if gotBody["licenseKey"] != "KOFI-AAAAA" {
		t.Fatalf("unexpected body %v", gotBody)
	}
}

func TestActivateReturnsRefusalNotError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ActivationResponse{
			Success: false,
			Message: "Maximum activations reached for this license",
		})
	}))

	resp, err := client.Activate(context.Background(), "token", "KOFI-AAAAA")
	if err != nil {
		t.Fatalf("a definitive refusal must not be an error, got %v", err)
	}
	if resp.Success || resp.Message != "Maximum activations reached for this license" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestValidateUnauthorizedIsTerminal(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Validate(context.Background(), "expired-token")
	if err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestValidateServerErrorIsTransport(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Validate(context.Background(), "token")
	if !IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestValidateConnectionRefusedIsTransport(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := client.Validate(context.Background(), "token")
	if !IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	if _, err := New(Config{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected error without app credentials")
	}
	if _, err := New(Config{AppKey: "a", AppSecret: "b"}); err == nil {
		t.Fatal("expected error without base URL")
	}
}
