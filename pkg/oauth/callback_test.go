// Package oauth callback tests document the local redirect receiver.
//
// Test requirements (this file serves as documentation):
// - WaitForCallback serves on the given port and accepts any path
// - The code is returned only when the state matches (CSRF protection)
// - Provider-reported errors and timeouts are returned as errors
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func waitAsync(s *CallbackServer, state string) (<-chan string, <-chan error) {
	codes := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		code, err := s.WaitForCallback(context.Background(), state, 5*time.Second)
		if err != nil {
			errs <- err
			return
		}
		codes <- code
	}()
	time.Sleep(50 * time.Millisecond)
	return codes, errs
}

// TestCallbackServer_ReceivesCode documents the happy path on a
// platform-specific redirect path.
func TestCallbackServer_ReceivesCode(t *testing.T) {
	server := NewCallbackServer(18085)
	codes, errs := waitAsync(server, "state-123")

	resp, err := http.Get(server.Origin() + CallbackPath(PlatformTikTok) + "/?code=auth-code-xyz&state=state-123")
	if err != nil {
		t.Fatalf("failed to make callback request: %v", err)
	}
	_ = resp.Body.Close()

	select {
	case code := <-codes:
		if code != "auth-code-xyz" {
			t.Errorf("expected code 'auth-code-xyz', got %q", code)
		}
	case err := <-errs:
		t.Fatalf("callback server error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for callback")
	}
}

// TestCallbackServer_RejectsInvalidState documents CSRF protection.
func TestCallbackServer_RejectsInvalidState(t *testing.T) {
	server := NewCallbackServer(18086)
	_, errs := waitAsync(server, "correct-state")

	resp, err := http.Get("http://localhost:18086/api/callback/facebook?code=some-code&state=wrong-state")
	if err != nil {
		t.Fatalf("failed to make callback request: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid state, got %d", resp.StatusCode)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for result")
	}
}

func TestCallbackServer_ProviderError(t *testing.T) {
	server := NewCallbackServer(18087)
	_, errs := waitAsync(server, "s")

	resp, err := http.Get(fmt.Sprintf("%s/?error=access_denied&error_description=%s&state=s", server.Origin(), "user+cancelled"))
	if err != nil {
		t.Fatalf("failed to make callback request: %v", err)
	}
	_ = resp.Body.Close()

	select {
	case err := <-errs:
		if err == nil || errors.Is(err, ErrInvalidState) {
			t.Errorf("expected authorization error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for result")
	}
}

// TestCallbackServer_Timeout documents timeout behavior.
func TestCallbackServer_Timeout(t *testing.T) {
	server := NewCallbackServer(18088)

	_, err := server.WaitForCallback(context.Background(), "some-state", 100*time.Millisecond)
	if err == nil {
		t.Error("expected timeout error")
	}
}

func TestCallbackServer_ContextCancel(t *testing.T) {
	server := NewCallbackServer(18089)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := server.WaitForCallback(ctx, "s", time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
