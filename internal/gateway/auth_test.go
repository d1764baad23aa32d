package gateway_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deskhub/helpdesk/internal/gateway"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	auth := gateway.NewAuthenticator(testSecret)
	token, err := auth.Issue("u-42", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	userID, err := auth.Authenticate(r)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if userID != "u-42" {
		t.Fatalf("expected u-42, got %q", userID)
	}
}

func TestAuthenticator_RejectsExpiredToken(t *testing.T) {
	auth := gateway.NewAuthenticator(testSecret)
	token, err := auth.Issue("u-42", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	if _, err := auth.Authenticate(r); err != gateway.ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
