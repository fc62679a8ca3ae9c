package shared_test

import (
	"context"
	"errors"
	"testing"

	"github.com/warden-admin/warden/internal/shared"
	_ "github.com/warden-admin/warden/testing"
)

func TestEnsureTokenIsStablePerSession(t *testing.T) {
	m := shared.NewCSRFManager("csrfsecret")
	sess := &shared.Session{ID: "abc"}

	first, err := m.EnsureToken(context.Background(), sess)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first == "" {
		t.Fatalf("expected non-empty token")
	}
	second, err := m.EnsureToken(context.Background(), sess)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if first != second {
		t.Fatalf("token changed within one session")
	}
}

func TestVerifyToken(t *testing.T) {
	m := shared.NewCSRFManager("csrfsecret")
	sess := &shared.Session{ID: "abc"}
	token, err := m.EnsureToken(context.Background(), sess)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if err := m.VerifyToken(context.Background(), sess, token); err != nil {
		t.Fatalf("verify valid token: %v", err)
	}
	if err := m.VerifyToken(context.Background(), sess, token+"x"); !errors.Is(err, shared.ErrCSRFTokenMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := m.VerifyToken(context.Background(), sess, ""); !errors.Is(err, shared.ErrCSRFTokenMissing) {
		t.Fatalf("expected missing-token error, got %v", err)
	}
	if err := m.VerifyToken(context.Background(), nil, token); !errors.Is(err, shared.ErrCSRFTokenMissing) {
		t.Fatalf("expected missing-token error for nil session, got %v", err)
	}
}
