package app_test

import (
	"os"
	"testing"

	"github.com/warden-admin/warden/internal/app"
	_ "github.com/warden-admin/warden/testing"
)

// The only required setting is the CSRF secret. Session IDs are random
// lookups into Redis, so no session signing secret exists.
func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CSRF_SECRET", "test-secret")
	os.Unsetenv("SESSION_SECRET")

	cfg, err := app.LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AppAddr != ":8080" {
		t.Fatalf("unexpected default addr %q", cfg.AppAddr)
	}
	if cfg.IsProduction() {
		t.Fatalf("development config reports production")
	}
}

func TestLoadConfigRequiresCSRFSecret(t *testing.T) {
	t.Setenv("CSRF_SECRET", "")

	if _, err := app.LoadConfig(); err == nil {
		t.Fatalf("expected error when csrf secret is empty")
	}
}
