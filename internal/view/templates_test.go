package view_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/warden-admin/warden/internal/rbac"
	"github.com/warden-admin/warden/internal/shared"
	"github.com/warden-admin/warden/internal/view"
	_ "github.com/warden-admin/warden/testing"
)

func TestEngineParsesAllTemplates(t *testing.T) {
	if _, err := view.NewEngine(); err != nil {
		t.Fatalf("parse templates: %v", err)
	}
}

func TestRenderHomeHidesUngrantedSections(t *testing.T) {
	engine, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}

	res := httptest.NewRecorder()
	err = engine.Render(res, "pages/home.html", view.TemplateData{
		Title:   "Warden",
		Granted: rbac.NewPermissionSet([]string{rbac.PermUsersIndex}),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	body := res.Body.String()
	if !strings.Contains(body, "/users") {
		t.Fatalf("expected users section for granted viewer")
	}
	if strings.Contains(body, "href=\"/roles\"") {
		t.Fatalf("roles section shown without permission")
	}
}

func TestRenderLoginStandalone(t *testing.T) {
	engine, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}

	res := httptest.NewRecorder()
	err = engine.Render(res, "pages/login.html", view.TemplateData{
		Title:     "Sign in",
		CSRFToken: "tok",
		Data: map[string]any{
			"Form":   map[string]string{},
			"Errors": map[string]string{},
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	body := res.Body.String()
	if !strings.Contains(body, "<form") {
		t.Fatalf("expected a form in login page")
	}
	if !strings.Contains(body, "tok") {
		t.Fatalf("expected csrf token in login form")
	}
}

func TestRenderFlash(t *testing.T) {
	engine, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}

	res := httptest.NewRecorder()
	err = engine.Render(res, "pages/home.html", view.TemplateData{
		Title:   "Warden",
		Flash:   &shared.FlashMessage{Kind: "success", Message: "roles created successfully"},
		Granted: rbac.NewPermissionSet(nil),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(res.Body.String(), "roles created successfully") {
		t.Fatalf("expected flash message rendered")
	}
}
