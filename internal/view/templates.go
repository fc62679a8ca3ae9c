package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/warden-admin/warden/internal/shared"
	"github.com/warden-admin/warden/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// PermissionChecker reports whether the viewer holds a named permission.
// Satisfied by rbac.PermissionSet.
type PermissionChecker interface {
	Has(name string) bool
}

// TemplateData contains values shared across templates. Granted drives
// hiding of controls the viewer cannot use; it is a courtesy, the gate
// middleware is the actual boundary.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Granted     PermissionChecker
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	titleCaser := cases.Title(language.English)
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"title": titleCaser.String,
		"contains": func(list []string, s string) bool {
			for _, v := range list {
				if v == s {
					return true
				}
			}
			return false
		},
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates,
		"templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html", "templates/pages/*/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
