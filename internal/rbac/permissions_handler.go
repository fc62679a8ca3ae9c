package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warden-admin/warden/internal/shared"
	"github.com/warden-admin/warden/internal/view"
)

// PermissionsHandler serves the read-only permission catalog page. The
// catalog is support data for role management, so it sits behind the same
// gate action as the role listing.
type PermissionsHandler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      Gate
}

// NewPermissionsHandler builds a PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, gate Gate) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, templates: templates, csrf: csrf, gate: gate}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(ActionRolesIndex))
		r.Get("/", h.list)
	})
}

type formErrors map[string]string

func (h *PermissionsHandler) list(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		h.render(w, r, map[string]any{"Permissions": []Permission{}, "Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, map[string]any{"Permissions": perms, "Errors": formErrors{}}, http.StatusOK)
}

func (h *PermissionsHandler) render(w http.ResponseWriter, r *http.Request, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Permissions",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Granted:     GrantedFromContext(r.Context()),
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/permissions/list.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
