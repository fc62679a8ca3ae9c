package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warden-admin/warden/internal/rbac"
	"github.com/warden-admin/warden/internal/shared"
	"github.com/warden-admin/warden/internal/view"
)

// PermissionCatalog lists the seeded permissions for the role form.
type PermissionCatalog interface {
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
}

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	catalog   PermissionCatalog
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      rbac.Gate
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, catalog PermissionCatalog, templates *view.Engine, csrf *shared.CSRFManager, gate rbac.Gate) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		catalog:   catalog,
		templates: templates,
		csrf:      csrf,
		gate:      gate,
		validator: validator.New(),
	}
}

// MountRoutes registers role routes, each group behind its gate action.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.ActionRolesIndex))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.ActionRolesCreate))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.ActionRolesEdit))
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.ActionRolesDelete))
		r.Post("/{id}/delete", h.delete)
	})
}

type formErrors map[string]string

type roleForm struct {
	Name        string `validate:"required,max=255"`
	Permissions []string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	list, pagination, err := h.service.List(r.Context(), search, page)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		h.render(w, r, "pages/roles/list.html", map[string]any{
			"Roles":  []Role{},
			"Search": search,
			"Errors": formErrors{"general": shared.UserSafeMessage(err)},
		}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/list.html", map[string]any{
		"Roles":      list,
		"Pagination": pagination,
		"Search":     search,
		"Errors":     formErrors{},
	}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	perms, err := h.catalog.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/form.html", map[string]any{
		"Role":        nil,
		"Form":        roleForm{},
		"Permissions": perms,
		"Errors":      formErrors{},
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	if errs := h.validate(form); len(errs) > 0 {
		h.renderForm(w, r, nil, form, errs, http.StatusUnprocessableEntity)
		return
	}

	if _, err := h.service.Create(r.Context(), form.Name, form.Permissions); err != nil {
		h.renderMutationError(w, r, nil, form, err)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "roles created successfully")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondNotFoundOrError(w, err)
		return
	}
	perms, err := h.catalog.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/form.html", map[string]any{
		"Role":        role,
		"Form":        roleForm{Name: role.Name, Permissions: role.Permissions},
		"Permissions": perms,
		"Errors":      formErrors{},
	}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondNotFoundOrError(w, err)
		return
	}
	if errs := h.validate(form); len(errs) > 0 {
		h.renderForm(w, r, &role, form, errs, http.StatusUnprocessableEntity)
		return
	}

	if err := h.service.Update(r.Context(), id, form.Name, form.Permissions); err != nil {
		h.renderMutationError(w, r, &role, form, err)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "roles updated successfully")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondNotFoundOrError(w, err)
		return
	}
	h.redirectWithFlash(w, r, "/roles", "success", "roles deleted successfully")
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (roleForm, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return roleForm{}, false
	}
	return roleForm{
		Name:        r.PostFormValue("name"),
		Permissions: r.PostForm["permissions"],
	}, true
}

func (h *Handler) validate(form roleForm) formErrors {
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		errs["name"] = "a role name of at most 255 characters is required"
	}
	return errs
}

func (h *Handler) renderMutationError(w http.ResponseWriter, r *http.Request, role *Role, form roleForm, err error) {
	switch {
	case errors.Is(err, shared.ErrConflict):
		h.renderForm(w, r, role, form, formErrors{"name": shared.UserSafeMessage(err)}, http.StatusUnprocessableEntity)
	case errors.Is(err, shared.ErrNotFound):
		h.renderForm(w, r, role, form, formErrors{"permissions": "one of the selected permissions does not exist"}, http.StatusUnprocessableEntity)
	default:
		h.logger.Error("save role", slog.Any("error", err))
		h.renderForm(w, r, role, form, formErrors{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
	}
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, role *Role, form roleForm, errs formErrors, status int) {
	perms, err := h.catalog.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles/form.html", map[string]any{
		"Role":        role,
		"Form":        form,
		"Permissions": perms,
		"Errors":      errs,
	}, status)
}

func (h *Handler) respondNotFoundOrError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	h.logger.Error("load role", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Roles",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Granted:     rbac.GrantedFromContext(r.Context()),
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
