package users

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

// RoleCatalog lists the available roles for the user form.
type RoleCatalog interface {
	RoleNames(ctx context.Context) ([]string, error)
}

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	catalog   RoleCatalog
	templates *view.Engine
	csrf      *shared.CSRFManager
	gate      rbac.Gate
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, catalog RoleCatalog, templates *view.Engine, csrf *shared.CSRFManager, gate rbac.Gate) *Handler {
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

// MountRoutes registers user routes, each group behind its gate action.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.ActionUsersIndex))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.ActionUsersCreate))
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.ActionUsersEdit))
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(rbac.ActionUsersDelete))
		r.Post("/{id}/delete", h.delete)
	})
}

type formErrors map[string]string

type userForm struct {
	Name     string `validate:"required,max=255"`
	Email    string `validate:"required,email,max=255"`
	Password string
	Roles    []string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	list, pagination, err := h.service.List(r.Context(), search, page)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", map[string]any{
			"Users":  []User{},
			"Search": search,
			"Errors": formErrors{"general": shared.UserSafeMessage(err)},
		}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", map[string]any{
		"Users":      list,
		"Pagination": pagination,
		"Search":     search,
		"Errors":     formErrors{},
	}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, nil, userForm{}, formErrors{}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	if errs := h.validate(form, true); len(errs) > 0 {
		h.renderForm(w, r, nil, form, errs, http.StatusUnprocessableEntity)
		return
	}

	if _, err := h.service.Create(r.Context(), form.Name, form.Email, form.Password, form.Roles); err != nil {
		h.renderMutationError(w, r, nil, form, err)
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "users created successfully")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondNotFoundOrError(w, err)
		return
	}
	form := userForm{Name: user.Name, Email: user.Email, Roles: user.Roles}
	h.renderForm(w, r, &user, form, formErrors{}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondNotFoundOrError(w, err)
		return
	}
	if errs := h.validate(form, false); len(errs) > 0 {
		h.renderForm(w, r, &user, form, errs, http.StatusUnprocessableEntity)
		return
	}

	if err := h.service.Update(r.Context(), id, form.Name, form.Email, form.Password, form.Roles); err != nil {
		h.renderMutationError(w, r, &user, form, err)
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "users updated successfully")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondNotFoundOrError(w, err)
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "users deleted successfully")
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (userForm, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return userForm{}, false
	}
	return userForm{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Roles:    r.PostForm["roles"],
	}, true
}

// validate checks the form; the password is mandatory only on create, an
// empty one on edit keeps the current credential.
func (h *Handler) validate(form userForm, requirePassword bool) formErrors {
	errs := formErrors{}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				switch fe.Field() {
				case "Name":
					errs["name"] = "a name of at most 255 characters is required"
				case "Email":
					errs["email"] = "a valid email address is required"
				}
			}
		}
	}
	if requirePassword && form.Password == "" {
		errs["password"] = "a password of at least 8 characters is required"
	}
	if form.Password != "" && len(form.Password) < 8 {
		errs["password"] = "a password of at least 8 characters is required"
	}
	return errs
}

func (h *Handler) renderMutationError(w http.ResponseWriter, r *http.Request, user *User, form userForm, err error) {
	switch {
	case errors.Is(err, shared.ErrConflict):
		h.renderForm(w, r, user, form, formErrors{"email": shared.UserSafeMessage(err)}, http.StatusUnprocessableEntity)
	case errors.Is(err, shared.ErrNotFound):
		h.renderForm(w, r, user, form, formErrors{"roles": "one of the selected roles does not exist"}, http.StatusUnprocessableEntity)
	default:
		h.logger.Error("save user", slog.Any("error", err))
		h.renderForm(w, r, user, form, formErrors{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
	}
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, user *User, form userForm, errs formErrors, status int) {
	roles, err := h.catalog.RoleNames(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/form.html", map[string]any{
		"User":   user,
		"Form":   form,
		"Roles":  roles,
		"Errors": errs,
	}, status)
}

func (h *Handler) respondNotFoundOrError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	h.logger.Error("load user", slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
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
		Title:       "Users",
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
