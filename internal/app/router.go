package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/warden-admin/warden/internal/auth"
	"github.com/warden-admin/warden/internal/observability"
	"github.com/warden-admin/warden/internal/platform/httpx"
	"github.com/warden-admin/warden/internal/rbac"
	"github.com/warden-admin/warden/internal/roles"
	"github.com/warden-admin/warden/internal/shared"
	"github.com/warden-admin/warden/internal/users"
	"github.com/warden-admin/warden/internal/view"
	"github.com/warden-admin/warden/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Templates          *view.Engine
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *rbac.PermissionsHandler
	Permissions        rbac.PermissionSource
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Warden defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// JSON view of the caller's effective permissions, for client-side
	// control hiding.
	r.Get("/api/me/permissions", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		userID, err := strconv.ParseInt(sess.User(), 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		names, err := params.Permissions.EffectivePermissions(r.Context(), userID)
		if err != nil {
			params.Logger.Error("resolve permissions", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"permissions": names})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		granted := rbac.NewPermissionSet(nil)
		if params.Permissions != nil {
			if userID, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
				names, err := params.Permissions.EffectivePermissions(r.Context(), userID)
				if err != nil {
					params.Logger.Error("resolve permissions", slog.Any("error", err))
				} else {
					granted = rbac.NewPermissionSet(names)
				}
			}
		}

		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		data := view.TemplateData{
			Title:       "Warden",
			CSRFToken:   csrfToken,
			Flash:       sess.PopFlash(),
			CurrentPath: r.URL.Path,
			Granted:     granted,
		}
		if err := params.Templates.Render(w, "pages/home.html", data); err != nil {
			params.Logger.Error("render home", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	params.AuthHandler.MountRoutes(r)

	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
