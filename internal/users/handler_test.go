package users_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/warden-admin/warden/internal/rbac"
	"github.com/warden-admin/warden/internal/shared"
	"github.com/warden-admin/warden/internal/users"
	"github.com/warden-admin/warden/internal/view"
	_ "github.com/warden-admin/warden/testing"
)

type stubCatalog struct{}

func (stubCatalog) RoleNames(ctx context.Context) ([]string, error) {
	return []string{"admin", "user"}, nil
}

type stubPermissionSource struct {
	perms []string
}

func (s *stubPermissionSource) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.perms, nil
}

type fixture struct {
	repo    *fakeRepo
	service *users.Service
	router  chi.Router
}

func newFixture(t *testing.T, granted []string) *fixture {
	t.Helper()
	repo := newFakeRepo()
	service := users.NewService(repo)
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := rbac.NewGate(&stubPermissionSource{perms: granted}, rbac.DefaultPolicy(), logger)
	handler := users.NewHandler(logger, service, stubCatalog{}, templates, shared.NewCSRFManager("csrfsecret"), gate)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := &shared.Session{ID: "test"}
			sess.SetUser("7")
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	})
	router.Route("/users", handler.MountRoutes)
	return &fixture{repo: repo, service: service, router: router}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func (f *fixture) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func TestListUsersSearch(t *testing.T) {
	f := newFixture(t, rbac.AllPermissions())
	seed := []struct{ name, email string }{
		{"Ada Lovelace", "ada@example.com"},
		{"Grace Hopper", "grace@example.com"},
	}
	for _, s := range seed {
		if _, err := f.service.Create(context.Background(), s.name, s.email, "correct horse", nil); err != nil {
			t.Fatalf("seed %s: %v", s.name, err)
		}
	}

	res := f.get(t, "/users?search=ada")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := res.Body.String()
	if !strings.Contains(body, "Ada Lovelace") {
		t.Fatalf("expected Ada in search results")
	}
	if strings.Contains(body, "Grace Hopper") {
		t.Fatalf("Grace should not match search term")
	}
}

func TestListUsersSearchMatchesEmail(t *testing.T) {
	f := newFixture(t, rbac.AllPermissions())
	if _, err := f.service.Create(context.Background(), "Ada Lovelace", "ada@example.com", "correct horse", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res := f.get(t, "/users?search=EXAMPLE.com")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Ada Lovelace") {
		t.Fatalf("expected email match to be case-insensitive")
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t, rbac.AllPermissions())

	form := url.Values{}
	form.Set("name", "Ada Lovelace")
	form.Set("email", "ada@example.com")
	form.Set("password", "correct horse")
	form.Add("roles", "admin")

	res := f.post(t, "/users", form)
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if loc := res.Header().Get("Location"); loc != "/users" {
		t.Fatalf("expected redirect to /users, got %q", loc)
	}
	if len(f.repo.users) != 1 {
		t.Fatalf("expected one user persisted, got %d", len(f.repo.users))
	}
}

func TestCreateUserRequiresPassword(t *testing.T) {
	f := newFixture(t, rbac.AllPermissions())

	form := url.Values{}
	form.Set("name", "Ada Lovelace")
	form.Set("email", "ada@example.com")
	form.Set("password", "short")

	res := f.post(t, "/users", form)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	if len(f.repo.users) != 0 {
		t.Fatalf("user created with invalid password")
	}
}

func TestCreateUserDuplicateEmailHandler(t *testing.T) {
	f := newFixture(t, rbac.AllPermissions())
	if _, err := f.service.Create(context.Background(), "Ada", "ada@example.com", "correct horse", nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	form := url.Values{}
	form.Set("name", "Another Ada")
	form.Set("email", "ada@example.com")
	form.Set("password", "battery staple")
	res := f.post(t, "/users", form)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "already taken") {
		t.Fatalf("expected conflict message in form")
	}
	if len(f.repo.users) != 1 {
		t.Fatalf("duplicate create mutated the store")
	}
}

func TestCreateUserForbiddenWithoutPermission(t *testing.T) {
	f := newFixture(t, []string{rbac.PermUsersIndex})

	form := url.Values{}
	form.Set("name", "Ada Lovelace")
	form.Set("email", "ada@example.com")
	form.Set("password", "correct horse")
	res := f.post(t, "/users", form)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
	if len(f.repo.users) != 0 {
		t.Fatalf("user created despite missing permission")
	}
}

func TestUpdateUserWithoutPasswordChange(t *testing.T) {
	f := newFixture(t, rbac.AllPermissions())
	u, err := f.service.Create(context.Background(), "Ada", "ada@example.com", "correct horse", nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	form := url.Values{}
	form.Set("name", "Ada Lovelace")
	form.Set("email", "ada@example.com")
	form.Set("password", "")
	form.Add("roles", "user")
	res := f.post(t, "/users/"+strconv.FormatInt(u.ID, 10), form)
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	got, err := f.service.Get(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Ada Lovelace" {
		t.Fatalf("name not updated: %q", got.Name)
	}
	if got.PasswordHash != u.PasswordHash {
		t.Fatalf("password changed on blank input")
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t, rbac.AllPermissions())
	u, err := f.service.Create(context.Background(), "Ada", "ada@example.com", "correct horse", nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	res := f.post(t, "/users/"+strconv.FormatInt(u.ID, 10)+"/delete", url.Values{})
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if len(f.repo.users) != 0 {
		t.Fatalf("user still present after delete")
	}
}

func TestEditUserNotFound(t *testing.T) {
	f := newFixture(t, rbac.AllPermissions())

	res := f.get(t, "/users/99/edit")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
