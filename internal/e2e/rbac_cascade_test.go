package e2e

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/warden-admin/warden/internal/rbac"
	"github.com/warden-admin/warden/internal/roles"
	"github.com/warden-admin/warden/internal/shared"
	_ "github.com/warden-admin/warden/testing"
)

// memoryStore backs the role repository and the effective-permission
// resolver with one shared state. Mutations made through the role service
// are immediately observable in the sets the gate consults, mirroring how
// the SQL repository and resolver share the same tables.
type memoryStore struct {
	nextRoleID int64
	permNames  map[int64]string
	permIDs    map[string]int64
	roles      map[int64]*roles.Role
	rolePerms  map[int64]map[int64]struct{}
	userRoles  map[int64]map[int64]struct{}
}

func newMemoryStore() *memoryStore {
	s := &memoryStore{
		nextRoleID: 1,
		permNames:  map[int64]string{},
		permIDs:    map[string]int64{},
		roles:      map[int64]*roles.Role{},
		rolePerms:  map[int64]map[int64]struct{}{},
		userRoles:  map[int64]map[int64]struct{}{},
	}
	for i, name := range rbac.AllPermissions() {
		id := int64(i + 1)
		s.permNames[id] = name
		s.permIDs[name] = id
	}
	return s
}

func (s *memoryStore) assign(userID, roleID int64) {
	if s.userRoles[userID] == nil {
		s.userRoles[userID] = map[int64]struct{}{}
	}
	s.userRoles[userID][roleID] = struct{}{}
}

func (s *memoryStore) List(ctx context.Context, search string, limit, offset int) ([]roles.Role, int, error) {
	var matched []roles.Role
	for _, r := range s.roles {
		if search == "" || strings.Contains(strings.ToLower(r.Name), strings.ToLower(search)) {
			matched = append(matched, *r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (roles.Role, error) {
	r, ok := s.roles[id]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	return *r, nil
}

func (s *memoryStore) Create(ctx context.Context, name string, permissionIDs []int64) (roles.Role, error) {
	for _, r := range s.roles {
		if r.Name == name {
			return roles.Role{}, shared.Conflict("name")
		}
	}
	id := s.nextRoleID
	s.nextRoleID++
	role := &roles.Role{ID: id, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.roles[id] = role
	s.rolePerms[id] = map[int64]struct{}{}
	for _, pid := range permissionIDs {
		s.rolePerms[id][pid] = struct{}{}
	}
	return *role, nil
}

func (s *memoryStore) Update(ctx context.Context, id int64, name string, permissionIDs []int64) error {
	r, ok := s.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	for otherID, other := range s.roles {
		if otherID != id && other.Name == name {
			return shared.Conflict("name")
		}
	}
	r.Name = name
	return s.ReplacePermissions(ctx, id, permissionIDs)
}

func (s *memoryStore) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, ok := s.roles[roleID]; !ok {
		return shared.ErrNotFound
	}
	s.rolePerms[roleID] = map[int64]struct{}{}
	for _, pid := range permissionIDs {
		s.rolePerms[roleID][pid] = struct{}{}
	}
	return nil
}

func (s *memoryStore) GrantPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, ok := s.roles[roleID]; !ok {
		return shared.ErrNotFound
	}
	for _, pid := range permissionIDs {
		s.rolePerms[roleID][pid] = struct{}{}
	}
	return nil
}

// Delete removes the role and its edges on both sides, the way the SQL
// repository does inside one transaction. Permission rows stay untouched.
func (s *memoryStore) Delete(ctx context.Context, id int64) error {
	if _, ok := s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	for _, held := range s.userRoles {
		delete(held, id)
	}
	return nil
}

func (s *memoryStore) Names(ctx context.Context) ([]string, error) {
	var names []string
	for _, r := range s.roles {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memoryStore) PermissionIDsByName(ctx context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, n := range names {
		if id, ok := s.permIDs[n]; ok {
			out[n] = id
		}
	}
	return out, nil
}

func (s *memoryStore) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	seen := map[string]struct{}{}
	for roleID := range s.userRoles[userID] {
		for permID := range s.rolePerms[roleID] {
			seen[s.permNames[permID]] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

var _ roles.Repository = (*memoryStore)(nil)
var _ rbac.PermissionSource = (*memoryStore)(nil)

func effective(t *testing.T, store *memoryStore, userID int64) []string {
	t.Helper()
	names, err := store.EffectivePermissions(context.Background(), userID)
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEffectivePermissionsUnionAcrossRoles(t *testing.T) {
	store := newMemoryStore()
	svc := roles.NewService(store)

	editor, err := svc.Create(context.Background(), "editor", []string{rbac.PermUsersIndex, rbac.PermUsersCreate})
	if err != nil {
		t.Fatalf("create editor: %v", err)
	}
	viewer, err := svc.Create(context.Background(), "viewer", []string{rbac.PermUsersIndex, rbac.PermRolesIndex})
	if err != nil {
		t.Fatalf("create viewer: %v", err)
	}
	store.assign(7, editor.ID)
	store.assign(7, viewer.ID)

	want := []string{rbac.PermRolesIndex, rbac.PermUsersCreate, rbac.PermUsersIndex}
	if got := effective(t, store, 7); !equalStrings(got, want) {
		t.Fatalf("effective set = %v, want distinct union %v", got, want)
	}
	if got := effective(t, store, 99); len(got) != 0 {
		t.Fatalf("unknown user resolved to %v, want empty set", got)
	}
}

func TestDeletingHeldRoleShrinksEffectiveSet(t *testing.T) {
	store := newMemoryStore()
	svc := roles.NewService(store)

	editor, err := svc.Create(context.Background(), "editor", []string{rbac.PermUsersIndex, rbac.PermUsersCreate})
	if err != nil {
		t.Fatalf("create editor: %v", err)
	}
	viewer, err := svc.Create(context.Background(), "viewer", []string{rbac.PermRolesIndex})
	if err != nil {
		t.Fatalf("create viewer: %v", err)
	}
	store.assign(7, editor.ID)
	store.assign(7, viewer.ID)

	if err := svc.Delete(context.Background(), editor.ID); err != nil {
		t.Fatalf("delete editor: %v", err)
	}

	if got := effective(t, store, 7); !equalStrings(got, []string{rbac.PermRolesIndex}) {
		t.Fatalf("effective set after role delete = %v, want [%s]", got, rbac.PermRolesIndex)
	}
	if _, err := svc.Get(context.Background(), viewer.ID); err != nil {
		t.Fatalf("unrelated role disappeared: %v", err)
	}

	// Permission entities survive role deletion.
	catalog := rbac.AllPermissions()
	resolved, err := store.PermissionIDsByName(context.Background(), catalog)
	if err != nil {
		t.Fatalf("resolve catalog: %v", err)
	}
	if len(resolved) != len(catalog) {
		t.Fatalf("catalog shrank to %d of %d permissions after role delete", len(resolved), len(catalog))
	}
}

func TestRevokingPermissionKeepsEntities(t *testing.T) {
	store := newMemoryStore()
	svc := roles.NewService(store)

	editor, err := svc.Create(context.Background(), "editor", []string{rbac.PermUsersIndex, rbac.PermUsersCreate})
	if err != nil {
		t.Fatalf("create editor: %v", err)
	}
	store.assign(7, editor.ID)

	if err := svc.SetPermissions(context.Background(), editor.ID, []string{rbac.PermUsersIndex}); err != nil {
		t.Fatalf("replace permissions: %v", err)
	}

	if got := effective(t, store, 7); !equalStrings(got, []string{rbac.PermUsersIndex}) {
		t.Fatalf("effective set after revoke = %v, want [%s]", got, rbac.PermUsersIndex)
	}
	if _, err := svc.Get(context.Background(), editor.ID); err != nil {
		t.Fatalf("role disappeared after permission revoke: %v", err)
	}
	if _, ok := store.permIDs[rbac.PermUsersCreate]; !ok {
		t.Fatalf("revoked permission was deleted from the catalog")
	}
}

func TestGateDeniesAfterHeldRoleDeleted(t *testing.T) {
	store := newMemoryStore()
	svc := roles.NewService(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := rbac.NewGate(store, rbac.DefaultPolicy(), logger)

	viewer, err := svc.Create(context.Background(), "viewer", []string{rbac.PermRolesIndex})
	if err != nil {
		t.Fatalf("create viewer: %v", err)
	}
	store.assign(7, viewer.ID)

	serve := func() int {
		req := httptest.NewRequest(http.MethodGet, "/roles", nil)
		sess := &shared.Session{}
		sess.SetUser("7")
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
		res := httptest.NewRecorder()
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		gate.Require(rbac.ActionRolesIndex)(next).ServeHTTP(res, req)
		return res.Code
	}

	if code := serve(); code != http.StatusOK {
		t.Fatalf("expected 200 while role is held, got %d", code)
	}
	if err := svc.Delete(context.Background(), viewer.ID); err != nil {
		t.Fatalf("delete viewer: %v", err)
	}
	if code := serve(); code != http.StatusForbidden {
		t.Fatalf("expected 403 after held role was deleted, got %d", code)
	}
}
