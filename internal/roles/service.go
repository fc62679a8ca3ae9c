package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/warden-admin/warden/internal/shared"
)

// PerPage is the fixed listing page size.
const PerPage = 8

// Service handles role business logic. Every mutation validates its input
// fully before touching the repository, so a failed call changes nothing.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of roles filtered by the search term.
func (s *Service) List(ctx context.Context, search string, page int) ([]Role, shared.Pagination, error) {
	search = strings.TrimSpace(search)
	if page <= 0 {
		page = 1
	}
	list, total, err := s.repo.List(ctx, search, PerPage, (page-1)*PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, PerPage, total), nil
}

// Get fetches a role by id.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a role holding exactly the named permissions.
func (s *Service) Create(ctx context.Context, name string, permissionNames []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, &shared.ValidationError{Fields: map[string]string{"name": "name is required"}}
	}
	ids, err := s.resolvePermissions(ctx, permissionNames)
	if err != nil {
		return Role{}, err
	}
	return s.repo.Create(ctx, name, ids)
}

// Update renames the role and replaces its permission set. Renaming to the
// role's own current name succeeds; colliding with a different role fails
// with a conflict.
func (s *Service) Update(ctx context.Context, id int64, name string, permissionNames []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &shared.ValidationError{Fields: map[string]string{"name": "name is required"}}
	}
	ids, err := s.resolvePermissions(ctx, permissionNames)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, id, name, ids)
}

// SetPermissions replaces the role's entire permission set atomically.
func (s *Service) SetPermissions(ctx context.Context, roleID int64, permissionNames []string) error {
	ids, err := s.resolvePermissions(ctx, permissionNames)
	if err != nil {
		return err
	}
	return s.repo.ReplacePermissions(ctx, roleID, ids)
}

// GrantPermissions adds the named permissions to the role, keeping existing
// ones. Idempotent.
func (s *Service) GrantPermissions(ctx context.Context, roleID int64, permissionNames []string) error {
	ids, err := s.resolvePermissions(ctx, permissionNames)
	if err != nil {
		return err
	}
	return s.repo.GrantPermissions(ctx, roleID, ids)
}

// RoleNames returns every role name for selection lists.
func (s *Service) RoleNames(ctx context.Context) ([]string, error) {
	return s.repo.Names(ctx)
}

// Delete removes the role and every assignment of it. Users and permissions
// survive.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// resolvePermissions maps names to ids, rejecting the whole request when any
// name is unknown so no partial set can ever be applied.
func (s *Service) resolvePermissions(ctx context.Context, names []string) ([]int64, error) {
	unique := dedupe(names)
	byName, err := s.repo.PermissionIDsByName(ctx, unique)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(unique))
	for _, n := range unique {
		id, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("permission %q: %w", n, shared.ErrNotFound)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
