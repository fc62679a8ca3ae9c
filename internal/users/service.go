package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/warden-admin/warden/internal/shared"
)

// PerPage is the fixed listing page size.
const PerPage = 8

// Service handles user business logic. Mutations validate everything before
// touching the repository, so a failed call changes nothing.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of users matching the search term against name or
// email.
func (s *Service) List(ctx context.Context, search string, page int) ([]User, shared.Pagination, error) {
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

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a user holding exactly the named roles. The password is
// stored as a bcrypt hash, never in the clear.
func (s *Service) Create(ctx context.Context, name, email, password string, roleNames []string) (User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return User{}, &shared.ValidationError{Fields: map[string]string{"name": "name is required"}}
	}
	roleIDs, err := s.resolveRoles(ctx, roleNames)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, name, email, string(hash), roleIDs)
}

// Update rewrites name and email, optionally replaces the password, and
// replaces the role set. Keeping the user's own email succeeds; taking a
// different user's email fails with a conflict.
func (s *Service) Update(ctx context.Context, id int64, name, email, password string, roleNames []string) error {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return &shared.ValidationError{Fields: map[string]string{"name": "name is required"}}
	}
	roleIDs, err := s.resolveRoles(ctx, roleNames)
	if err != nil {
		return err
	}
	hash := ""
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		hash = string(hashed)
	}
	return s.repo.Update(ctx, id, name, email, hash, roleIDs)
}

// SetRoles replaces the user's entire role set atomically.
func (s *Service) SetRoles(ctx context.Context, userID int64, roleNames []string) error {
	roleIDs, err := s.resolveRoles(ctx, roleNames)
	if err != nil {
		return err
	}
	return s.repo.ReplaceRoles(ctx, userID, roleIDs)
}

// GrantRole adds one role to the user, keeping existing ones. Idempotent.
func (s *Service) GrantRole(ctx context.Context, userID int64, roleName string) error {
	ids, err := s.resolveRoles(ctx, []string{roleName})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("role %q: %w", roleName, shared.ErrNotFound)
	}
	return s.repo.GrantRole(ctx, userID, ids[0])
}

// Delete removes the user and every role assignment. Role entities survive.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// resolveRoles maps names to ids, rejecting the whole request when any name
// is unknown so no partial assignment can ever apply.
func (s *Service) resolveRoles(ctx context.Context, names []string) ([]int64, error) {
	unique := dedupe(names)
	byName, err := s.repo.RoleIDsByName(ctx, unique)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(unique))
	for _, n := range unique {
		id, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("role %q: %w", n, shared.ErrNotFound)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
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
