package roles

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-admin/warden/internal/platform/db"
	"github.com/warden-admin/warden/internal/shared"
)

// Repository defines persistence operations for roles and their permission
// edges. Set-replacement methods are atomic: either the whole new set is
// visible or nothing changed.
type Repository interface {
	List(ctx context.Context, search string, limit, offset int) ([]Role, int, error)
	Get(ctx context.Context, id int64) (Role, error)
	Create(ctx context.Context, name string, permissionIDs []int64) (Role, error)
	Update(ctx context.Context, id int64, name string, permissionIDs []int64) error
	ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	GrantPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	Delete(ctx context.Context, id int64) error
	Names(ctx context.Context) ([]string, error)
	PermissionIDsByName(ctx context.Context, names []string) (map[string]int64, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns one page of roles matching the case-insensitive search term,
// with permission names attached, plus the unpaginated match count.
func (r *PGRepository) List(ctx context.Context, search string, limit, offset int) ([]Role, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM roles WHERE $1 = '' OR name ILIKE '%' || $1 || '%'`,
		search).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM roles
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY id
		LIMIT $2 OFFSET $3`, search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachPermissions(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get fetches one role with its permission names.
func (r *PGRepository) Get(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	list := []Role{role}
	if err := r.attachPermissions(ctx, list); err != nil {
		return Role{}, err
	}
	return list[0], nil
}

// Create inserts the role and its permission edges in one transaction.
func (r *PGRepository) Create(ctx context.Context, name string, permissionIDs []int64) (Role, error) {
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if err := tx.QueryRow(ctx,
			`INSERT INTO roles (name, created_at, updated_at) VALUES ($1, $2, $2)
			 RETURNING id, name, created_at, updated_at`,
			name, now).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return translateRoleError(err)
		}
		return insertPermissionEdges(ctx, tx, role.ID, permissionIDs)
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// Update renames the role and replaces its permission set in one
// transaction; a failure leaves both untouched.
func (r *PGRepository) Update(ctx context.Context, id int64, name string, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE roles SET name = $1, updated_at = $2 WHERE id = $3`,
			name, time.Now().UTC(), id)
		if err != nil {
			return translateRoleError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		return insertPermissionEdges(ctx, tx, id, permissionIDs)
	})
}

// ReplacePermissions swaps the role's entire permission set.
func (r *PGRepository) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := requireRole(ctx, tx, roleID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		return insertPermissionEdges(ctx, tx, roleID, permissionIDs)
	})
}

// GrantPermissions adds edges without removing existing ones. Granting an
// already-held permission is a no-op.
func (r *PGRepository) GrantPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := requireRole(ctx, tx, roleID); err != nil {
			return err
		}
		return insertPermissionEdges(ctx, tx, roleID, permissionIDs)
	})
}

// Delete removes the role, its permission edges, and its user assignments.
// Permission rows are never touched.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Names returns every role name ordered alphabetically, for selection lists.
func (r *PGRepository) Names(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// PermissionIDsByName resolves permission names to ids. Missing names are
// simply absent from the result; the service decides what that means.
func (r *PGRepository) PermissionIDsByName(ctx context.Context, names []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	if len(names) == 0 {
		return ids, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT name, id FROM permissions WHERE name = ANY($1)`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

func (r *PGRepository) attachPermissions(ctx context.Context, list []Role) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, role := range list {
		ids[i] = role.ID
		index[role.ID] = i
		list[i].Permissions = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY p.name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID int64
		var name string
		if err := rows.Scan(&roleID, &name); err != nil {
			return err
		}
		if i, ok := index[roleID]; ok {
			list[i].Permissions = append(list[i].Permissions, name)
		}
	}
	return rows.Err()
}

func insertPermissionEdges(ctx context.Context, tx pgx.Tx, roleID int64, permissionIDs []int64) error {
	for _, pid := range permissionIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (role_id, permission_id) DO NOTHING`,
			roleID, pid, time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

func requireRole(ctx context.Context, tx pgx.Tx, roleID int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return shared.ErrNotFound
	}
	return nil
}

// translateRoleError maps unique-violation errors on roles.name to the
// domain conflict error.
func translateRoleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.Conflict("name")
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
