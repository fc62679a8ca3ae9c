package users

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

// Repository defines persistence operations for users and their role edges.
type Repository interface {
	List(ctx context.Context, search string, limit, offset int) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, name, email, passwordHash string, roleIDs []int64) (User, error)
	Update(ctx context.Context, id int64, name, email, passwordHash string, roleIDs []int64) error
	ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error
	GrantRole(ctx context.Context, userID, roleID int64) error
	Delete(ctx context.Context, id int64) error
	RoleIDsByName(ctx context.Context, names []string) (map[string]int64, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns one page of users whose name or email matches the
// case-insensitive search term, with role names attached.
func (r *PGRepository) List(ctx context.Context, search string, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'`,
		search).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY id
		LIMIT $2 OFFSET $3`, search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.attachRoles(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get fetches one user with role names.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	list := []User{u}
	if err := r.attachRoles(ctx, list); err != nil {
		return User{}, err
	}
	return list[0], nil
}

// Create inserts the user and its role edges in one transaction.
func (r *PGRepository) Create(ctx context.Context, name, email, passwordHash string, roleIDs []int64) (User, error) {
	var u User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if err := tx.QueryRow(ctx, `
			INSERT INTO users (name, email, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			RETURNING id, name, email, password_hash, created_at, updated_at`,
			name, email, passwordHash, now).
			Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return translateUserError(err)
		}
		return insertRoleEdges(ctx, tx, u.ID, roleIDs)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Update rewrites the user's fields and replaces the role set in one
// transaction. An empty passwordHash keeps the stored credential.
func (r *PGRepository) Update(ctx context.Context, id int64, name, email, passwordHash string, roleIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var tag pgconn.CommandTag
		var err error
		if passwordHash == "" {
			tag, err = tx.Exec(ctx,
				`UPDATE users SET name = $1, email = $2, updated_at = $3 WHERE id = $4`,
				name, email, time.Now().UTC(), id)
		} else {
			tag, err = tx.Exec(ctx,
				`UPDATE users SET name = $1, email = $2, password_hash = $3, updated_at = $4 WHERE id = $5`,
				name, email, passwordHash, time.Now().UTC(), id)
		}
		if err != nil {
			return translateUserError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		return insertRoleEdges(ctx, tx, id, roleIDs)
	})
}

// ReplaceRoles swaps the user's entire role set.
func (r *PGRepository) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return err
		}
		return insertRoleEdges(ctx, tx, userID, roleIDs)
	})
}

// GrantRole adds one role edge. Granting an already-held role is a no-op.
func (r *PGRepository) GrantRole(ctx context.Context, userID, roleID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		return insertRoleEdges(ctx, tx, userID, []int64{roleID})
	})
}

// Delete removes the user and its role edges. Role rows are never touched.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// RoleIDsByName resolves role names to ids. Missing names are absent from
// the result.
func (r *PGRepository) RoleIDsByName(ctx context.Context, names []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	if len(names) == 0 {
		return ids, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT name, id FROM roles WHERE name = ANY($1)`, names)
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

func (r *PGRepository) attachRoles(ctx context.Context, list []User) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, u := range list {
		ids[i] = u.ID
		index[u.ID] = i
		list[i].Roles = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id, ro.name
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY ro.name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var userID int64
		var name string
		if err := rows.Scan(&userID, &name); err != nil {
			return err
		}
		if i, ok := index[userID]; ok {
			list[i].Roles = append(list[i].Roles, name)
		}
	}
	return rows.Err()
}

func insertRoleEdges(ctx context.Context, tx pgx.Tx, userID int64, roleIDs []int64) error {
	for _, rid := range roleIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, role_id) DO NOTHING`,
			userID, rid, time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

func requireUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return shared.ErrNotFound
	}
	return nil
}

// translateUserError maps unique-violation errors on users.email to the
// domain conflict error.
func translateUserError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.Conflict("email")
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
