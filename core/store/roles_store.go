package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"afk-admin/core/utils"
)

type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions []string
	BuiltIn     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type RolesStore interface {
	List(ctx context.Context) ([]Role, error)
	FindByID(ctx context.Context, id int64) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, r *Role) (int64, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id int64) error
	EnsureBuiltIn(ctx context.Context, roles []Role) error
}

type SQLRolesStore struct {
	db *sql.DB
}

func NewRolesStore(db *sql.DB) *SQLRolesStore {
	return &SQLRolesStore{db: db}
}

const roleColumns = `id, name, description, permissions, built_in, created_at, updated_at`

func scanRole(sc rowScanner, r *Role) error {
	var perms string
	if err := sc.Scan(&r.ID, &r.Name, &r.Description, &perms, &r.BuiltIn, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return err
	}
	if perms != "" {
		if err := json.Unmarshal([]byte(perms), &r.Permissions); err != nil {
			return fmt.Errorf("role %s permissions: %w", r.Name, err)
		}
	}
	return nil
}

func (s *SQLRolesStore) List(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		var r Role
		if err := scanRole(rows, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLRolesStore) FindByID(ctx context.Context, id int64) (*Role, error) {
	row := s.db.QueryRowContext(ctx, rebind(`SELECT `+roleColumns+` FROM roles WHERE id = ?`), id)
	var r Role
	if err := scanRole(row, &r); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *SQLRolesStore) FindByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, rebind(`SELECT `+roleColumns+` FROM roles WHERE LOWER(name) = ?`),
		strings.ToLower(strings.TrimSpace(name)))
	var r Role
	if err := scanRole(row, &r); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func marshalPermissions(perms []string) (string, error) {
	if perms == nil {
		perms = []string{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *SQLRolesStore) Create(ctx context.Context, r *Role) (int64, error) {
	perms, err := marshalPermissions(r.Permissions)
	if err != nil {
		return 0, err
	}
	now := utils.NowUTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	query := `INSERT INTO roles (name, description, permissions, built_in, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	args := []any{strings.TrimSpace(r.Name), r.Description, perms, r.BuiltIn, now, now}
	if pgPlaceholders.Load() {
		var id int64
		if err := s.db.QueryRowContext(ctx, rebind(query+` RETURNING id`), args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("create role: %w", err)
		}
		r.ID = id
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("create role: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

func (s *SQLRolesStore) Update(ctx context.Context, r *Role) error {
	perms, err := marshalPermissions(r.Permissions)
	if err != nil {
		return err
	}
	r.UpdatedAt = utils.NowUTC()
	res, err := s.db.ExecContext(ctx,
		rebind(`UPDATE roles SET name = ?, description = ?, permissions = ?, updated_at = ? WHERE id = ?`),
		strings.TrimSpace(r.Name), r.Description, perms, r.UpdatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("update role %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLRolesStore) Delete(ctx context.Context, id int64) error {
	var builtIn bool
	err := s.db.QueryRowContext(ctx, rebind(`SELECT built_in FROM roles WHERE id = ?`), id).Scan(&builtIn)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return err
	}
	if builtIn {
		return fmt.Errorf("built-in role cannot be deleted")
	}
	_, err = s.db.ExecContext(ctx, rebind(`DELETE FROM roles WHERE id = ?`), id)
	return err
}

// EnsureBuiltIn inserts the seed roles when missing. Existing rows keep
// their permissions so admin edits survive restarts.
func (s *SQLRolesStore) EnsureBuiltIn(ctx context.Context, roles []Role) error {
	for _, r := range roles {
		existing, err := s.FindByName(ctx, r.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		r.BuiltIn = true
		if _, err := s.Create(ctx, &r); err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
	}
	return nil
}
