package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"afk-admin/core/utils"
)

type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Salt         string
	IsActive     bool
	RoleID       *int64
	Sex          *bool
	Birthday     *time.Time
	Address      string
	Locale       string
	GroupID      *int64
	Coin         int64
	Avatar       *string
	LastLogin    *time.Time
	LastLogout   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserWithRole carries the joined role columns used by listing and
// export so callers never fire per-row role lookups.
type UserWithRole struct {
	User
	RoleName        string
	RoleDescription string
}

// UserFilter narrows listing, counting and export. Zero fields are
// ignored. ActivityStatus needs Now and OnlineWindow to be set.
type UserFilter struct {
	Query          string
	RoleID         int64
	RoleName       string
	Status         string // "active" | "inactive"
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	ActivityFrom   *time.Time
	ActivityTo     *time.Time
	HasAvatar      *bool
	Locale         string
	GroupID        *int64
	ActivityStatus string // "online" | "offline" | "never"
	Now            time.Time
	OnlineWindow   time.Duration
}

// DeleteOutcome reports one id from a batched delete. Err is nil when
// the row was removed, sql.ErrNoRows when it did not exist.
type DeleteOutcome struct {
	ID  int64
	Err error
}

type UsersStore interface {
	Get(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListFiltered(ctx context.Context, f UserFilter, limit, offset int) ([]UserWithRole, error)
	CountFiltered(ctx context.Context, f UserFilter) (int, error)
	EmailIndex(ctx context.Context) (map[string]int64, error)
	Create(ctx context.Context, u *User) (int64, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
	DeleteEach(ctx context.Context, ids []int64) ([]DeleteOutcome, error)
	SetActiveBatch(ctx context.Context, ids []int64, active bool) (int64, error)
	AssignRoleBatch(ctx context.Context, ids []int64, roleID int64) (int64, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
	TouchLogout(ctx context.Context, id int64, at time.Time) error
}

type SQLUsersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) *SQLUsersStore {
	return &SQLUsersStore{db: db}
}

const userColumns = `u.id, u.email, u.first_name, u.last_name, u.password_hash, u.salt,
	u.is_active, u.role_id, u.sex, u.birthday, u.address, u.locale, u.group_id,
	u.coin, u.avatar, u.last_login, u.last_logout, u.created_at, u.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(sc rowScanner, u *User, roleName, roleDesc *sql.NullString) error {
	var (
		roleID   sql.NullInt64
		sex      sql.NullBool
		birthday sql.NullTime
		groupID  sql.NullInt64
		avatar   sql.NullString
		login    sql.NullTime
		logout   sql.NullTime
	)
	dest := []any{
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Salt,
		&u.IsActive, &roleID, &sex, &birthday, &u.Address, &u.Locale, &groupID,
		&u.Coin, &avatar, &login, &logout, &u.CreatedAt, &u.UpdatedAt,
	}
	if roleName != nil {
		dest = append(dest, roleName, roleDesc)
	}
	if err := sc.Scan(dest...); err != nil {
		return err
	}
	if roleID.Valid {
		v := roleID.Int64
		u.RoleID = &v
	}
	if sex.Valid {
		v := sex.Bool
		u.Sex = &v
	}
	if birthday.Valid {
		v := birthday.Time.UTC()
		u.Birthday = &v
	}
	if groupID.Valid {
		v := groupID.Int64
		u.GroupID = &v
	}
	if avatar.Valid {
		v := avatar.String
		u.Avatar = &v
	}
	if login.Valid {
		v := login.Time.UTC()
		u.LastLogin = &v
	}
	if logout.Valid {
		v := logout.Time.UTC()
		u.LastLogout = &v
	}
	return nil
}

func (s *SQLUsersStore) Get(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, rebind(`SELECT `+userColumns+` FROM users u WHERE u.id = ?`), id)
	var u User
	if err := scanUser(row, &u, nil, nil); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLUsersStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		rebind(`SELECT `+userColumns+` FROM users u WHERE LOWER(u.email) = ?`),
		utils.NormalizeEmail(email))
	var u User
	if err := scanUser(row, &u, nil, nil); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func buildUserFilter(f UserFilter) (string, []any) {
	var conds []string
	var args []any
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		conds = append(conds, `(LOWER(u.first_name) LIKE ? OR LOWER(u.last_name) LIKE ? OR LOWER(u.email) LIKE ?)`)
		args = append(args, like, like, like)
	}
	if f.RoleID > 0 {
		conds = append(conds, `u.role_id = ?`)
		args = append(args, f.RoleID)
	}
	if f.RoleName != "" {
		conds = append(conds, `LOWER(r.name) = ?`)
		args = append(args, strings.ToLower(f.RoleName))
	}
	switch f.Status {
	case "active":
		conds = append(conds, `u.is_active = ?`)
		args = append(args, true)
	case "inactive":
		conds = append(conds, `u.is_active = ?`)
		args = append(args, false)
	}
	if f.CreatedFrom != nil {
		conds = append(conds, `u.created_at >= ?`)
		args = append(args, f.CreatedFrom.UTC())
	}
	if f.CreatedTo != nil {
		conds = append(conds, `u.created_at <= ?`)
		args = append(args, f.CreatedTo.UTC())
	}
	if f.ActivityFrom != nil {
		conds = append(conds, `u.last_login >= ?`)
		args = append(args, f.ActivityFrom.UTC())
	}
	if f.ActivityTo != nil {
		conds = append(conds, `u.last_login <= ?`)
		args = append(args, f.ActivityTo.UTC())
	}
	if f.HasAvatar != nil {
		if *f.HasAvatar {
			conds = append(conds, `u.avatar IS NOT NULL AND u.avatar != ''`)
		} else {
			conds = append(conds, `(u.avatar IS NULL OR u.avatar = '')`)
		}
	}
	if f.Locale != "" {
		conds = append(conds, `u.locale = ?`)
		args = append(args, f.Locale)
	}
	if f.GroupID != nil {
		conds = append(conds, `u.group_id = ?`)
		args = append(args, *f.GroupID)
	}
	if f.ActivityStatus != "" {
		now := f.Now
		if now.IsZero() {
			now = utils.NowUTC()
		}
		window := f.OnlineWindow
		if window <= 0 {
			window = 5 * time.Minute
		}
		cutoff := now.Add(-window)
		switch f.ActivityStatus {
		case "online":
			conds = append(conds, `u.last_login IS NOT NULL AND u.last_login >= ?`)
			args = append(args, cutoff)
		case "offline":
			conds = append(conds, `u.last_login IS NOT NULL AND u.last_login < ?`)
			args = append(args, cutoff)
		case "never":
			conds = append(conds, `u.last_login IS NULL`)
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLUsersStore) ListFiltered(ctx context.Context, f UserFilter, limit, offset int) ([]UserWithRole, error) {
	where, args := buildUserFilter(f)
	query := `SELECT ` + userColumns + `, r.name, r.description
		FROM users u LEFT JOIN roles r ON r.id = u.role_id` + where +
		` ORDER BY u.created_at DESC, u.id DESC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []UserWithRole
	for rows.Next() {
		var u UserWithRole
		var roleName, roleDesc sql.NullString
		if err := scanUser(rows, &u.User, &roleName, &roleDesc); err != nil {
			return nil, err
		}
		u.RoleName = roleName.String
		u.RoleDescription = roleDesc.String
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLUsersStore) CountFiltered(ctx context.Context, f UserFilter) (int, error) {
	where, args := buildUserFilter(f)
	query := `SELECT COUNT(*) FROM users u LEFT JOIN roles r ON r.id = u.role_id` + where
	var n int
	if err := s.db.QueryRowContext(ctx, rebind(query), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// EmailIndex loads every normalized email with its user id in one query;
// the import pipeline uses it to resolve duplicates without per-row
// lookups.
func (s *SQLUsersStore) EmailIndex(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, LOWER(email) FROM users`)
	if err != nil {
		return nil, fmt.Errorf("email index: %w", err)
	}
	defer rows.Close()
	index := make(map[string]int64)
	for rows.Next() {
		var id int64
		var email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, err
		}
		index[email] = id
	}
	return index, rows.Err()
}

func (s *SQLUsersStore) Create(ctx context.Context, u *User) (int64, error) {
	now := utils.NowUTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.Email = utils.NormalizeEmail(u.Email)
	query := `INSERT INTO users (email, first_name, last_name, password_hash, salt, is_active,
		role_id, sex, birthday, address, locale, group_id, coin, avatar, last_login, last_logout,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		u.Email, u.FirstName, u.LastName, u.PasswordHash, u.Salt, u.IsActive,
		nullableInt64(u.RoleID), nullableBool(u.Sex), nullableTime(u.Birthday),
		u.Address, u.Locale, nullableInt64(u.GroupID), u.Coin, nullableString(u.Avatar),
		nullableTime(u.LastLogin), nullableTime(u.LastLogout), u.CreatedAt, u.UpdatedAt,
	}
	if pgPlaceholders.Load() {
		var id int64
		err := s.db.QueryRowContext(ctx, rebind(query+` RETURNING id`), args...).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("create user: %w", err)
		}
		u.ID = id
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

func (s *SQLUsersStore) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = utils.NowUTC()
	u.Email = utils.NormalizeEmail(u.Email)
	res, err := s.db.ExecContext(ctx, rebind(`UPDATE users SET email = ?, first_name = ?, last_name = ?,
		password_hash = ?, salt = ?, is_active = ?, role_id = ?, sex = ?, birthday = ?,
		address = ?, locale = ?, group_id = ?, coin = ?, avatar = ?, updated_at = ?
		WHERE id = ?`),
		u.Email, u.FirstName, u.LastName, u.PasswordHash, u.Salt, u.IsActive,
		nullableInt64(u.RoleID), nullableBool(u.Sex), nullableTime(u.Birthday),
		u.Address, u.Locale, nullableInt64(u.GroupID), u.Coin, nullableString(u.Avatar),
		u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
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

func (s *SQLUsersStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
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

// DeleteEach removes ids one by one and records a per-id outcome so the
// caller can report partial success. Each delete commits on its own; a
// failing row (missing, or blocked by a constraint) never undoes the
// rows already removed.
func (s *SQLUsersStore) DeleteEach(ctx context.Context, ids []int64) ([]DeleteOutcome, error) {
	out := make([]DeleteOutcome, 0, len(ids))
	stmt := rebind(`DELETE FROM users WHERE id = ?`)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		outcome := DeleteOutcome{ID: id}
		res, err := s.db.ExecContext(ctx, stmt, id)
		if err != nil {
			outcome.Err = fmt.Errorf("delete user %d: %w", id, err)
			out = append(out, outcome)
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			outcome.Err = err
		} else if n == 0 {
			outcome.Err = sql.ErrNoRows
		}
		out = append(out, outcome)
	}
	return out, nil
}

func (s *SQLUsersStore) SetActiveBatch(ctx context.Context, ids []int64, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`UPDATE users SET is_active = ?, updated_at = ? WHERE id IN (%s)`, placeholders(len(ids)))
	args := append([]any{active, utils.NowUTC()}, int64Args(ids)...)
	res, err := s.db.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("set active batch: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLUsersStore) AssignRoleBatch(ctx context.Context, ids []int64, roleID int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`UPDATE users SET role_id = ?, updated_at = ? WHERE id IN (%s)`, placeholders(len(ids)))
	args := append([]any{roleID, utils.NowUTC()}, int64Args(ids)...)
	res, err := s.db.ExecContext(ctx, rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("assign role batch: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLUsersStore) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, rebind(`UPDATE users SET last_login = ? WHERE id = ?`), at.UTC(), id)
	return err
}

func (s *SQLUsersStore) TouchLogout(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, rebind(`UPDATE users SET last_logout = ? WHERE id = ?`), at.UTC(), id)
	return err
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
