package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"afk-admin/core/utils"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// migrations is the sqlite flavor of the schema, applied statement by
// statement under go test. The postgres schema lives in migrations/ and
// is driven by goose.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		permissions TEXT NOT NULL DEFAULT '[]',
		built_in INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		role_id INTEGER,
		sex INTEGER,
		birthday TIMESTAMP,
		address TEXT NOT NULL DEFAULT '',
		locale TEXT NOT NULL DEFAULT '',
		group_id INTEGER,
		coin INTEGER NOT NULL DEFAULT 0,
		avatar TEXT,
		last_login TIMESTAMP,
		last_logout TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(role_id) REFERENCES roles(id) ON DELETE SET NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		email TEXT NOT NULL,
		roles TEXT NOT NULL,
		csrf_token TEXT NOT NULL,
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT,
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);`,
	`CREATE INDEX IF NOT EXISTS idx_users_is_active ON users(is_active);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at);`,
}

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if isPostgresDB(ctx, db) {
		return applyGooseMigrations(ctx, db, logger)
	}
	return applySQLiteTestMigrations(ctx, db, logger)
}

func applyGooseMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	logger.Printf("migrations: postgres schema up to date")
	return nil
}

func applySQLiteTestMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if !isTestRuntime() {
		return fmt.Errorf("sqlite migrations are limited to the test runtime")
	}
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration %d: %w", i, err)
		}
	}
	if err := ensureUserColumns(ctx, db); err != nil {
		return err
	}
	logger.Printf("migrations: sqlite test schema up to date")
	return nil
}

// ensureUserColumns backfills columns added after the base table so old
// test fixtures keep working.
func ensureUserColumns(ctx context.Context, db *sql.DB) error {
	additions := map[string]string{
		"locale":      `ALTER TABLE users ADD COLUMN locale TEXT NOT NULL DEFAULT ''`,
		"group_id":    `ALTER TABLE users ADD COLUMN group_id INTEGER`,
		"coin":        `ALTER TABLE users ADD COLUMN coin INTEGER NOT NULL DEFAULT 0`,
		"avatar":      `ALTER TABLE users ADD COLUMN avatar TEXT`,
		"last_logout": `ALTER TABLE users ADD COLUMN last_logout TIMESTAMP`,
	}
	for column, stmt := range additions {
		exists, err := columnExists(ctx, db, "users", column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add users.%s: %w", column, err)
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid      int
			name     string
			colType  string
			notNull  int
			dflt     sql.NullString
			isPKCol  int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &isPKCol); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
