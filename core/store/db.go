package store

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"afk-admin/config"
	"afk-admin/core/utils"
)

var pgPlaceholders atomic.Bool

// NewDB opens the configured database. Production runs on postgres via
// the pgx stdlib driver; under go test a file-backed sqlite database is
// used so the suite needs no external services.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	driver := cfg.DBDriver
	if cfg.DBPath != "" && isTestRuntime() {
		driver = "sqlite"
	}
	switch driver {
	case "sqlite":
		if !isTestRuntime() {
			return nil, fmt.Errorf("sqlite driver is limited to the test runtime")
		}
		db, err := sql.Open("sqlite", cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
		}
		db.SetMaxOpenConns(1)
		pgPlaceholders.Store(false)
		return db, nil
	case "postgres", "":
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(30 * time.Minute)
		pgPlaceholders.Store(true)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

func isTestRuntime() bool {
	if strings.HasSuffix(os.Args[0], ".test") || strings.Contains(os.Args[0], "/_test/") {
		return true
	}
	return flag.Lookup("test.v") != nil
}

func isPostgresDB(ctx context.Context, db *sql.DB) bool {
	var name string
	return db.QueryRowContext(ctx, `SELECT current_database()`).Scan(&name) == nil
}

// rebind rewrites ? placeholders into $n when the postgres driver is
// active. Store queries are all written with ? so they run on both
// backends.
func rebind(query string) string {
	if !pgPlaceholders.Load() {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
