package store

import (
	"context"
	"database/sql"
	"time"

	"afk-admin/core/utils"
)

type AuditEntry struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditStore interface {
	Log(ctx context.Context, actor, action, details string) error
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}

type SQLAuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *SQLAuditStore {
	return &SQLAuditStore{db: db}
}

func (s *SQLAuditStore) Log(ctx context.Context, actor, action, details string) error {
	_, err := s.db.ExecContext(ctx,
		rebind(`INSERT INTO audit_log (actor, action, details, created_at) VALUES (?, ?, ?, ?)`),
		actor, action, details, utils.NowUTC())
	return err
}

func (s *SQLAuditStore) Recent(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		rebind(`SELECT id, actor, action, details, created_at FROM audit_log ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Details = details.String
		out = append(out, e)
	}
	return out, rows.Err()
}
