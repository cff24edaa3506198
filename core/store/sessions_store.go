package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"afk-admin/core/utils"
)

type SessionRecord struct {
	ID         string
	UserID     int64
	Email      string
	Roles      []string
	CSRFToken  string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

type SessionStore interface {
	SaveSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListByUser(ctx context.Context, userID int64) ([]SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	UpdateActivity(ctx context.Context, id string, seenAt time.Time, ttl time.Duration) error
}

type SQLSessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SQLSessionStore {
	return &SQLSessionStore{db: db}
}

func (s *SQLSessionStore) SaveSession(ctx context.Context, rec *SessionRecord) error {
	roles, err := json.Marshal(rec.Roles)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, rebind(`INSERT INTO sessions
		(id, user_id, email, roles, csrf_token, ip, user_agent, created_at, last_seen_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.UserID, rec.Email, string(roles), rec.CSRFToken, rec.IP, rec.UserAgent,
		rec.CreatedAt.UTC(), rec.LastSeenAt.UTC(), rec.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, email, roles, csrf_token, ip, user_agent, created_at, last_seen_at, expires_at`

func scanSession(sc rowScanner, rec *SessionRecord) error {
	var roles string
	if err := sc.Scan(&rec.ID, &rec.UserID, &rec.Email, &roles, &rec.CSRFToken, &rec.IP,
		&rec.UserAgent, &rec.CreatedAt, &rec.LastSeenAt, &rec.ExpiresAt); err != nil {
		return err
	}
	if roles != "" {
		if err := json.Unmarshal([]byte(roles), &rec.Roles); err != nil {
			return fmt.Errorf("session %s roles: %w", rec.ID, err)
		}
	}
	return nil
}

// GetSession returns nil for unknown or expired ids.
func (s *SQLSessionStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	var rec SessionRecord
	if err := scanSession(row, &rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if rec.ExpiresAt.Before(utils.NowUTC()) {
		return nil, nil
	}
	return &rec, nil
}

func (s *SQLSessionStore) ListByUser(ctx context.Context, userID int64) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		rebind(`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY last_seen_at DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := scanSession(rows, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLSessionStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, rebind(`DELETE FROM sessions WHERE id = ?`), id)
	return err
}

func (s *SQLSessionStore) DeleteAllForUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	return err
}

func (s *SQLSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, rebind(`DELETE FROM sessions WHERE expires_at < ?`), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLSessionStore) UpdateActivity(ctx context.Context, id string, seenAt time.Time, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		rebind(`UPDATE sessions SET last_seen_at = ?, expires_at = ? WHERE id = ?`),
		seenAt.UTC(), seenAt.Add(ttl).UTC(), id)
	return err
}
