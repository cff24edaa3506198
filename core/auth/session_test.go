package auth

import (
	"context"
	"testing"
	"time"

	"afk-admin/config"
	"afk-admin/core/store"
	"afk-admin/core/utils"
)

type memSessionStore struct {
	records map[string]*store.SessionRecord
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{records: map[string]*store.SessionRecord{}}
}

func (m *memSessionStore) SaveSession(ctx context.Context, rec *store.SessionRecord) error {
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *memSessionStore) GetSession(ctx context.Context, id string) (*store.SessionRecord, error) {
	rec, ok := m.records[id]
	if !ok || rec.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return rec, nil
}

func (m *memSessionStore) ListByUser(ctx context.Context, userID int64) ([]store.SessionRecord, error) {
	var out []store.SessionRecord
	for _, rec := range m.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memSessionStore) DeleteSession(ctx context.Context, id string) error {
	delete(m.records, id)
	return nil
}

func (m *memSessionStore) DeleteAllForUser(ctx context.Context, userID int64) error {
	for id, rec := range m.records {
		if rec.UserID == userID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, rec := range m.records {
		if rec.ExpiresAt.Before(now) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) UpdateActivity(ctx context.Context, id string, seenAt time.Time, ttl time.Duration) error {
	if rec, ok := m.records[id]; ok {
		rec.LastSeenAt = seenAt
		rec.ExpiresAt = seenAt.Add(ttl)
	}
	return nil
}

func newTestManager() (*SessionManager, *memSessionStore) {
	cfg := &config.AppConfig{SessionTTL: time.Hour}
	mem := newMemSessionStore()
	return NewSessionManager(mem, cfg, utils.NewLogger()), mem
}

func TestSessionCreate(t *testing.T) {
	mgr, mem := newTestManager()
	user := &store.User{ID: 7, Email: "alice@example.com"}

	sess, err := mgr.Create(context.Background(), user, []string{"admin"}, "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.ID == "" || sess.CSRFToken == "" {
		t.Fatalf("missing id or csrf token: %+v", sess)
	}
	if sess.ExpiresAt.Sub(sess.CreatedAt) != time.Hour {
		t.Fatalf("ttl not applied: %v", sess.ExpiresAt.Sub(sess.CreatedAt))
	}
	rec := mem.records[sess.ID]
	if rec == nil || rec.UserID != 7 || rec.CSRFToken != sess.CSRFToken {
		t.Fatalf("record not persisted: %+v", rec)
	}
}

func TestSessionRotateIssuesNewID(t *testing.T) {
	mgr, mem := newTestManager()
	user := &store.User{ID: 7, Email: "alice@example.com"}
	old, err := mgr.Create(context.Background(), user, []string{"admin"}, "127.0.0.1", "a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fresh, err := mgr.Rotate(context.Background(), old.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if fresh.ID == old.ID || fresh.CSRFToken == old.CSRFToken {
		t.Fatal("rotation must issue a new id and csrf token")
	}
	if mem.records[old.ID] != nil {
		t.Fatal("old session must be removed on rotation")
	}
	if fresh.UserID != 7 || len(fresh.Roles) != 1 {
		t.Fatalf("identity lost on rotation: %+v", fresh)
	}
}

func TestSessionRotateUnknownID(t *testing.T) {
	mgr, _ := newTestManager()
	if _, err := mgr.Rotate(context.Background(), "ghost"); err == nil {
		t.Fatal("expected an error for an unknown session")
	}
}

func TestActorFromNilSession(t *testing.T) {
	var s *Session
	if a := s.Actor(); a.ID != 0 || a.Email != "" {
		t.Fatalf("nil session must yield a zero actor, got %+v", a)
	}
}
