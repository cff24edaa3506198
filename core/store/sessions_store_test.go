package store

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func saveSession(t *testing.T, sessions *SQLSessionStore, id string, userID int64, expiresAt time.Time) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	err := sessions.SaveSession(context.Background(), &SessionRecord{
		ID:         id,
		UserID:     userID,
		Email:      "user@example.com",
		Roles:      []string{"admin"},
		CSRFToken:  "csrf-" + id,
		IP:         "127.0.0.1",
		UserAgent:  "test",
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		t.Fatalf("save session %s: %v", id, err)
	}
}

func TestSessionsLifecycle(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionStore(db)
	ctx := context.Background()
	future := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	saveSession(t, sessions, "s1", 1, future)

	got, err := sessions.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.UserID != 1 || got.CSRFToken != "csrf-s1" {
		t.Fatalf("unexpected session %+v", got)
	}
	if !reflect.DeepEqual(got.Roles, []string{"admin"}) {
		t.Fatalf("roles round-trip failed: %v", got.Roles)
	}

	if missing, err := sessions.GetSession(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("unknown id must yield nil, got %+v, %v", missing, err)
	}

	if err := sessions.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gone, _ := sessions.GetSession(ctx, "s1"); gone != nil {
		t.Fatal("session still readable after delete")
	}
}

func TestSessionsExpiry(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	saveSession(t, sessions, "old", 1, now.Add(-time.Minute))
	saveSession(t, sessions, "live", 1, now.Add(time.Hour))

	if rec, err := sessions.GetSession(ctx, "old"); err != nil || rec != nil {
		t.Fatalf("expired session must read as nil, got %+v, %v", rec, err)
	}

	n, err := sessions.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted %d sessions, want 1", n)
	}
	if rec, _ := sessions.GetSession(ctx, "live"); rec == nil {
		t.Fatal("live session must survive the purge")
	}
}

func TestSessionsUpdateActivity(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	saveSession(t, sessions, "s1", 1, now.Add(time.Minute))

	seen := now.Add(30 * time.Second)
	if err := sessions.UpdateActivity(ctx, "s1", seen, time.Hour); err != nil {
		t.Fatalf("update activity: %v", err)
	}
	rec, err := sessions.GetSession(ctx, "s1")
	if err != nil || rec == nil {
		t.Fatalf("get after update: %+v, %v", rec, err)
	}
	if !rec.LastSeenAt.Equal(seen) {
		t.Fatalf("last seen = %v, want %v", rec.LastSeenAt, seen)
	}
	if !rec.ExpiresAt.Equal(seen.Add(time.Hour)) {
		t.Fatalf("expiry not extended: %v", rec.ExpiresAt)
	}
}

func TestSessionsDeleteAllForUser(t *testing.T) {
	db := openTestDB(t)
	sessions := NewSessionStore(db)
	ctx := context.Background()
	future := time.Now().UTC().Add(time.Hour)

	saveSession(t, sessions, "a1", 1, future)
	saveSession(t, sessions, "a2", 1, future)
	saveSession(t, sessions, "b1", 2, future)

	if err := sessions.DeleteAllForUser(ctx, 1); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if rows, _ := sessions.ListByUser(ctx, 1); len(rows) != 0 {
		t.Fatalf("user 1 still has %d sessions", len(rows))
	}
	if rows, _ := sessions.ListByUser(ctx, 2); len(rows) != 1 {
		t.Fatalf("user 2 lost sessions: %d", len(rows))
	}
}
