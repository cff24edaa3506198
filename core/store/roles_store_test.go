package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
)

func TestRolesCRUD(t *testing.T) {
	db := openTestDB(t)
	roles := NewRolesStore(db)
	ctx := context.Background()

	id, err := roles.Create(ctx, &Role{
		Name:        "support",
		Description: "first line support",
		Permissions: []string{"user.read", "user.update"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := roles.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got == nil || got.Name != "support" {
		t.Fatalf("unexpected role %+v", got)
	}
	if !reflect.DeepEqual(got.Permissions, []string{"user.read", "user.update"}) {
		t.Fatalf("permissions round-trip failed: %v", got.Permissions)
	}

	got.Permissions = []string{"user.read"}
	got.Description = "read only support"
	if err := roles.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	byName, err := roles.FindByName(ctx, "Support")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if byName == nil || len(byName.Permissions) != 1 {
		t.Fatalf("update not applied: %+v", byName)
	}

	all, err := roles.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("list returned %d roles", len(all))
	}

	if err := roles.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gone, _ := roles.FindByID(ctx, id); gone != nil {
		t.Fatal("role still present after delete")
	}
	if err := roles.Delete(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for a missing role, got %v", err)
	}
}

func TestRolesBuiltInProtection(t *testing.T) {
	db := openTestDB(t)
	roles := NewRolesStore(db)
	ctx := context.Background()

	seed := []Role{
		{Name: "admin", Permissions: []string{"user.read", "user.create"}},
		{Name: "user", Permissions: []string{}},
	}
	if err := roles.EnsureBuiltIn(ctx, seed); err != nil {
		t.Fatalf("ensure built-in: %v", err)
	}

	admin, err := roles.FindByName(ctx, "admin")
	if err != nil || admin == nil {
		t.Fatalf("admin not seeded: %v", err)
	}
	if !admin.BuiltIn {
		t.Fatal("seeded role must be marked built-in")
	}
	if err := roles.Delete(ctx, admin.ID); err == nil {
		t.Fatal("built-in role must not be deletable")
	}

	// reseeding keeps permissions edited by an admin
	admin.Permissions = []string{"user.read"}
	if err := roles.Update(ctx, admin); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := roles.EnsureBuiltIn(ctx, seed); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	again, _ := roles.FindByName(ctx, "admin")
	if !reflect.DeepEqual(again.Permissions, []string{"user.read"}) {
		t.Fatalf("reseed overwrote permissions: %v", again.Permissions)
	}
}
