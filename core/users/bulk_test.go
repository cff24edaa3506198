package users

import (
	"context"
	"database/sql"
	"testing"

	"afk-admin/config"
	"afk-admin/core/store"
)

func TestBulkBanRunsOneBatchedUpdate(t *testing.T) {
	usersStore := &mockUsersStore{}
	svc, audits := newTestService(t, usersStore, nil)

	result, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        Ban{},
		TargetIDs: []int64{10, 11, 12},
	})
	if err != nil {
		t.Fatalf("bulk ban: %v", err)
	}
	if usersStore.setActiveCalls != 1 {
		t.Fatalf("expected one batched update, got %d", usersStore.setActiveCalls)
	}
	if result.SuccessCount != 3 || result.FailedCount != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Partial {
		t.Fatal("full success must not be partial")
	}
	if len(audits.entries) != 1 || audits.entries[0] != "users.bulk.ban" {
		t.Fatalf("expected bulk audit entry, got %v", audits.entries)
	}
}

func TestBulkDedupesSelection(t *testing.T) {
	usersStore := &mockUsersStore{}
	svc, _ := newTestService(t, usersStore, nil)

	result, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        Unban{},
		TargetIDs: []int64{5, 5, 6, 0, -1, 6},
	})
	if err != nil {
		t.Fatalf("bulk unban: %v", err)
	}
	if len(usersStore.setActiveIDs) != 2 {
		t.Fatalf("expected 2 deduped ids, got %v", usersStore.setActiveIDs)
	}
	if result.SuccessCount != 2 {
		t.Fatalf("expected success 2, got %d", result.SuccessCount)
	}
}

func TestBulkBanSelfRejectsWholeRequest(t *testing.T) {
	usersStore := &mockUsersStore{}
	svc, _ := newTestService(t, usersStore, nil)

	_, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        Ban{},
		TargetIDs: []int64{10, adminActor().ID, 12},
	})
	e, ok := AsError(err)
	if !ok || e.Code != CodeCannotBanSelf {
		t.Fatalf("expected CANNOT_BAN_SELF, got %v", err)
	}
	if usersStore.setActiveCalls != 0 {
		t.Fatal("no mutation may run after a self-protection rejection")
	}
}

func TestBulkDeleteSelfRejectsWholeRequest(t *testing.T) {
	usersStore := &mockUsersStore{}
	svc, _ := newTestService(t, usersStore, nil)

	_, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        Delete{},
		TargetIDs: []int64{adminActor().ID},
	})
	e, ok := AsError(err)
	if !ok || e.Code != CodeCannotDeleteSelf {
		t.Fatalf("expected CANNOT_DELETE_SELF, got %v", err)
	}
	if usersStore.deleteEachCalls != 0 {
		t.Fatal("delete must not reach the store")
	}
}

func TestBulkUnbanSelfIsAllowed(t *testing.T) {
	usersStore := &mockUsersStore{}
	svc, _ := newTestService(t, usersStore, nil)

	result, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        Unban{},
		TargetIDs: []int64{adminActor().ID},
	})
	if err != nil {
		t.Fatalf("unban self: %v", err)
	}
	if result.SuccessCount != 1 {
		t.Fatalf("expected success 1, got %+v", result)
	}
}

func TestBulkAssignRoleUnknownRoleFailsBeforeMutation(t *testing.T) {
	usersStore := &mockUsersStore{}
	svc, _ := newTestService(t, usersStore, nil)

	_, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        AssignRole{RoleID: 999},
		TargetIDs: []int64{10, 11},
	})
	e, ok := AsError(err)
	if !ok || e.Code != CodeInvalidRole {
		t.Fatalf("expected INVALID_ROLE, got %v", err)
	}
	if usersStore.assignRoleCalls != 0 {
		t.Fatal("assign must not run with an unknown role")
	}
}

func TestBulkAssignRoleBatches(t *testing.T) {
	usersStore := &mockUsersStore{}
	svc, _ := newTestService(t, usersStore, nil)

	result, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        AssignRole{RoleID: 2},
		TargetIDs: []int64{10, 11},
	})
	if err != nil {
		t.Fatalf("assign role: %v", err)
	}
	if usersStore.assignRoleCalls != 1 || usersStore.assignRoleRole != 2 {
		t.Fatalf("expected one batched assign of role 2, got calls=%d role=%d",
			usersStore.assignRoleCalls, usersStore.assignRoleRole)
	}
	if result.SuccessCount != 2 {
		t.Fatalf("expected success 2, got %+v", result)
	}
}

func TestBulkDeletePartialFailure(t *testing.T) {
	usersStore := &mockUsersStore{
		deleteEachOutcomes: []store.DeleteOutcome{
			{ID: 10},
			{ID: 11, Err: sql.ErrNoRows},
			{ID: 12},
		},
	}
	svc, _ := newTestService(t, usersStore, nil)

	result, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        Delete{},
		TargetIDs: []int64{10, 11, 12},
	})
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if result.SuccessCount != 2 || result.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if !result.Partial {
		t.Fatal("mixed outcome must be partial")
	}
	if len(result.Failures) != 1 || result.Failures[0].UserID != 11 || result.Failures[0].Message != "user not found" {
		t.Fatalf("unexpected failures: %+v", result.Failures)
	}
}

func TestBulkSelectionLimit(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Directory.BulkMaxSelection = 2
	usersStore := &mockUsersStore{}
	svc, _ := newTestService(t, usersStore, cfg)

	_, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{
		Op:        Ban{},
		TargetIDs: []int64{10, 11, 12},
	})
	e, ok := AsError(err)
	if !ok || e.Code != CodeTooManySelected {
		t.Fatalf("expected TOO_MANY_USERS_SELECTED, got %v", err)
	}
}

func TestBulkEmptySelection(t *testing.T) {
	svc, _ := newTestService(t, &mockUsersStore{}, nil)
	_, err := svc.Bulk(context.Background(), adminActor(), BulkRequest{Op: Ban{}})
	e, ok := AsError(err)
	if !ok || e.Code != CodeValidationError {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestParseOperation(t *testing.T) {
	if _, err := ParseOperation("assign_role", 0); err == nil {
		t.Fatal("assign_role without role_id must fail")
	}
	if _, err := ParseOperation("promote", 0); err == nil {
		t.Fatal("unknown operation must fail")
	}
	op, err := ParseOperation("assign_role", 7)
	if err != nil {
		t.Fatalf("parse assign_role: %v", err)
	}
	ar, ok := op.(AssignRole)
	if !ok || ar.RoleID != 7 {
		t.Fatalf("unexpected operation %#v", op)
	}
}
