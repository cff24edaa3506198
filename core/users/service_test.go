package users

import (
	"context"
	"testing"
	"time"

	"afk-admin/config"
	"afk-admin/core/auth"
	"afk-admin/core/rbac"
	"afk-admin/core/store"
	"afk-admin/core/utils"
)

type mockUsersStore struct {
	users      map[int64]*store.User
	emailIndex map[string]int64

	created []store.User
	updated []store.User

	setActiveCalls  int
	setActiveIDs    []int64
	setActiveResult int64

	assignRoleCalls int
	assignRoleIDs   []int64
	assignRoleRole  int64
	assignResult    int64

	deleteEachCalls    int
	deleteEachIDs      []int64
	deleteEachOutcomes []store.DeleteOutcome

	listCalls  int
	listResult []store.UserWithRole
	countTotal int
}

func (m *mockUsersStore) Get(ctx context.Context, id int64) (*store.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (m *mockUsersStore) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	if id, ok := m.emailIndex[utils.NormalizeEmail(email)]; ok {
		return m.Get(ctx, id)
	}
	return nil, nil
}

func (m *mockUsersStore) ListFiltered(ctx context.Context, f store.UserFilter, limit, offset int) ([]store.UserWithRole, error) {
	m.listCalls++
	return m.listResult, nil
}

func (m *mockUsersStore) CountFiltered(ctx context.Context, f store.UserFilter) (int, error) {
	return m.countTotal, nil
}

func (m *mockUsersStore) EmailIndex(ctx context.Context) (map[string]int64, error) {
	if m.emailIndex == nil {
		return map[string]int64{}, nil
	}
	return m.emailIndex, nil
}

func (m *mockUsersStore) Create(ctx context.Context, u *store.User) (int64, error) {
	u.ID = int64(len(m.created) + 1000)
	m.created = append(m.created, *u)
	return u.ID, nil
}

func (m *mockUsersStore) Update(ctx context.Context, u *store.User) error {
	m.updated = append(m.updated, *u)
	return nil
}

func (m *mockUsersStore) Delete(ctx context.Context, id int64) error { return nil }

func (m *mockUsersStore) DeleteEach(ctx context.Context, ids []int64) ([]store.DeleteOutcome, error) {
	m.deleteEachCalls++
	m.deleteEachIDs = ids
	if m.deleteEachOutcomes != nil {
		return m.deleteEachOutcomes, nil
	}
	out := make([]store.DeleteOutcome, len(ids))
	for i, id := range ids {
		out[i] = store.DeleteOutcome{ID: id}
	}
	return out, nil
}

func (m *mockUsersStore) SetActiveBatch(ctx context.Context, ids []int64, active bool) (int64, error) {
	m.setActiveCalls++
	m.setActiveIDs = ids
	if m.setActiveResult > 0 {
		return m.setActiveResult, nil
	}
	return int64(len(ids)), nil
}

func (m *mockUsersStore) AssignRoleBatch(ctx context.Context, ids []int64, roleID int64) (int64, error) {
	m.assignRoleCalls++
	m.assignRoleIDs = ids
	m.assignRoleRole = roleID
	if m.assignResult > 0 {
		return m.assignResult, nil
	}
	return int64(len(ids)), nil
}

func (m *mockUsersStore) TouchLogin(ctx context.Context, id int64, at time.Time) error  { return nil }
func (m *mockUsersStore) TouchLogout(ctx context.Context, id int64, at time.Time) error { return nil }

type mockRolesStore struct {
	roles []store.Role
}

func defaultMockRoles() *mockRolesStore {
	return &mockRolesStore{roles: []store.Role{
		{ID: 1, Name: "admin"},
		{ID: 2, Name: "moderator"},
		{ID: 3, Name: "user"},
	}}
}

func (m *mockRolesStore) List(ctx context.Context) ([]store.Role, error) { return m.roles, nil }

func (m *mockRolesStore) FindByID(ctx context.Context, id int64) (*store.Role, error) {
	for _, r := range m.roles {
		if r.ID == id {
			copied := r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRolesStore) FindByName(ctx context.Context, name string) (*store.Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			copied := r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRolesStore) Create(ctx context.Context, r *store.Role) (int64, error) {
	r.ID = int64(len(m.roles) + 1)
	m.roles = append(m.roles, *r)
	return r.ID, nil
}

func (m *mockRolesStore) Update(ctx context.Context, r *store.Role) error { return nil }
func (m *mockRolesStore) Delete(ctx context.Context, id int64) error      { return nil }
func (m *mockRolesStore) EnsureBuiltIn(ctx context.Context, roles []store.Role) error {
	return nil
}

type mockAuditStore struct {
	entries []string
}

func (m *mockAuditStore) Log(ctx context.Context, actor, action, details string) error {
	m.entries = append(m.entries, action)
	return nil
}

func (m *mockAuditStore) Recent(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	return nil, nil
}

func adminPolicy(t *testing.T) *rbac.Policy {
	t.Helper()
	policy, err := rbac.NewPolicy([]rbac.RolePolicy{
		{Name: "admin", Permissions: []string{"user.read", "user.create", "user.update", "user.delete"}},
		{Name: "viewer", Permissions: []string{"user.read"}},
	})
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	return policy
}

func newTestService(t *testing.T, usersStore *mockUsersStore, cfg *config.AppConfig) (*Service, *mockAuditStore) {
	t.Helper()
	if usersStore.users == nil {
		usersStore.users = map[int64]*store.User{}
	}
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	audits := &mockAuditStore{}
	svc := NewService(usersStore, defaultMockRoles(), adminPolicy(t), audits, cfg, utils.NewLogger())
	return svc, audits
}

func adminActor() auth.Actor {
	return auth.Actor{ID: 1, Email: "admin@example.com", Roles: []string{"admin"}}
}

func viewerActor() auth.Actor {
	return auth.Actor{ID: 2, Email: "viewer@example.com", Roles: []string{"viewer"}}
}

func TestAuthorizeRejectsAnonymous(t *testing.T) {
	svc, _ := newTestService(t, &mockUsersStore{}, nil)
	_, err := svc.List(context.Background(), auth.Actor{}, ListRequest{})
	e, ok := AsError(err)
	if !ok || e.Code != CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestAuthorizeRejectsMissingPermission(t *testing.T) {
	svc, _ := newTestService(t, &mockUsersStore{}, nil)
	err := svc.Delete(context.Background(), viewerActor(), 42)
	e, ok := AsError(err)
	if !ok || e.Code != CodeInsufficientPermissions {
		t.Fatalf("expected INSUFFICIENT_PERMISSIONS, got %v", err)
	}
}
