package rbac

import "testing"

func testPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := NewPolicy([]RolePolicy{
		{Name: "admin", Permissions: []string{"user.*", "role.manage"}},
		{Name: "moderator", Permissions: []string{"user.read", "user.update"}},
		{Name: "user", Permissions: nil},
	})
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	return p
}

func TestCan(t *testing.T) {
	p := testPolicy(t)
	tests := []struct {
		roles []string
		obj   string
		act   string
		want  bool
	}{
		{[]string{"admin"}, "user", "delete", true},
		{[]string{"admin"}, "role", "manage", true},
		{[]string{"moderator"}, "user", "read", true},
		{[]string{"moderator"}, "user", "delete", false},
		{[]string{"user"}, "user", "read", false},
		{[]string{"user", "moderator"}, "user", "update", true},
		{nil, "user", "read", false},
		{[]string{"ghost"}, "user", "read", false},
	}
	for _, tc := range tests {
		if got := p.Can(tc.roles, tc.obj, tc.act); got != tc.want {
			t.Errorf("Can(%v, %q, %q) = %v, want %v", tc.roles, tc.obj, tc.act, got, tc.want)
		}
	}
}

func TestCanNormalizesRoleNames(t *testing.T) {
	p := testPolicy(t)
	if !p.Can([]string{" Admin "}, "user", "create") {
		t.Fatal("role matching must be case and whitespace insensitive")
	}
}

func TestReload(t *testing.T) {
	p := testPolicy(t)
	if p.Can([]string{"auditor"}, "user", "read") {
		t.Fatal("auditor must not exist yet")
	}
	err := p.Reload([]RolePolicy{
		{Name: "auditor", Permissions: []string{"user.read"}},
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !p.Can([]string{"auditor"}, "user", "read") {
		t.Fatal("auditor grant missing after reload")
	}
	if p.Can([]string{"admin"}, "user", "delete") {
		t.Fatal("reload must drop grants not in the new role set")
	}
}

func TestNilPolicy(t *testing.T) {
	var p *Policy
	if p.Can([]string{"admin"}, "user", "read") {
		t.Fatal("nil policy must deny everything")
	}
}

func TestMalformedPermissionsAreIgnored(t *testing.T) {
	p, err := NewPolicy([]RolePolicy{
		{Name: "odd", Permissions: []string{"", "noaction", ".read", "user."}},
	})
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	if p.Can([]string{"odd"}, "user", "read") {
		t.Fatal("malformed permissions must not grant anything")
	}
}
