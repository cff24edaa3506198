package rbac

import (
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

// RolePolicy is a role name plus its permission strings in
// "resource.action" form, e.g. "user.delete".
type RolePolicy struct {
	Name        string
	Permissions []string
}

// Policy answers "may any of these roles do act on obj". It is rebuilt
// whenever roles change; reads take the lock shared with Reload.
type Policy struct {
	mu  sync.RWMutex
	enf *casbin.Enforcer
}

func NewPolicy(roles []RolePolicy) (*Policy, error) {
	enf, err := buildEnforcer(roles)
	if err != nil {
		return nil, err
	}
	return &Policy{enf: enf}, nil
}

func buildEnforcer(roles []RolePolicy) (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	for _, role := range roles {
		sub := strings.ToLower(strings.TrimSpace(role.Name))
		if sub == "" {
			continue
		}
		for _, perm := range role.Permissions {
			obj, act, ok := splitPermission(perm)
			if !ok {
				continue
			}
			if _, err := enf.AddPolicy(sub, obj, act); err != nil {
				return nil, fmt.Errorf("rbac policy %s/%s: %w", sub, perm, err)
			}
		}
	}
	return enf, nil
}

func splitPermission(perm string) (obj, act string, ok bool) {
	obj, act, found := strings.Cut(strings.ToLower(strings.TrimSpace(perm)), ".")
	if !found || obj == "" || act == "" {
		return "", "", false
	}
	return obj, act, true
}

// Can reports whether any of the roles grants act on obj.
func (p *Policy) Can(roles []string, obj, act string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, role := range roles {
		ok, err := p.enf.Enforce(strings.ToLower(strings.TrimSpace(role)), obj, act)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// Reload swaps in a fresh enforcer built from the current role set.
func (p *Policy) Reload(roles []RolePolicy) error {
	enf, err := buildEnforcer(roles)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.enf = enf
	p.mu.Unlock()
	return nil
}
