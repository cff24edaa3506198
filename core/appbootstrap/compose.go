package appbootstrap

import (
	"context"
	"database/sql"

	"afk-admin/api"
	"afk-admin/config"
	"afk-admin/core/auth"
	"afk-admin/core/rbac"
	"afk-admin/core/store"
	"afk-admin/core/users"
	"afk-admin/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	sessions   store.SessionStore
	purger     *auth.SessionPurger
}

func composeRuntime(ctx context.Context, cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	usersStore := store.NewUsersStore(db)
	rolesStore := store.NewRolesStore(db)
	sessions := store.NewSessionStore(db)
	audits := store.NewAuditStore(db)

	if err := rolesStore.EnsureBuiltIn(ctx, builtInRoles()); err != nil {
		return nil, err
	}
	policy, err := loadPolicy(ctx, rolesStore)
	if err != nil {
		return nil, err
	}
	refreshPolicy := func(ctx context.Context) error {
		roles, err := rolesStore.List(ctx)
		if err != nil {
			return err
		}
		return policy.Reload(rolePolicies(roles))
	}

	sessionManager := auth.NewSessionManager(sessions, cfg, logger)
	directory := users.NewService(usersStore, rolesStore, policy, audits, cfg, logger)
	purger := auth.NewSessionPurger(sessions, cfg, logger)

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Users:          usersStore,
			Roles:          rolesStore,
			Sessions:       sessions,
			Audits:         audits,
			Policy:         policy,
			SessionManager: sessionManager,
			Directory:      directory,
			RefreshPolicy:  refreshPolicy,
		},
		sessions: sessions,
		purger:   purger,
	}, nil
}

func loadPolicy(ctx context.Context, rolesStore store.RolesStore) (*rbac.Policy, error) {
	roles, err := rolesStore.List(ctx)
	if err != nil {
		return nil, err
	}
	return rbac.NewPolicy(rolePolicies(roles))
}

func rolePolicies(roles []store.Role) []rbac.RolePolicy {
	out := make([]rbac.RolePolicy, 0, len(roles))
	for _, r := range roles {
		out = append(out, rbac.RolePolicy{Name: r.Name, Permissions: r.Permissions})
	}
	return out
}

// builtInRoles are seeded on first start. Admin edits to their
// permissions survive restarts.
func builtInRoles() []store.Role {
	return []store.Role{
		{
			Name:        "admin",
			Description: "Full access to the user directory",
			Permissions: []string{"user.read", "user.create", "user.update", "user.delete", "role.read", "role.manage"},
		},
		{
			Name:        "moderator",
			Description: "Can review and update users",
			Permissions: []string{"user.read", "user.update", "role.read"},
		},
		{
			Name:        "user",
			Description: "Regular account, no admin access",
			Permissions: []string{},
		},
	}
}
