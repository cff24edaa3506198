package appbootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"afk-admin/api"
	"afk-admin/config"
	"afk-admin/core/auth"
	"afk-admin/core/store"
	"afk-admin/core/utils"
)

// Run wires the whole application together and blocks until SIGINT or
// SIGTERM.
func Run() error {
	logger := utils.NewLogger()
	cfg, err := config.Load(os.Getenv("AFK_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	comp, err := composeRuntime(ctx, cfg, db, logger)
	if err != nil {
		return fmt.Errorf("compose runtime: %w", err)
	}
	if err := ensureDefaultAdmin(ctx, cfg, comp.serverDeps, logger); err != nil {
		return fmt.Errorf("ensure default admin: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := comp.purger.Start(ctx); err != nil {
			return fmt.Errorf("start session purger: %w", err)
		}
		defer comp.purger.Stop()
	}

	server := api.NewServer(cfg, comp.serverDeps, logger)
	return server.ListenAndServe(ctx)
}

// ensureDefaultAdmin seeds the first admin account on an empty
// directory so the instance is reachable after a fresh install. The
// generated password is printed once to the log.
func ensureDefaultAdmin(ctx context.Context, cfg *config.AppConfig, deps api.ServerDeps, logger *utils.Logger) error {
	existing, err := deps.Users.FindByEmail(ctx, "admin@afk.local")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	adminRole, err := deps.Roles.FindByName(ctx, "admin")
	if err != nil {
		return err
	}
	password := utils.GenerateTempPassword()
	ph, err := auth.HashPassword(password, cfg.Pepper)
	if err != nil {
		return err
	}
	admin := &store.User{
		Email:        "admin@afk.local",
		FirstName:    "Default",
		LastName:     "Admin",
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
		IsActive:     true,
	}
	if adminRole != nil {
		admin.RoleID = &adminRole.ID
	}
	if _, err := deps.Users.Create(ctx, admin); err != nil {
		return err
	}
	logger.Printf("seeded default admin admin@afk.local with password %s, change it immediately", password)
	return nil
}
