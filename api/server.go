package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"afk-admin/config"
	"afk-admin/core/auth"
	"afk-admin/core/rbac"
	"afk-admin/core/store"
	"afk-admin/core/users"
	"afk-admin/core/utils"
)

type Server struct {
	cfg             *config.AppConfig
	users           store.UsersStore
	roles           store.RolesStore
	sessions        store.SessionStore
	audits          store.AuditStore
	policy          *rbac.Policy
	sessionManager  *auth.SessionManager
	directory       *users.Service
	logger          *utils.Logger
	activityTracker *sessionActivity
	loginLimiter    *requestLimiter
	refreshPolicy   func(context.Context) error

	httpServer *http.Server
}

// ServerDeps is everything composeRuntime wires together before the
// HTTP layer starts.
type ServerDeps struct {
	Users          store.UsersStore
	Roles          store.RolesStore
	Sessions       store.SessionStore
	Audits         store.AuditStore
	Policy         *rbac.Policy
	SessionManager *auth.SessionManager
	Directory      *users.Service
	RefreshPolicy  func(context.Context) error
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{
		cfg:             cfg,
		users:           deps.Users,
		roles:           deps.Roles,
		sessions:        deps.Sessions,
		audits:          deps.Audits,
		policy:          deps.Policy,
		sessionManager:  deps.SessionManager,
		directory:       deps.Directory,
		logger:          logger,
		activityTracker: newSessionActivity(),
		loginLimiter:    newLimiter(loginAttemptCapacity, time.Minute),
		refreshPolicy:   deps.RefreshPolicy,
	}
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLSEnabled {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Printf("listening on %s", s.cfg.ListenAddr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
