package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"afk-admin/api/handlers"
)

func (s *Server) routes() http.Handler {
	authH := handlers.NewAuthHandlers(s.users, s.roles, s.sessions, s.audits, s.sessionManager, s.cfg, s.logger)
	usersH := handlers.NewUsersHandlers(s.directory, s.logger)
	rolesH := handlers.NewRolesHandlers(s.roles, s.policy, s.audits, s.refreshPolicy, s.logger)
	auditH := handlers.NewAuditHandlers(s.audits, s.logger)

	session := s.withSession
	perm := func(resource, action string, h http.HandlerFunc) http.HandlerFunc {
		return session(s.requirePermission(resource, action)(h))
	}

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.loggingMiddleware)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.jsonMiddleware)

		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", s.rateLimitMiddleware(authH.Login))
			ar.Post("/logout", session(authH.Logout))
			ar.Get("/me", session(authH.Me))
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Route("/users", func(ur chi.Router) {
				ur.Get("/", perm("user", "read", usersH.List))
				ur.Post("/", perm("user", "create", usersH.Create))
				ur.Get("/check-email", perm("user", "read", usersH.CheckEmail))
				ur.Post("/bulk", session(usersH.Bulk))
				ur.Post("/import", perm("user", "create", usersH.Import))
				ur.Get("/export", perm("user", "read", usersH.Export))
				ur.Get("/{id}", perm("user", "read", usersH.Get))
				ur.Put("/{id}", perm("user", "update", usersH.Update))
				ur.Delete("/{id}", perm("user", "delete", usersH.Delete))
			})

			admin.Get("/audit", perm("user", "read", auditH.List))

			admin.Route("/roles", func(rr chi.Router) {
				rr.Get("/", perm("role", "read", rolesH.List))
				rr.Post("/", perm("role", "manage", rolesH.Create))
				rr.Put("/{id}", perm("role", "manage", rolesH.Update))
				rr.Delete("/{id}", perm("role", "manage", rolesH.Delete))
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}
