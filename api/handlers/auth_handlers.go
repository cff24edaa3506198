package handlers

import (
	"net"
	"net/http"
	"strings"
	"time"

	"afk-admin/config"
	"afk-admin/core/auth"
	"afk-admin/core/store"
	"afk-admin/core/users"
	"afk-admin/core/utils"
)

type AuthHandlers struct {
	users          store.UsersStore
	roles          store.RolesStore
	sessions       store.SessionStore
	audits         store.AuditStore
	sessionManager *auth.SessionManager
	cfg            *config.AppConfig
	logger         *utils.Logger
}

func NewAuthHandlers(usersStore store.UsersStore, roles store.RolesStore, sessions store.SessionStore,
	audits store.AuditStore, sm *auth.SessionManager, cfg *config.AppConfig, logger *utils.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:          usersStore,
		roles:          roles,
		sessions:       sessions,
		audits:         audits,
		sessionManager: sm,
		cfg:            cfg,
		logger:         logger,
	}
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var cred auth.Credentials
	if err := decodeBody(r, &cred); err != nil {
		writeError(w, err)
		return
	}
	cred.Email = utils.NormalizeEmail(cred.Email)
	if err := utils.ValidateEmail(cred.Email); err != nil {
		writeError(w, users.NewError(users.CodeValidationError, "%v", err))
		return
	}

	user, err := h.users.FindByEmail(r.Context(), cred.Email)
	if err != nil || user == nil || !user.IsActive {
		h.audits.Log(r.Context(), cred.Email, "auth.login_failed", "user missing or inactive")
		writeError(w, users.NewError(users.CodeUnauthorized, "invalid credentials"))
		return
	}
	if !auth.VerifyPassword(cred.Password, h.cfg.Pepper, auth.PasswordHash{Hash: user.PasswordHash, Salt: user.Salt}) {
		h.audits.Log(r.Context(), cred.Email, "auth.login_failed", "bad password")
		writeError(w, users.NewError(users.CodeUnauthorized, "invalid credentials"))
		return
	}

	roles := h.userRoles(r, user)
	sess, err := h.sessionManager.Create(r.Context(), user, roles, clientHost(r), r.UserAgent())
	if err != nil {
		h.logger.Errorf("create session for %s: %v", user.Email, err)
		writeError(w, users.NewError(users.CodeInternal, "could not create session"))
		return
	}

	now := utils.NowUTC()
	_ = h.users.TouchLogin(r.Context(), user.ID, now)
	h.audits.Log(r.Context(), user.Email, "auth.login", "login ok")

	secure := r.TLS != nil || h.cfg.TLSEnabled
	http.SetCookie(w, &http.Cookie{
		Name:     "afk_session",
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "afk_csrf",
		Value:    sess.CSRFToken,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"roles": roles,
		},
		"csrf_token": sess.CSRFToken,
		"expires_at": sess.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *AuthHandlers) userRoles(r *http.Request, user *store.User) []string {
	if user.RoleID == nil {
		return nil
	}
	role, err := h.roles.FindByID(r.Context(), *user.RoleID)
	if err != nil || role == nil {
		return nil
	}
	return []string{strings.ToLower(role.Name)}
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	sr := sessionFromCtx(r)
	if sr != nil {
		_ = h.sessions.DeleteSession(r.Context(), sr.ID)
		_ = h.users.TouchLogout(r.Context(), sr.UserID, utils.NowUTC())
		h.audits.Log(r.Context(), sr.Email, "auth.logout", "")
	}
	expire := &http.Cookie{Name: "afk_session", Value: "", Path: "/", MaxAge: -1, HttpOnly: true}
	http.SetCookie(w, expire)
	http.SetCookie(w, &http.Cookie{Name: "afk_csrf", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	sr := sessionFromCtx(r)
	if sr == nil {
		writeError(w, users.NewError(users.CodeUnauthorized, "authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         sr.UserID,
		"email":      sr.Email,
		"roles":      sr.Roles,
		"expires_at": sr.ExpiresAt.Format(time.RFC3339),
	})
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
