package handlers

import (
	"context"
	"net/http"
	"strings"

	"afk-admin/core/rbac"
	"afk-admin/core/store"
	"afk-admin/core/users"
	"afk-admin/core/utils"
)

type RolesHandlers struct {
	roles         store.RolesStore
	policy        *rbac.Policy
	audits        store.AuditStore
	refreshPolicy func(context.Context) error
	logger        *utils.Logger
}

func NewRolesHandlers(roles store.RolesStore, policy *rbac.Policy, audits store.AuditStore,
	refreshPolicy func(context.Context) error, logger *utils.Logger) *RolesHandlers {
	return &RolesHandlers{roles: roles, policy: policy, audits: audits, refreshPolicy: refreshPolicy, logger: logger}
}

type roleView struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	BuiltIn     bool     `json:"built_in"`
}

type rolePayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func toRoleView(r store.Role) roleView {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return roleView{ID: r.ID, Name: r.Name, Description: r.Description, Permissions: perms, BuiltIn: r.BuiltIn}
}

func (h *RolesHandlers) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, users.NewError(users.CodeDatabaseError, "list roles: %v", err))
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, toRoleView(role))
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": views})
}

func (h *RolesHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var payload rolePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		writeError(w, users.NewError(users.CodeValidationError, "role name is required"))
		return
	}
	existing, err := h.roles.FindByName(r.Context(), name)
	if err != nil {
		writeError(w, users.NewError(users.CodeDatabaseError, "check role: %v", err))
		return
	}
	if existing != nil {
		writeError(w, users.NewError(users.CodeValidationError, "role %q already exists", name))
		return
	}
	role := store.Role{Name: name, Description: payload.Description, Permissions: payload.Permissions}
	if _, err := h.roles.Create(r.Context(), &role); err != nil {
		writeError(w, users.NewError(users.CodeDatabaseError, "create role: %v", err))
		return
	}
	h.reload(r)
	h.auditRole(r, "roles.create", role.Name)
	writeJSON(w, http.StatusCreated, toRoleView(role))
}

func (h *RolesHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, users.NewError(users.CodeValidationError, "invalid role id"))
		return
	}
	role, err := h.roles.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, users.NewError(users.CodeDatabaseError, "get role: %v", err))
		return
	}
	if role == nil {
		writeError(w, users.NewError(users.CodeInvalidRole, "role %d does not exist", id))
		return
	}
	var payload rolePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if name := strings.TrimSpace(payload.Name); name != "" && !role.BuiltIn {
		role.Name = name
	}
	role.Description = payload.Description
	if payload.Permissions != nil {
		role.Permissions = payload.Permissions
	}
	if err := h.roles.Update(r.Context(), role); err != nil {
		writeError(w, users.NewError(users.CodeDatabaseError, "update role: %v", err))
		return
	}
	h.reload(r)
	h.auditRole(r, "roles.update", role.Name)
	writeJSON(w, http.StatusOK, toRoleView(*role))
}

func (h *RolesHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, users.NewError(users.CodeValidationError, "invalid role id"))
		return
	}
	if err := h.roles.Delete(r.Context(), id); err != nil {
		writeError(w, users.NewError(users.CodeValidationError, "delete role: %v", err))
		return
	}
	h.reload(r)
	h.auditRole(r, "roles.delete", "")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *RolesHandlers) reload(r *http.Request) {
	if h.refreshPolicy == nil {
		return
	}
	if err := h.refreshPolicy(r.Context()); err != nil {
		h.logger.Errorf("refresh policy: %v", err)
	}
}

func (h *RolesHandlers) auditRole(r *http.Request, action, details string) {
	if sr := sessionFromCtx(r); sr != nil {
		_ = h.audits.Log(r.Context(), sr.Email, action, details)
	}
}
