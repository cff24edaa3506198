package handlers

import (
	"net/http"
	"strconv"

	"afk-admin/core/store"
	"afk-admin/core/users"
	"afk-admin/core/utils"
)

const auditListMaxLimit = 1000

type AuditHandlers struct {
	audits store.AuditStore
	logger *utils.Logger
}

func NewAuditHandlers(audits store.AuditStore, logger *utils.Logger) *AuditHandlers {
	return &AuditHandlers{audits: audits, logger: logger}
}

// List returns the newest audit entries, most recent first.
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > auditListMaxLimit {
			writeError(w, users.NewError(users.CodeValidationError, "limit must be between 1 and %d", auditListMaxLimit))
			return
		}
		limit = n
	}
	entries, err := h.audits.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Errorf("read audit log: %v", err)
		writeError(w, users.NewError(users.CodeDatabaseError, "read audit log"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
