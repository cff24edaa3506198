package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"afk-admin/core/store"
	"afk-admin/core/users"
	"afk-admin/core/utils"
)

type UsersHandlers struct {
	directory *users.Service
	logger    *utils.Logger
}

func NewUsersHandlers(directory *users.Service, logger *utils.Logger) *UsersHandlers {
	return &UsersHandlers{directory: directory, logger: logger}
}

func (h *UsersHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := users.ListRequest{
		Filter:   userFilterFromQuery(q.Get),
		Page:     intQuery(q.Get("page"), 1),
		PageSize: intQuery(q.Get("page_size"), 20),
	}
	result, err := h.directory.List(r.Context(), actorFromCtx(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *UsersHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, users.NewError(users.CodeValidationError, "invalid user id"))
		return
	}
	view, err := h.directory.Get(r.Context(), actorFromCtx(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *UsersHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in users.NewUser
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.directory.Create(r.Context(), actorFromCtx(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *UsersHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, users.NewError(users.CodeValidationError, "invalid user id"))
		return
	}
	var in users.UpdateUser
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.directory.Update(r.Context(), actorFromCtx(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *UsersHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, users.NewError(users.CodeValidationError, "invalid user id"))
		return
	}
	if err := h.directory.Delete(r.Context(), actorFromCtx(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *UsersHandlers) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	var exclude int64
	if raw := r.URL.Query().Get("exclude_id"); raw != "" {
		exclude, _ = strconv.ParseInt(raw, 10, 64)
	}
	available, err := h.directory.EmailAvailable(r.Context(), actorFromCtx(r), email, exclude)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": available})
}

// userFilterFromQuery maps the shared listing/export query params onto
// a store filter.
func userFilterFromQuery(get func(string) string) store.UserFilter {
	f := store.UserFilter{
		Query:          strings.TrimSpace(get("search")),
		RoleName:       strings.TrimSpace(get("role")),
		Status:         strings.TrimSpace(get("status")),
		Locale:         strings.TrimSpace(get("locale")),
		ActivityStatus: strings.TrimSpace(get("activity_status")),
	}
	if raw := get("role_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.RoleID = id
		}
	}
	if raw := get("group_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.GroupID = &id
		}
	}
	if raw := get("has_avatar"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			f.HasAvatar = &v
		}
	}
	f.CreatedFrom = timeQuery(get("created_from"))
	f.CreatedTo = timeQuery(get("created_to"))
	f.ActivityFrom = timeQuery(get("activity_from"))
	f.ActivityTo = timeQuery(get("activity_to"))
	return f
}

func timeQuery(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := utils.ParseDate(raw)
	if err != nil {
		return nil
	}
	return &t
}

func intQuery(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
