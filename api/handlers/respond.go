package handlers

import (
	"encoding/json"
	"net/http"

	"afk-admin/core/auth"
	"afk-admin/core/store"
	"afk-admin/core/users"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if e, ok := users.AsError(err); ok {
		writeJSON(w, e.HTTPStatus(), map[string]any{"error": e})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error": users.NewError(users.CodeInternal, "internal server error"),
	})
}

func sessionFromCtx(r *http.Request) *store.SessionRecord {
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		if sr, ok := v.(*store.SessionRecord); ok {
			return sr
		}
	}
	return nil
}

// actorFromCtx resolves the acting admin. A zero Actor fails the
// service-side authorization check.
func actorFromCtx(r *http.Request) auth.Actor {
	sr := sessionFromCtx(r)
	if sr == nil {
		return auth.Actor{}
	}
	return auth.Actor{ID: sr.UserID, Email: sr.Email, Roles: sr.Roles}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return users.NewError(users.CodeValidationError, "invalid request body: %v", err)
	}
	return nil
}
