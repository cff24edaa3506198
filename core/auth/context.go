package auth

type contextKey string

// SessionContextKey carries the *store.SessionRecord of the
// authenticated request.
const SessionContextKey contextKey = "session"

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
