// internal/app/system/identity/identity.go
//
// Identity is established upstream (gateway or reverse proxy) and
// forwarded on trusted headers. Handlers never verify credentials
// themselves; they read the caller that the edge already vouched for.
package identity

import (
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// HeaderUserID carries the verified caller's user ObjectID in hex.
	HeaderUserID = "X-User-ID"
	// HeaderUserRole carries the verified caller's role.
	HeaderUserRole = "X-User-Role"
)

// ErrNoIdentity is returned when the request carries no usable identity.
var ErrNoIdentity = errors.New("request has no verified identity")

// UserID extracts the caller's user ID from the request headers.
func UserID(r *http.Request) (primitive.ObjectID, error) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return primitive.NilObjectID, ErrNoIdentity
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, ErrNoIdentity
	}
	return id, nil
}

// Role returns the forwarded role, or "" when absent.
func Role(r *http.Request) string {
	return r.Header.Get(HeaderUserRole)
}

// Require is middleware that rejects requests without a verified
// identity before they reach the handler.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := UserID(r); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing or invalid identity"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
