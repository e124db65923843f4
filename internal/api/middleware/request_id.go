// Package middleware provides HTTP middleware for the MacroPlan API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader carries the ID on the wire in both directions.
const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID ensures every request carries an ID. An inbound X-Request-Id
// is trusted and propagated; otherwise a fresh req_ ID is minted. The ID
// is echoed on the response and stored in the context for handlers and
// log lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}

		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	return "req_" + uuid.New().String()[:22]
}

// GetRequestID returns the request ID stored by RequestID, or "" when the
// context never passed through it.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
