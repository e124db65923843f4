package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/macroplan/macroplan/internal/api/models"
	"github.com/macroplan/macroplan/internal/auth"
)

// subjectKey is the context key for the authenticated subject.
type subjectKey struct{}

// Auth validates the JWT bearer token and puts the authenticated subject
// into the request context for the handlers downstream.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, failure := bearerToken(r)
			if failure != "" {
				writeUnauthorized(w, r, failure)
				return
			}

			claims, err := jwtService.ValidateAccessToken(tokenString)
			switch {
			case errors.Is(err, auth.ErrAccessTokenExpired):
				writeUnauthorized(w, r, "access token has expired")
				return
			case errors.Is(err, auth.ErrInvalidAccessToken):
				writeUnauthorized(w, r, "invalid access token")
				return
			case err != nil:
				writeUnauthorized(w, r, "authentication failed")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Caller())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken pulls the token out of the Authorization header. The second
// return is the problem detail when extraction fails; the Bearer prefix is
// matched case-insensitively.
func bearerToken(r *http.Request) (token, failure string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "invalid authorization header format"
	}

	if token = header[len(prefix):]; token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// RequireRole allows only callers whose role is in the given set.
// Must run after Auth.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := make(map[auth.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			if subject.UserID == "" {
				writeUnauthorized(w, r, "authentication required")
				return
			}
			if _, ok := allowed[subject.Role]; !ok {
				writeForbidden(w, r, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorized answers 401 directly; going through the response
// package would import-cycle back into middleware.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func writeForbidden(w http.ResponseWriter, r *http.Request, detail string) {
	problem := models.NewForbidden(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetSubject retrieves the authenticated subject from the context.
// A zero subject means the request was not authenticated.
func GetSubject(ctx context.Context) auth.Subject {
	if s, ok := ctx.Value(subjectKey{}).(auth.Subject); ok {
		return s
	}
	return auth.Subject{}
}

// GetUserID is shorthand for GetSubject(ctx).UserID.
func GetUserID(ctx context.Context) string {
	return GetSubject(ctx).UserID
}
