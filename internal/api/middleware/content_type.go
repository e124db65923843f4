package middleware

import (
	"net/http"
	"strings"

	"github.com/macroplan/macroplan/internal/api/models"
)

const jsonContentType = "application/json"

// ContentTypeJSON defaults responses to application/json. A handler that
// sets its own Content-Type before the first write keeps it.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", jsonContentType)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects bodied requests that declare a non-JSON payload with
// a 415 problem. Requests without a Content-Type header pass through and
// fail in the handler's decoder instead, if the body really is not JSON.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, jsonContentType) {
				problem := models.NewUnsupportedMediaType(GetRequestID(r.Context()), "Content-Type must be application/json")
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
