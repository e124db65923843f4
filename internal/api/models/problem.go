package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error response. All API errors are written in
// this shape with Content-Type application/problem+json.
type Problem struct {
	// Type and Title identify the problem class; Type is a stable URI,
	// Title its human-readable name.
	Type  string `json:"type"`
	Title string `json:"title"`

	// Status mirrors the HTTP status code the problem is sent with.
	Status int `json:"status"`

	// Detail and Instance describe this particular occurrence: what went
	// wrong, and on which resource path.
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// TraceID correlates the response with server logs and traces.
	TraceID string `json:"traceId"`

	// Errors carries structured field validation errors on 400s.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError pins a validation failure to one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs. These are contractual; clients switch on them.
const (
	ProblemTypeValidation       = "https://api.macroplan.app/problems/validation-error"
	ProblemTypeUnauthorized     = "https://api.macroplan.app/problems/unauthorized"
	ProblemTypeForbidden        = "https://api.macroplan.app/problems/forbidden"
	ProblemTypeNotFound         = "https://api.macroplan.app/problems/not-found"
	ProblemTypeConflict         = "https://api.macroplan.app/problems/conflict"
	ProblemTypeUnsupportedMedia = "https://api.macroplan.app/problems/unsupported-media-type"
	ProblemTypeTooManyRequests  = "https://api.macroplan.app/problems/too-many-requests"
	ProblemTypeInternal         = "https://api.macroplan.app/problems/internal-error"
	ProblemTypeUnavailable      = "https://api.macroplan.app/problems/service-unavailable"
)

// NewProblem builds a bare problem; the With* builders fill in the
// occurrence-specific parts.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

func newDetailed(problemType, title string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, title, status, traceID)
	p.Detail = detail
	return p
}

// WithDetail sets the occurrence detail message.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance sets the request path the problem occurred on.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors attaches per-field validation errors.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write encodes the Problem onto the ResponseWriter with its status and
// the correlation header.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest reports a validation failure, optionally with per-field
// errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := newDetailed(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID, detail)
	p.Errors = errors
	return p
}

// NewUnauthorized reports missing or unusable credentials.
func NewUnauthorized(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID, detail)
}

// NewForbidden reports valid credentials without the required rights.
func NewForbidden(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeForbidden, "Forbidden", http.StatusForbidden, traceID, detail)
}

// NewNotFound reports a missing resource.
func NewNotFound(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewConflict reports a state conflict, such as a second generation
// start while one is running.
func NewConflict(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeConflict, "Conflict", http.StatusConflict, traceID, detail)
}

// NewUnsupportedMediaType reports a request body in the wrong format.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType, traceID, detail)
}

// NewTooManyRequests reports an exhausted rate limit.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError reports an unexpected server-side failure.
func NewInternalError(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}

// NewServiceUnavailable reports a dependency outage the caller should
// retry later.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newDetailed(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID, detail)
}
