package handler

import (
	"context"

	"github.com/macroplan/macroplan/internal/api/middleware"
	"github.com/macroplan/macroplan/internal/auth"
)

// GetUserID retrieves the authenticated user ID from the context.
// This is a convenience wrapper around middleware.GetUserID.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}

// GetSubject retrieves the authenticated subject from the context.
// This is a convenience wrapper around middleware.GetSubject.
func GetSubject(ctx context.Context) auth.Subject {
	return middleware.GetSubject(ctx)
}
