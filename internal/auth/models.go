// Package auth provides bearer token validation for MacroPlan.
// Tokens are issued by the identity service; this API only validates
// them and reads the subject and role claims.
package auth

// Role is the caller's role as carried in the token.
type Role string

// Known roles.
const (
	// RoleClient is a regular end user of the app.
	RoleClient Role = "client"

	// RoleTrainer is a human trainer managing clients. Trainer-managed
	// users cannot self-generate plans, but trainers themselves keep
	// access when generation is globally disabled.
	RoleTrainer Role = "trainer"

	// RoleAdmin operates the service.
	RoleAdmin Role = "admin"
)

// ParseRole maps a token claim to a known role, defaulting to client
// for unknown or missing values.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleTrainer:
		return RoleTrainer
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleClient
	}
}

// Privileged reports whether the role bypasses the generation kill
// switch.
func (r Role) Privileged() bool {
	return r == RoleTrainer || r == RoleAdmin
}

// Subject is the authenticated caller.
type Subject struct {
	UserID string
	Role   Role
}
