package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// AccessTokenExpiry is how long access tokens are valid. Kept short
	// to limit exposure if a token leaks.
	AccessTokenExpiry = 1 * time.Hour

	// DefaultIssuer is the issuer claim for tokens we mint.
	DefaultIssuer = "https://api.macroplan.app"

	// DefaultAudience is the audience claim for tokens we mint.
	DefaultAudience = "macroplan-api"
)

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
)

// JWTClaims is the payload of a MacroPlan access token.
type JWTClaims struct {
	jwt.RegisteredClaims

	// UserID duplicates the subject under the uid key the mobile
	// clients read.
	UserID string `json:"uid"`

	// Role is the caller's role; missing means client.
	Role string `json:"role,omitempty"`
}

// Caller returns the authenticated subject the claims describe.
func (c *JWTClaims) Caller() Subject {
	return Subject{
		UserID: c.UserID,
		Role:   ParseRole(c.Role),
	}
}

// JWTService signs and validates API access tokens with a shared HMAC
// key.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

// JWTConfig configures token signing and validation.
type JWTConfig struct {
	// SigningKey is the shared HMAC secret.
	SigningKey string

	// Issuer and Audience are matched against incoming token claims.
	Issuer   string
	Audience string
}

// NewJWTService builds a token service for the given key, issuer, and
// audience.
func NewJWTService(cfg JWTConfig) *JWTService {
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

// GenerateAccessToken creates a new access token for the given subject.
// The API itself only validates tokens; generation is used by tests and
// local tooling.
func (s *JWTService) GenerateAccessToken(subject Subject) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(AccessTokenExpiry)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject.UserID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        newTokenID(),
		},
		UserID: subject.UserID,
		Role:   string(subject.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return signed, expiresAt, nil
}

// ValidateAccessToken checks signature, method, issuer, audience, and
// expiry, and returns the parsed claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	keyfunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, keyfunc,
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidAccessToken
}

// newTokenID returns a random jti so individual tokens can be traced in
// logs.
func newTokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
