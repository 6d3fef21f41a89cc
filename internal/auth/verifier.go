package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// VerifiedIdentity is the result of a successful token check.
type VerifiedIdentity struct {
	EmployeeID string
	ExpiresAt  time.Time
}

// TokenVerifier resolves a bearer credential to an employee identity.
// Token issuance lives in the HTTP application; this core only verifies.
type TokenVerifier interface {
	Verify(token string) (*VerifiedIdentity, error)
}

// Claims carried inside the chat bearer token.
type Claims struct {
	EmployeeID string `json:"employee_id"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	secret []byte
}

func NewJwtVerifier(secret string) TokenVerifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(token string) (*VerifiedIdentity, error) {
	// Clients copy the credential straight out of the HTTP session,
	// so a "Bearer " prefix may still be attached.
	token = strings.TrimPrefix(token, "Bearer ")

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.EmployeeID == "" {
		return nil, ErrTokenInvalid
	}

	out := &VerifiedIdentity{EmployeeID: claims.EmployeeID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
