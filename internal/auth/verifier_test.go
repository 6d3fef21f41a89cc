package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyValidToken(t *testing.T) {
	v := NewJwtVerifier(testSecret)
	exp := time.Now().Add(time.Hour)
	token := signToken(t, testSecret, Claims{
		EmployeeID: "emp42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "emp42", id.EmployeeID)
	assert.WithinDuration(t, exp, id.ExpiresAt, time.Second)
}

func TestVerifyStripsBearerPrefix(t *testing.T) {
	v := NewJwtVerifier(testSecret)
	token := signToken(t, testSecret, Claims{EmployeeID: "emp42"})

	id, err := v.Verify("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "emp42", id.EmployeeID)
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewJwtVerifier(testSecret)
	token := signToken(t, "some-other-secret", Claims{EmployeeID: "emp42"})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewJwtVerifier(testSecret)
	token := signToken(t, testSecret, Claims{
		EmployeeID: "emp42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyMissingEmployeeID(t *testing.T) {
	v := NewJwtVerifier(testSecret)
	token := signToken(t, testSecret, Claims{})

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	v := NewJwtVerifier(testSecret)

	_, err := v.Verify("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
