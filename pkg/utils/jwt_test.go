package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(userID string) Claims {
	return Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestValidateToken(t *testing.T) {
	claims, err := ValidateToken(testSecret, signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("u-1")))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestValidateToken_Rejects(t *testing.T) {
	expired := validClaims("u-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("u-1"))},
		{"expired", signToken(t, jwt.SigningMethodHS256, testSecret, expired)},
		{"no user", signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(""))},
		{"alg none", signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims("u-1"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(testSecret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
