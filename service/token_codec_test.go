package service

import (
	"go-auth-api/model"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := NewTokenCodec([]byte("super-secret"), "test-issuer", 15*time.Minute)

	tok, err := codec.Sign("user-123", model.RoleAdmin)
	require.NoError(t, err)

	claims, err := codec.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 2*time.Second)
}

func TestTokenCodec_Expired(t *testing.T) {
	codec := NewTokenCodec([]byte("secret"), "test-issuer", 15*time.Minute)
	issued := time.Now().Add(-time.Hour)
	codec.now = func() time.Time { return issued }

	tok, err := codec.Sign("u1", model.RoleUser)
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestTokenCodec_WrongSecret(t *testing.T) {
	signer := NewTokenCodec([]byte("right-secret"), "test-issuer", time.Hour)
	verifier := NewTokenCodec([]byte("wrong-secret"), "test-issuer", time.Hour)

	tok, err := signer.Sign("u2", model.RoleUser)
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestTokenCodec_WrongIssuer(t *testing.T) {
	signer := NewTokenCodec([]byte("secret"), "someone-else", time.Hour)
	verifier := NewTokenCodec([]byte("secret"), "test-issuer", time.Hour)

	tok, err := signer.Sign("u2", model.RoleUser)
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestTokenCodec_TamperedToken(t *testing.T) {
	codec := NewTokenCodec([]byte("secret"), "test-issuer", time.Hour)
	tok, err := codec.Sign("u3", model.RoleUser)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		b := []byte(tok)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		_, err := codec.Verify(string(b))
		assert.Error(t, err, "altering byte %d must invalidate the token", i)
	}
}

func TestTokenCodec_RejectsOtherAlgorithms(t *testing.T) {
	codec := NewTokenCodec([]byte("secret"), "test-issuer", time.Hour)

	claims := &model.AppClaims{
		UserID: "u4",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u4",
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestTokenCodec_Malformed(t *testing.T) {
	codec := NewTokenCodec([]byte("k"), "test-issuer", time.Hour)

	for _, tok := range []string{"", "not.a.jwt", strings.Repeat("x", 40)} {
		_, err := codec.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidAccessToken)
	}
}
