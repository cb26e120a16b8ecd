package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("super-secret", time.Hour)
	tok, expiresAt, err := svc.Issue("a-1", "asha@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "a-1", claims.ID)
	assert.Equal(t, "asha@example.com", claims.Email)
	assert.False(t, svc.Expired(claims))
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("secret", time.Hour)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := svc.Issue("a-1", "asha@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewTokenService("secret-a", time.Hour).Issue("a-1", "asha@example.com")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Tampered(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("secret", time.Hour)
	tok, _, err := svc.Issue("a-1", "asha@example.com")
	require.NoError(t, err)

	_, err = svc.Verify(tok[:len(tok)-2] + "xx")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := Claims{
		ID: "a-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenService("secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpiryAndID(t *testing.T) {
	t.Parallel()

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{ID: "a-1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewTokenService("secret", time.Hour).Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewTokenService("secret", time.Hour).Verify(noID)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
