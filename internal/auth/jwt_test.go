package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRES_IN", "1h")

	tenant := "tenant-1"
	tok, err := Sign("a@x.com", "user-1", "ROLE_USER", &tenant)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Signed)
	assert.NotEmpty(t, tok.JWTID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := Verify(tok.Signed)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Subject)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ROLE_USER", claims.Role)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, tok.JWTID, claims.JWTID)
}

func TestSignWithoutTenant(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	tok, err := Sign("a@x.com", "user-1", "ROLE_PLATFORM_ADMIN", nil)
	require.NoError(t, err)

	claims, err := Verify(tok.Signed)
	require.NoError(t, err)
	assert.Empty(t, claims.TenantID)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	tok, err := Sign("a@x.com", "user-1", "ROLE_USER", nil)
	require.NoError(t, err)

	_, err = Verify(tok.Signed + "x")
	require.Error(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "key-one")
	tok, err := Sign("a@x.com", "user-1", "ROLE_USER", nil)
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "key-two")
	_, err = Verify(tok.Signed)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRES_IN", "-1m")

	tok, err := Sign("a@x.com", "user-1", "ROLE_USER", nil)
	require.NoError(t, err)

	_, err = Verify(tok.Signed)
	require.Error(t, err)
}
