package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecretKey: "test-secret", JWTExpiry: time.Hour}
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(42, "alice", testAuthConfig())
	require.NoError(t, err)

	claims, err := ValidateToken(context.Background(), token, "test-secret", nil)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	token, err := GenerateToken(42, "alice", testAuthConfig())
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, "other-secret", nil)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWTExpiry = -time.Minute
	token, err := GenerateToken(42, "alice", cfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, "test-secret", nil)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokedTokenIsRejected(t *testing.T) {
	ctx := context.Background()
	blacklist := NewMemoryBlacklist()
	token, err := GenerateToken(42, "alice", testAuthConfig())
	require.NoError(t, err)

	claims, err := ValidateToken(ctx, token, "test-secret", blacklist)
	require.NoError(t, err)
	require.NoError(t, RevokeToken(ctx, claims, blacklist))

	_, err = ValidateToken(ctx, token, "test-secret", blacklist)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("s3cret", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestMemoryBlacklistForgetsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	b := NewMemoryBlacklist()
	b.now = func() time.Time { return now }

	require.NoError(t, b.Add(ctx, "live", now.Add(time.Minute)))
	require.NoError(t, b.Add(ctx, "dead", now.Add(-time.Minute)))

	revoked, err := b.IsBlacklisted(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = b.IsBlacklisted(ctx, "dead")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = b.IsBlacklisted(ctx, "live")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestHashPasswordRejectsOverlongPasswords(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
