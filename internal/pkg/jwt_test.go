package pkg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT(accessTTL time.Duration) *JWTManager {
	return NewJWTManager(JWTConfig{
		AccessSecret:  "a-secret",
		RefreshSecret: "r-secret",
		AccessTTL:     accessTTL,
		RefreshTTL:    time.Hour,
	})
}

func TestJWTManager_GenerateAndParse(t *testing.T) {
	m := newTestJWT(time.Minute)

	pair, err := m.GeneratePair(42, "alice")
	require.NoError(t, err)

	claims, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTManager_RefreshTokenIsNotAccess(t *testing.T) {
	m := newTestJWT(time.Minute)
	pair, err := m.GeneratePair(1, "bob")
	require.NoError(t, err)

	// refresh 用不同密钥签名，不能当 access 用
	_, err = m.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)

	newPair, claims, err := m.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Username)
	assert.NotEmpty(t, newPair.AccessToken)
}

func TestJWTManager_Expired(t *testing.T) {
	m := newTestJWT(-time.Minute)
	m.accessTTL = -time.Minute

	pair, err := m.GeneratePair(1, "carol")
	require.NoError(t, err)

	_, err = m.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
