package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"Reddit_Clone/internal/pkg"
	"Reddit_Clone/internal/repository/mysql"
	redisrepo "Reddit_Clone/internal/repository/redis"
	"Reddit_Clone/internal/response"
	dbtest "Reddit_Clone/internal/testutil"
)

func newUserService(t *testing.T) (*UserService, *miniredis.Miniredis) {
	t.Helper()
	db := dbtest.NewDB(t)
	mr := miniredis.RunT(t)
	rdb, err := redisrepo.NewClient(redisrepo.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	jwt := pkg.NewJWTManager(pkg.JWTConfig{AccessSecret: "a", RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	sessions := &redisrepo.SessionRepository{RDB: rdb, TTL: jwt.AccessTTL()}
	return NewUserService(&mysql.UserRepository{DB: db}, sessions, jwt, zap.NewNop()), mr
}

func TestUserService_Register(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, " alice ", "password1", " alice@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("password1")))

	_, err = svc.Register(ctx, "alice", "password1", "other@example.com")
	assertCode(t, err, response.ErrCodeConflict)
	_, err = svc.Register(ctx, "a!", "password1", "x@example.com")
	assertCode(t, err, response.ErrCodeInvalidArgument)
	_, err = svc.Register(ctx, "bobby", "short", "bob@example.com")
	assertCode(t, err, response.ErrCodeInvalidArgument)
	_, err = svc.Register(ctx, "bobby", "password1", "not-an-email")
	assertCode(t, err, response.ErrCodeInvalidArgument)
	_, err = svc.Register(ctx, "bobby", "password1", "Bob <bob@example.com>")
	assertCode(t, err, response.ErrCodeInvalidArgument)
	_, err = svc.Register(ctx, "bob by", "password1", "bob@example.com")
	assertCode(t, err, response.ErrCodeInvalidArgument)
	_, err = svc.Register(ctx, "this_name_is_way_too_long", "password1", "bob@example.com")
	assertCode(t, err, response.ErrCodeInvalidArgument)
}

func TestValidUsername(t *testing.T) {
	for name, ok := range map[string]bool{
		"bob":                   true,
		"bob_b-2":               true,
		"ab":                    false,
		"bob!":                  false,
		"böb":                   false,
		"":                      false,
		"a23456789012345678901": false,
	} {
		assert.Equal(t, ok, validUsername(name), name)
	}
}

func TestUserService_SessionLifecycle(t *testing.T) {
	svc, mr := newUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "carol", "password1", "carol@example.com")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "carol", "wrong-password")
	assertCode(t, err, response.ErrCodeUnauthorized)
	_, err = svc.Login(ctx, "nobody", "password1")
	assertCode(t, err, response.ErrCodeUnauthorized)

	first, err := svc.Login(ctx, "carol", "password1")
	require.NoError(t, err)
	claims, err := svc.Authenticate(ctx, first.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "carol", claims.Username)

	// 邮箱登录后旧 token 失效
	second, err := svc.Login(ctx, "carol@example.com", "password1")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, first.AccessToken)
	assertCode(t, err, response.ErrCodeUnauthorized)
	_, err = svc.Authenticate(ctx, second.AccessToken)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, refreshed.AccessToken)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, refreshed.AccessToken)
	assertCode(t, err, response.ErrCodeUnauthorized)

	require.NoError(t, svc.Logout(ctx, u.ID))
	require.NoError(t, svc.Logout(ctx, u.ID))
	_, err = svc.Authenticate(ctx, refreshed.AccessToken)
	assertCode(t, err, response.ErrCodeUnauthorized)

	_, err = svc.Authenticate(ctx, "garbage")
	assertCode(t, err, response.ErrCodeUnauthorized)

	third, err := svc.Login(ctx, "carol", "password1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = svc.Authenticate(ctx, third.AccessToken)
	assertCode(t, err, response.ErrCodeUnauthorized)
}

func TestUserService_ChangePassword(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "dave", "password1", "dave@example.com")
	require.NoError(t, err)
	pair, err := svc.Login(ctx, "dave", "password1")
	require.NoError(t, err)

	assertCode(t, svc.ChangePassword(ctx, u.ID, "nope-nope", "password2"), response.ErrCodeUnauthorized)
	assertCode(t, svc.ChangePassword(ctx, u.ID, "password1", "short"), response.ErrCodeInvalidArgument)
	require.NoError(t, svc.ChangePassword(ctx, u.ID, "password1", "password2"))

	_, err = svc.Authenticate(ctx, pair.AccessToken)
	assertCode(t, err, response.ErrCodeUnauthorized)
	_, err = svc.Login(ctx, "dave", "password1")
	assertCode(t, err, response.ErrCodeUnauthorized)
	_, err = svc.Login(ctx, "dave", "password2")
	require.NoError(t, err)

	me, err := svc.Me(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "dave", me.Username)
	_, err = svc.Me(ctx, 9999)
	assertCode(t, err, response.ErrCodeNotFound)
}

func TestUserService_UsernameAvailable(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "dave", "password1", "dave@example.com")
	require.NoError(t, err)

	ok, err := svc.UsernameAvailable(ctx, "dave")
	require.NoError(t, err)
	assert.False(t, ok)

	// 邮箱不算占用用户名
	ok, err = svc.UsernameAvailable(ctx, "erin")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.UsernameAvailable(ctx, "no way")
	assertCode(t, err, response.ErrCodeInvalidArgument)
}
