package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/repository/mysql"
	"Reddit_Clone/internal/response"
)

func newAccountService(e *testEnv) *AccountService {
	return NewAccountService(&mysql.PrefsRepository{DB: e.db}, &mysql.SavedPostRepository{DB: e.db}, e.things, zap.NewNop())
}

func ptr[T any](v T) *T { return &v }

func TestAccountService_Prefs(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newAccountService(e)
	alice := e.actor(t, "alice")

	p, err := svc.Prefs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "hot", p.SuggestedSort)
	assert.Equal(t, "everyone", p.AcceptPms)
	assert.True(t, p.AllowFollow)

	p, err = svc.UpdatePrefs(ctx, alice.ID, PrefsPatch{
		DisplayName:   ptr("Alice"),
		Gender:        ptr("female"),
		AllowFollow:   ptr(false),
		SuggestedSort: ptr("new"),
		SocialLinks:   ptr([]string{"https://example.com/alice"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)

	// 第二次 patch 只改给出的字段
	_, err = svc.UpdatePrefs(ctx, alice.ID, PrefsPatch{About: ptr("gopher")})
	require.NoError(t, err)
	p, err = svc.Prefs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, "gopher", p.About)
	assert.Equal(t, "new", p.SuggestedSort)
	assert.False(t, p.AllowFollow)
	assert.Equal(t, []string{"https://example.com/alice"}, []string(p.SocialLinks))

	_, err = svc.UpdatePrefs(ctx, alice.ID, PrefsPatch{Gender: ptr("robot")})
	assertCode(t, err, response.ErrCodeInvalidArgument)
	assert.Contains(t, err.Error(), "gender")
	_, err = svc.UpdatePrefs(ctx, alice.ID, PrefsPatch{AcceptPms: ptr("nobody")})
	assertCode(t, err, response.ErrCodeInvalidArgument)
	_, err = svc.UpdatePrefs(ctx, alice.ID, PrefsPatch{Whitelisted: ptr([]string{"bob", "bad name"})})
	assertCode(t, err, response.ErrCodeInvalidArgument)
}

func TestAccountService_SavedPosts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	svc := newAccountService(e)
	mod := e.actor(t, "mod")
	reader := e.actor(t, "reader")
	c := e.createCommunity(t, mod, "saves", model.CommunityPublic)
	first := e.createPost(t, mod, c.ID, "first")
	second := e.createPost(t, mod, c.ID, "second")
	third := e.createPost(t, mod, c.ID, "third")

	for _, p := range []*model.Thing{first, second, third} {
		require.NoError(t, svc.SavePost(ctx, reader.ID, p.ID))
	}
	require.NoError(t, svc.SavePost(ctx, reader.ID, first.ID))

	page, err := svc.SavedPosts(ctx, reader.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, third.ID, page.Items[0].ID)
	assert.Equal(t, second.ID, page.Items[1].ID)
	require.NotZero(t, page.NextCursor)

	page, err = svc.SavedPosts(ctx, reader.ID, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)
	assert.Zero(t, page.NextCursor)

	// 下架后从列表里消失
	require.NoError(t, e.moderation.Remove(ctx, mod.ID, second.ID))
	page, err = svc.SavedPosts(ctx, reader.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assertCode(t, svc.SavePost(ctx, mod.ID, second.ID), response.ErrCodeInvalidArgument)

	require.NoError(t, svc.UnsavePost(ctx, reader.ID, third.ID))
	require.NoError(t, svc.UnsavePost(ctx, reader.ID, third.ID))
	page, err = svc.SavedPosts(ctx, reader.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)

	comment, err := e.thing.CreateComment(ctx, reader.ID, CreateCommentInput{PostID: first.ID, Text: "nice"})
	require.NoError(t, err)
	assertCode(t, svc.SavePost(ctx, reader.ID, comment.ID), response.ErrCodeInvalidArgument)
	assertCode(t, svc.SavePost(ctx, reader.ID, 9999), response.ErrCodeNotFound)
}
