package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/response"
)

func TestRequireOwner(t *testing.T) {
	assert.NoError(t, RequireOwner(7, 7))
	assertCode(t, RequireOwner(7, 8), response.ErrCodeUnauthorized)
	assertCode(t, RequireOwner(0, 8), response.ErrCodeUnauthorized)
}

func TestRequireModerator(t *testing.T) {
	c := &model.Community{Moderators: []model.CommunityModerator{{Username: "alice"}, {Username: "bob", Position: 1}}}

	assert.NoError(t, RequireModerator(c, "alice"))
	assert.NoError(t, RequireModerator(c, "bob"))
	assertCode(t, RequireModerator(c, "carol"), response.ErrCodeUnauthorized)
	assertCode(t, RequireModerator(c, ""), response.ErrCodeUnauthorized)
	assertCode(t, RequireModerator(nil, "alice"), response.ErrCodeUnauthorized)
}

func TestValidateFlair(t *testing.T) {
	flairs := []model.Flair{{ID: "f-1", Text: "news"}, {ID: "f-2", Text: "meme"}}
	id := func(s string) *string { return &s }

	assert.NoError(t, ValidateFlair(nil, flairs))
	assert.NoError(t, ValidateFlair(id(""), flairs))
	assert.NoError(t, ValidateFlair(id("f-2"), flairs))
	assertCode(t, ValidateFlair(id("f-3"), flairs), response.ErrCodeInvalidArgument)
	assertCode(t, ValidateFlair(id("f-1"), nil), response.ErrCodeInvalidArgument)
}

type moderatorCheckerFunc func(ctx context.Context, communityID uint64, username string) (bool, error)

func (f moderatorCheckerFunc) IsModerator(ctx context.Context, communityID uint64, username string) (bool, error) {
	return f(ctx, communityID, username)
}

func TestRequireModeratorOf(t *testing.T) {
	ctx := context.Background()
	yes := moderatorCheckerFunc(func(context.Context, uint64, string) (bool, error) { return true, nil })
	no := moderatorCheckerFunc(func(context.Context, uint64, string) (bool, error) { return false, nil })
	broken := moderatorCheckerFunc(func(context.Context, uint64, string) (bool, error) { return false, errors.New("db down") })

	assert.NoError(t, requireModeratorOf(ctx, yes, 1, "alice"))
	assertCode(t, requireModeratorOf(ctx, no, 1, "alice"), response.ErrCodeUnauthorized)
	assertCode(t, requireModeratorOf(ctx, broken, 1, "alice"), response.ErrCodeInternal)
}

func TestCheckPostSettings(t *testing.T) {
	flair := "f1"
	set := model.CommunitySettings{
		RequirePostFlair:     true,
		BanPostTitleWords:    true,
		PostTitleBannedWords: []string{"spoiler", "free money"},
		BanPostBodyWords:     true,
		PostBodyBannedWords:  []string{"crypto"},
	}

	assertCode(t, CheckPostSettings(set, "hello", "", nil), response.ErrCodeInvalidArgument)
	empty := ""
	assertCode(t, CheckPostSettings(set, "hello", "", &empty), response.ErrCodeInvalidArgument)
	assert.NoError(t, CheckPostSettings(set, "hello", "plain body", &flair))

	assertCode(t, CheckPostSettings(set, "Big SPOILER inside", "", &flair), response.ErrCodeInvalidArgument)
	assertCode(t, CheckPostSettings(set, "get free money now", "", &flair), response.ErrCodeInvalidArgument)
	// 整词匹配，不误伤包含该词的长词
	assert.NoError(t, CheckPostSettings(set, "spoilers ahead", "", &flair))
	assertCode(t, CheckPostSettings(set, "ok", "buy Crypto, today", &flair), response.ErrCodeInvalidArgument)

	set.BanPostTitleWords = false
	set.BanPostBodyWords = false
	assert.NoError(t, CheckPostSettings(set, "spoiler", "crypto", &flair))
}
