package service

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/response"
)

// RequireOwner 只认身份完全一致，没有角色豁免
func RequireOwner(actingUserID, ownerID uint64) error {
	if strconv.FormatUint(actingUserID, 10) != strconv.FormatUint(ownerID, 10) {
		return response.Unauthorized("you are not the owner of this resource")
	}
	return nil
}

// RequireModerator username 必须在社区的版主列表里
func RequireModerator(c *model.Community, username string) error {
	if c != nil && username != "" {
		for _, m := range c.Moderators {
			if m.Username == username {
				return nil
			}
		}
	}
	return response.Unauthorized("you are not a moderator of this community")
}

// ValidateFlair flair 可选；给出时必须属于该社区
func ValidateFlair(flairID *string, flairs []model.Flair) error {
	if flairID == nil || *flairID == "" {
		return nil
	}
	for _, f := range flairs {
		if f.ID == *flairID {
			return nil
		}
	}
	return response.InvalidArgument("flair does not belong to this community")
}

// CheckPostSettings 社区要求 flair 或开启禁用词时拦截发帖，body 传纯文本
func CheckPostSettings(set model.CommunitySettings, title, body string, flairID *string) error {
	if set.RequirePostFlair && (flairID == nil || *flairID == "") {
		return response.InvalidArgument("this community requires a post flair")
	}
	if set.BanPostTitleWords {
		if w, ok := findBanned(title, set.PostTitleBannedWords); ok {
			return response.InvalidArgument("title contains a banned word: " + w)
		}
	}
	if set.BanPostBodyWords {
		if w, ok := findBanned(body, set.PostBodyBannedWords); ok {
			return response.InvalidArgument("text contains a banned word: " + w)
		}
	}
	return nil
}

// findBanned 忽略大小写按整词匹配，含空格的短语按子串匹配
func findBanned(text string, banned []string) (string, bool) {
	if len(banned) == 0 || text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}
	for _, b := range banned {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		if strings.ContainsFunc(b, unicode.IsSpace) {
			if strings.Contains(lower, b) {
				return b, true
			}
			continue
		}
		if _, ok := words[b]; ok {
			return b, true
		}
	}
	return "", false
}

// ModeratorChecker 不加载整个社区，直接查版主表
type ModeratorChecker interface {
	IsModerator(ctx context.Context, communityID uint64, username string) (bool, error)
}

func requireModeratorOf(ctx context.Context, checker ModeratorChecker, communityID uint64, username string) error {
	ok, err := checker.IsModerator(ctx, communityID, username)
	if err != nil {
		return response.Internal("check moderator", err)
	}
	if !ok {
		return response.Unauthorized("you are not a moderator of this community")
	}
	return nil
}
