package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/response"
)

type PrefsStore interface {
	Get(ctx context.Context, userID uint64) (*model.UserPrefs, error)
	Save(ctx context.Context, p *model.UserPrefs) error
}

type SavedPostStore interface {
	Save(ctx context.Context, userID, thingID uint64) (bool, error)
	Unsave(ctx context.Context, userID, thingID uint64) (bool, error)
	List(ctx context.Context, userID, cursor uint64, limit int) ([]model.SavedPost, uint64, error)
}

type savedThingFinder interface {
	FindByIDAndAssertType(ctx context.Context, id uint64, typ model.ThingType) (*model.Thing, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]model.Thing, error)
}

// PrefsPatch nil 字段不修改
type PrefsPatch struct {
	CountryCode *string   `json:"countryCode" validate:"omitempty,max=8"`
	Gender      *string   `json:"gender" validate:"omitempty,oneof=male female"`
	DisplayName *string   `json:"displayName" validate:"omitempty,max=64"`
	About       *string   `json:"about" validate:"omitempty,max=1000"`
	SocialLinks *[]string `json:"socialLinks" validate:"omitempty,max=10,dive,max=512"`
	NSFW        *bool     `json:"nsfw"`
	AllowFollow *bool     `json:"allowFollow"`

	ContentVisibility             *bool   `json:"contentVisibility"`
	ActiveInCommunitiesVisibility *bool   `json:"activeInCommunitiesVisibility"`
	ShowInSearch                  *bool   `json:"showInSearch"`
	BadCommentAutoCollapse        *string `json:"badCommentAutoCollapse" validate:"omitempty,oneof=off low medium high"`
	AdultContent                  *bool   `json:"adultContent"`
	AutoPlayMedia                 *bool   `json:"autoPlayMedia"`
	SuggestedSort                 *string `json:"suggestedSort" validate:"omitempty,oneof=hot new top rising"`

	InboxMessages  *bool `json:"inboxMessages"`
	Mentions       *bool `json:"mentions"`
	CommentsOnPost *bool `json:"commentsOnPost"`
	UpvotePosts    *bool `json:"upvotePosts"`
	UpvoteComments *bool `json:"upvoteComments"`
	RepliesComment *bool `json:"repliesComments"`
	NewFollowers   *bool `json:"newFollowers"`

	AcceptPms   *string   `json:"acceptPms" validate:"omitempty,oneof=everyone whitelisted"`
	Whitelisted *[]string `json:"whitelisted" validate:"omitempty,max=100,dive,username"`
}

func (p PrefsPatch) apply(to *model.UserPrefs) {
	setIf(&to.CountryCode, p.CountryCode)
	setIf(&to.Gender, p.Gender)
	setIf(&to.DisplayName, p.DisplayName)
	setIf(&to.About, p.About)
	if p.SocialLinks != nil {
		to.SocialLinks = *p.SocialLinks
	}
	setIf(&to.NSFW, p.NSFW)
	setIf(&to.AllowFollow, p.AllowFollow)
	setIf(&to.ContentVisibility, p.ContentVisibility)
	setIf(&to.ActiveInCommunitiesVisibility, p.ActiveInCommunitiesVisibility)
	setIf(&to.ShowInSearch, p.ShowInSearch)
	setIf(&to.BadCommentAutoCollapse, p.BadCommentAutoCollapse)
	setIf(&to.AdultContent, p.AdultContent)
	setIf(&to.AutoPlayMedia, p.AutoPlayMedia)
	setIf(&to.SuggestedSort, p.SuggestedSort)
	setIf(&to.InboxMessages, p.InboxMessages)
	setIf(&to.Mentions, p.Mentions)
	setIf(&to.CommentsOnPost, p.CommentsOnPost)
	setIf(&to.UpvotePosts, p.UpvotePosts)
	setIf(&to.UpvoteComments, p.UpvoteComments)
	setIf(&to.RepliesComment, p.RepliesComment)
	setIf(&to.NewFollowers, p.NewFollowers)
	setIf(&to.AcceptPms, p.AcceptPms)
	if p.Whitelisted != nil {
		to.Whitelisted = *p.Whitelisted
	}
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// AccountService 用户偏好和收藏
type AccountService struct {
	prefs  PrefsStore
	saved  SavedPostStore
	things savedThingFinder
	logger *zap.Logger
}

func NewAccountService(prefs PrefsStore, saved SavedPostStore, things savedThingFinder, logger *zap.Logger) *AccountService {
	return &AccountService{prefs: prefs, saved: saved, things: things, logger: logger.Named("account_service")}
}

func (s *AccountService) Prefs(ctx context.Context, userID uint64) (*model.UserPrefs, error) {
	p, err := s.prefs.Get(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultPrefs(userID), nil
	}
	if err != nil {
		return nil, response.Internal("get prefs", err)
	}
	return p, nil
}

func (s *AccountService) UpdatePrefs(ctx context.Context, userID uint64, patch PrefsPatch) (*model.UserPrefs, error) {
	if err := validate.Struct(patch); err != nil {
		return nil, invalidField(err)
	}
	p, err := s.Prefs(ctx, userID)
	if err != nil {
		return nil, err
	}
	patch.apply(p)
	if err := s.prefs.Save(ctx, p); err != nil {
		return nil, response.Internal("save prefs", err)
	}
	return p, nil
}

// SavePost 重复收藏视为成功；已删除的帖子不能收藏
func (s *AccountService) SavePost(ctx context.Context, userID, thingID uint64) error {
	post, err := s.things.FindByIDAndAssertType(ctx, thingID, model.ThingPost)
	if err != nil {
		return translate(err, "post")
	}
	if post.Status == model.StatusRemoved {
		return response.InvalidArgument("post has been removed")
	}
	changed, err := s.saved.Save(ctx, userID, thingID)
	if err != nil {
		return response.Internal("save post", err)
	}
	if changed {
		s.logger.Debug("post saved", zap.Uint64("user_id", userID), zap.Uint64("thing_id", thingID))
	}
	return nil
}

func (s *AccountService) UnsavePost(ctx context.Context, userID, thingID uint64) error {
	if _, err := s.saved.Unsave(ctx, userID, thingID); err != nil {
		return response.Internal("unsave post", err)
	}
	return nil
}

// SavedPosts 按收藏时间倒序；帖子被删除或下架后不再返回，但仍占翻页位置
func (s *AccountService) SavedPosts(ctx context.Context, userID, cursor uint64, limit int) (*Page, error) {
	rows, next, err := s.saved.List(ctx, userID, cursor, limit)
	if err != nil {
		return nil, response.Internal("list saved posts", err)
	}
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ThingID)
	}
	things, err := s.things.FindByIDs(ctx, ids)
	if err != nil {
		return nil, response.Internal("load saved posts", err)
	}
	byID := make(map[uint64]model.Thing, len(things))
	for _, t := range things {
		byID[t.ID] = t
	}
	items := make([]model.Thing, 0, len(rows))
	for _, r := range rows {
		t, ok := byID[r.ThingID]
		if !ok || t.Status == model.StatusRemoved {
			continue
		}
		items = append(items, t)
	}
	return &Page{Items: items, NextCursor: next}, nil
}

// invalidField 把第一条校验失败转换成 InvalidArgument
func invalidField(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return response.InvalidArgument("invalid " + fields[0].Field())
	}
	return response.InvalidArgument(err.Error())
}
