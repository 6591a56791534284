package service

import (
	"context"

	"go.uber.org/zap"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/pkg"
	"Reddit_Clone/internal/response"
)

const maxTitleLen = 300

type ThingStore interface {
	Create(ctx context.Context, t *model.Thing) error
	FindByID(ctx context.Context, id uint64) (*model.Thing, error)
	FindByIDAndAssertType(ctx context.Context, id uint64, typ model.ThingType) (*model.Thing, error)
	UpdateFields(ctx context.Context, id uint64, patch model.ThingPatch) (*model.Thing, error)
	SoftDelete(ctx context.Context, id uint64) error
	ListPostsByCommunity(ctx context.Context, communityID, cursor uint64, limit int) ([]model.Thing, uint64, error)
	ListComments(ctx context.Context, postID, cursor uint64, limit int) ([]model.Thing, uint64, error)
}

type CommunityReader interface {
	FindByID(ctx context.Context, id uint64) (*model.Community, error)
	Flairs(ctx context.Context, communityID uint64) ([]model.Flair, error)
}

type MembershipChecker interface {
	IsMember(ctx context.Context, communityID, userID uint64) (bool, error)
	IsListed(ctx context.Context, communityID uint64, kind model.UserListKind, username string) (bool, error)
}

type UsernameResolver interface {
	UsernameByID(ctx context.Context, id uint64) (string, error)
}

type ThingService struct {
	things      ThingStore
	communities CommunityReader
	members     MembershipChecker
	users       UsernameResolver
	logger      *zap.Logger
}

func NewThingService(things ThingStore, communities CommunityReader, members MembershipChecker, users UsernameResolver, logger *zap.Logger) *ThingService {
	return &ThingService{
		things:      things,
		communities: communities,
		members:     members,
		users:       users,
		logger:      logger.Named("thing_service"),
	}
}

type CreatePostInput struct {
	CommunityID uint64
	Title       string
	Text        string
	FlairID     *string
}

type CreateCommentInput struct {
	PostID   uint64
	ParentID *uint64
	Text     string
}

// Page 游标分页结果，NextCursor=0 表示没有下一页
type Page struct {
	Items      []model.Thing `json:"items"`
	NextCursor uint64        `json:"nextCursor"`
}

func (s *ThingService) CreatePost(ctx context.Context, userID uint64, in CreatePostInput) (*model.Thing, error) {
	title := pkg.SanitizePlain(in.Title)
	if title == "" {
		return nil, response.InvalidArgument("title is required")
	}
	if len(title) > maxTitleLen {
		return nil, response.InvalidArgument("title is too long")
	}
	community, err := s.communities.FindByID(ctx, in.CommunityID)
	if err != nil {
		return nil, translate(err, "community")
	}
	if err := s.canContribute(ctx, community, userID); err != nil {
		return nil, err
	}
	if err := ValidateFlair(in.FlairID, community.Flairs); err != nil {
		return nil, err
	}
	if err := CheckPostSettings(community.CommunitySettings, title, pkg.SanitizePlain(in.Text), in.FlairID); err != nil {
		return nil, err
	}

	post := &model.Thing{
		Type:        model.ThingPost,
		OwnerID:     userID,
		CommunityID: community.ID,
		Title:       title,
		Text:        pkg.SanitizeRich(in.Text),
	}
	if in.FlairID != nil && *in.FlairID != "" {
		post.FlairID = in.FlairID
	}
	if err := s.things.Create(ctx, post); err != nil {
		return nil, translate(err, "post")
	}
	s.logger.Info("post created", zap.Uint64("thing_id", post.ID), zap.Uint64("community_id", community.ID))
	return post, nil
}

// CreateComment parent 可选，必须是同一帖子下的评论
func (s *ThingService) CreateComment(ctx context.Context, userID uint64, in CreateCommentInput) (*model.Thing, error) {
	text := pkg.SanitizeRich(in.Text)
	if text == "" {
		return nil, response.InvalidArgument("text is required")
	}
	post, err := s.things.FindByIDAndAssertType(ctx, in.PostID, model.ThingPost)
	if err != nil {
		return nil, translate(err, "post")
	}
	if post.Status == model.StatusRemoved {
		return nil, response.InvalidArgument("post has been removed")
	}
	if in.ParentID != nil {
		parent, err := s.things.FindByIDAndAssertType(ctx, *in.ParentID, model.ThingComment)
		if err != nil {
			return nil, translate(err, "parent comment")
		}
		if parent.PostID == nil || *parent.PostID != post.ID {
			return nil, response.InvalidArgument("parent comment belongs to another post")
		}
	}
	community, err := s.communities.FindByID(ctx, post.CommunityID)
	if err != nil {
		return nil, translate(err, "community")
	}
	if err := s.canContribute(ctx, community, userID); err != nil {
		return nil, err
	}

	postID := post.ID
	comment := &model.Thing{
		Type:        model.ThingComment,
		OwnerID:     userID,
		CommunityID: post.CommunityID,
		PostID:      &postID,
		ParentID:    in.ParentID,
		Text:        text,
	}
	if err := s.things.Create(ctx, comment); err != nil {
		return nil, translate(err, "comment")
	}
	return comment, nil
}

// canContribute 被封禁的用户不能发帖评论，非公开社区只有成员可以
func (s *ThingService) canContribute(ctx context.Context, c *model.Community, userID uint64) error {
	username, err := s.users.UsernameByID(ctx, userID)
	if err != nil {
		return translate(err, "user")
	}
	banned, err := s.members.IsListed(ctx, c.ID, model.ListBanned, username)
	if err != nil {
		return response.Internal("check ban list", err)
	}
	if banned {
		return response.Unauthorized("you are banned from this community")
	}
	if c.Type == model.CommunityPublic {
		return nil
	}
	joined, err := s.members.IsMember(ctx, c.ID, userID)
	if err != nil {
		return response.Internal("check membership", err)
	}
	if !joined {
		return response.Unauthorized("only members can contribute to this community")
	}
	return nil
}

// Get typ 为空时不校验类型
func (s *ThingService) Get(ctx context.Context, id uint64, typ model.ThingType) (*model.Thing, error) {
	var (
		t   *model.Thing
		err error
	)
	if typ == "" {
		t, err = s.things.FindByID(ctx, id)
	} else {
		if !typ.Valid() {
			return nil, response.InvalidArgument("unknown thing type")
		}
		t, err = s.things.FindByIDAndAssertType(ctx, id, typ)
	}
	if err != nil {
		return nil, translate(err, "thing")
	}
	return t, nil
}

// Update 作者编辑，flair 按所属社区校验
func (s *ThingService) Update(ctx context.Context, userID, id uint64, patch model.ThingPatch) (*model.Thing, error) {
	if patch.Empty() {
		return nil, response.InvalidArgument("nothing to update")
	}
	t, err := s.things.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "thing")
	}
	if err := RequireOwner(userID, t.OwnerID); err != nil {
		return nil, err
	}
	if t.Status == model.StatusRemoved {
		return nil, response.InvalidArgument("thing has been removed")
	}

	if patch.Title != nil {
		if _, ok := t.AsPost(); !ok {
			return nil, response.InvalidArgument("comments have no title")
		}
		title := pkg.SanitizePlain(*patch.Title)
		if title == "" || len(title) > maxTitleLen {
			return nil, response.InvalidArgument("invalid title")
		}
		patch.Title = &title
	}
	if patch.Text != nil {
		text := pkg.SanitizeRich(*patch.Text)
		patch.Text = &text
	}
	if patch.FlairID != nil && *patch.FlairID != "" {
		if _, ok := t.AsPost(); !ok {
			return nil, response.InvalidArgument("only posts carry a flair")
		}
		flairs, err := s.communities.Flairs(ctx, t.CommunityID)
		if err != nil {
			return nil, response.Internal("load flairs", err)
		}
		if err := ValidateFlair(patch.FlairID, flairs); err != nil {
			return nil, err
		}
	}

	updated, err := s.things.UpdateFields(ctx, id, patch)
	if err != nil {
		return nil, translate(err, "thing")
	}
	return updated, nil
}

func (s *ThingService) Delete(ctx context.Context, userID, id uint64) error {
	t, err := s.things.FindByID(ctx, id)
	if err != nil {
		return translate(err, "thing")
	}
	if err := RequireOwner(userID, t.OwnerID); err != nil {
		return err
	}
	return translate(s.things.SoftDelete(ctx, id), "thing")
}

func (s *ThingService) ListPosts(ctx context.Context, communityID, cursor uint64, limit int) (*Page, error) {
	if _, err := s.communities.FindByID(ctx, communityID); err != nil {
		return nil, translate(err, "community")
	}
	items, next, err := s.things.ListPostsByCommunity(ctx, communityID, cursor, limit)
	if err != nil {
		return nil, response.Internal("list posts", err)
	}
	return &Page{Items: items, NextCursor: next}, nil
}

func (s *ThingService) ListComments(ctx context.Context, postID, cursor uint64, limit int) (*Page, error) {
	if _, err := s.things.FindByIDAndAssertType(ctx, postID, model.ThingPost); err != nil {
		return nil, translate(err, "post")
	}
	items, next, err := s.things.ListComments(ctx, postID, cursor, limit)
	if err != nil {
		return nil, response.Internal("list comments", err)
	}
	return &Page{Items: items, NextCursor: next}, nil
}
