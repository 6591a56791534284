package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/response"
)

const maxQueryLen = 100

type SearchStore interface {
	People(ctx context.Context, q string, page, limit int) ([]model.UserBrief, error)
	CommunityNames(ctx context.Context, q string, page, limit int) ([]model.Community, error)
	Communities(ctx context.Context, q string, page, limit int) ([]model.Community, error)
	Posts(ctx context.Context, q string, page, limit int) ([]model.Thing, error)
	Comments(ctx context.Context, q string, page, limit int) ([]model.Thing, error)
}

type ThingBatchLoader interface {
	FindByIDs(ctx context.Context, ids []uint64) ([]model.Thing, error)
}

type UserBatchLoader interface {
	FindByIDs(ctx context.Context, ids []uint64) ([]model.User, error)
}

type SearchService struct {
	search SearchStore
	things ThingBatchLoader
	users  UserBatchLoader
	logger *zap.Logger
}

func NewSearchService(search SearchStore, things ThingBatchLoader, users UserBatchLoader, logger *zap.Logger) *SearchService {
	return &SearchService{search: search, things: things, users: users, logger: logger.Named("search_service")}
}

type PostHit struct {
	model.Thing
	Username string `json:"username"`
}

type CommentHit struct {
	model.Thing
	Username  string `json:"username"`
	PostTitle string `json:"postTitle"`
}

type SearchAllResult struct {
	People      []model.UserBrief `json:"people"`
	Communities []model.Community `json:"communities"`
	Posts       []PostHit         `json:"posts"`
	Comments    []CommentHit      `json:"comments"`
}

func normalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", response.InvalidArgument("search query is required")
	}
	if len(q) > maxQueryLen {
		return "", response.InvalidArgument("search query is too long")
	}
	return q, nil
}

func (s *SearchService) People(ctx context.Context, q string, page, limit int) ([]model.UserBrief, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	list, err := s.search.People(ctx, q, page, limit)
	if err != nil {
		return nil, response.Internal("search people", err)
	}
	return list, nil
}

// Communities prefix=true 时只按名称前缀匹配
func (s *SearchService) Communities(ctx context.Context, q string, prefix bool, page, limit int) ([]model.Community, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	var list []model.Community
	if prefix {
		list, err = s.search.CommunityNames(ctx, q, page, limit)
	} else {
		list, err = s.search.Communities(ctx, q, page, limit)
	}
	if err != nil {
		return nil, response.Internal("search communities", err)
	}
	return list, nil
}

func (s *SearchService) Posts(ctx context.Context, q string, page, limit int) ([]PostHit, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	things, err := s.search.Posts(ctx, q, page, limit)
	if err != nil {
		return nil, response.Internal("search posts", err)
	}
	names, err := s.usernames(ctx, things)
	if err != nil {
		return nil, err
	}
	hits := make([]PostHit, 0, len(things))
	for _, t := range things {
		hits = append(hits, PostHit{Thing: t, Username: names[t.OwnerID]})
	}
	return hits, nil
}

// Comments 附带作者名与所属帖子标题
func (s *SearchService) Comments(ctx context.Context, q string, page, limit int) ([]CommentHit, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	things, err := s.search.Comments(ctx, q, page, limit)
	if err != nil {
		return nil, response.Internal("search comments", err)
	}
	names, err := s.usernames(ctx, things)
	if err != nil {
		return nil, err
	}

	postIDs := make([]uint64, 0, len(things))
	for _, t := range things {
		if t.PostID != nil {
			postIDs = append(postIDs, *t.PostID)
		}
	}
	posts, err := s.things.FindByIDs(ctx, postIDs)
	if err != nil {
		return nil, response.Internal("load posts", err)
	}
	titles := make(map[uint64]string, len(posts))
	for _, p := range posts {
		titles[p.ID] = p.Title
	}

	hits := make([]CommentHit, 0, len(things))
	for _, t := range things {
		hit := CommentHit{Thing: t, Username: names[t.OwnerID]}
		if t.PostID != nil {
			hit.PostTitle = titles[*t.PostID]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *SearchService) usernames(ctx context.Context, things []model.Thing) (map[uint64]string, error) {
	ids := make([]uint64, 0, len(things))
	for _, t := range things {
		ids = append(ids, t.OwnerID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, response.Internal("load users", err)
	}
	names := make(map[uint64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

// All 四类并发查询，任一失败整体失败
func (s *SearchService) All(ctx context.Context, q string, page, limit int) (*SearchAllResult, error) {
	if _, err := normalizeQuery(q); err != nil {
		return nil, err
	}
	var out SearchAllResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.People, err = s.People(gctx, q, page, limit)
		return err
	})
	g.Go(func() error {
		var err error
		out.Communities, err = s.Communities(gctx, q, false, page, limit)
		return err
	})
	g.Go(func() error {
		var err error
		out.Posts, err = s.Posts(gctx, q, page, limit)
		return err
	})
	g.Go(func() error {
		var err error
		out.Comments, err = s.Comments(gctx, q, page, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("search all failed", zap.String("q", q), zap.Error(err))
		return nil, err
	}
	return &out, nil
}
