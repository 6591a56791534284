package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/repository/mysql"
	"Reddit_Clone/internal/response"
)

const followMaxRetries = 3

type FollowStore interface {
	Follow(ctx context.Context, followerID, followeeID uint64) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID uint64) (bool, error)
	Block(ctx context.Context, blockerID, blockedID uint64) (bool, error)
	Unblock(ctx context.Context, blockerID, blockedID uint64) (bool, error)
	IsBlockedEither(ctx context.Context, a, b uint64) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID uint64) (bool, error)
	ListFollowings(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error)
	ListFollowers(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error)
}

type UserExistence interface {
	FindByID(ctx context.Context, id uint64) (*model.User, error)
}

type FollowService struct {
	repo   FollowStore
	users  UserExistence
	logger *zap.Logger
}

func NewFollowService(repo FollowStore, users UserExistence, logger *zap.Logger) *FollowService {
	return &FollowService{repo: repo, users: users, logger: logger.Named("follow_service")}
}

// checkPair 两个 id 合法、不相同且对方存在
func (s *FollowService) checkPair(ctx context.Context, from, to uint64, verb string) error {
	if from == 0 || to == 0 {
		return response.InvalidArgument("invalid user id")
	}
	if from == to {
		return response.InvalidArgument("cannot " + verb + " self")
	}
	if _, err := s.users.FindByID(ctx, to); err != nil {
		return translate(err, "user")
	}
	return nil
}

// Follow 任意一方拉黑时不允许关注
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	if err := s.checkPair(ctx, followerID, followeeID, "follow"); err != nil {
		return false, err
	}
	blocked, err := s.repo.IsBlockedEither(ctx, followerID, followeeID)
	if err != nil {
		return false, response.Internal("check block", err)
	}
	if blocked {
		return false, response.InvalidArgument("user is blocked")
	}
	// 输掉唯一索引竞争或被死锁回滚时整体重试；重试读到已关注即返回 changed=false
	var changed bool
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(20*time.Millisecond),
		backoff.WithMaxInterval(200*time.Millisecond),
	), followMaxRetries), ctx)
	err = backoff.Retry(func() error {
		var err error
		changed, err = s.repo.Follow(ctx, followerID, followeeID)
		if err != nil && !errors.Is(err, mysql.ErrRetryable) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if err != nil {
		return false, response.Internal("follow", err)
	}
	return changed, nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	if err := s.checkPair(ctx, followerID, followeeID, "unfollow"); err != nil {
		return false, err
	}
	changed, err := s.repo.Unfollow(ctx, followerID, followeeID)
	if err != nil {
		return false, response.Internal("unfollow", err)
	}
	return changed, nil
}

func (s *FollowService) Block(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	if err := s.checkPair(ctx, blockerID, blockedID, "block"); err != nil {
		return false, err
	}
	changed, err := s.repo.Block(ctx, blockerID, blockedID)
	if err != nil {
		return false, response.Internal("block", err)
	}
	if changed {
		s.logger.Info("user blocked", zap.Uint64("blocker", blockerID), zap.Uint64("blocked", blockedID))
	}
	return changed, nil
}

func (s *FollowService) Unblock(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	if err := s.checkPair(ctx, blockerID, blockedID, "unblock"); err != nil {
		return false, err
	}
	changed, err := s.repo.Unblock(ctx, blockerID, blockedID)
	if err != nil {
		return false, response.Internal("unblock", err)
	}
	return changed, nil
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	if followerID == 0 || followeeID == 0 {
		return false, response.InvalidArgument("invalid user id")
	}
	ok, err := s.repo.IsFollowing(ctx, followerID, followeeID)
	if err != nil {
		return false, response.Internal("is following", err)
	}
	return ok, nil
}

type FollowPage struct {
	Items      []model.Follow `json:"items"`
	NextCursor uint64         `json:"nextCursor"`
}

func (s *FollowService) ListFollowings(ctx context.Context, userID, cursor uint64, limit int) (*FollowPage, error) {
	rows, next, err := s.repo.ListFollowings(ctx, userID, cursor, limit)
	if err != nil {
		return nil, response.Internal("list followings", err)
	}
	return &FollowPage{Items: rows, NextCursor: next}, nil
}

func (s *FollowService) ListFollowers(ctx context.Context, userID, cursor uint64, limit int) (*FollowPage, error) {
	rows, next, err := s.repo.ListFollowers(ctx, userID, cursor, limit)
	if err != nil {
		return nil, response.Internal("list followers", err)
	}
	return &FollowPage{Items: rows, NextCursor: next}, nil
}
