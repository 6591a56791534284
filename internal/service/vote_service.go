package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"Reddit_Clone/internal/metrics"
	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/repository/mysql"
	"Reddit_Clone/internal/response"
)

const (
	voteMaxRetries   = 3
	scoreDeleteDelay = 500 * time.Millisecond
	lockWait         = 50 * time.Millisecond
)

type VoteStore interface {
	Apply(ctx context.Context, userID, thingID uint64, dir model.VoteDirection) (mysql.VoteResult, error)
	Direction(ctx context.Context, userID, thingID uint64) (model.VoteDirection, error)
	Score(ctx context.Context, thingID uint64) (int64, error)
}

type ScoreCache interface {
	GetScore(ctx context.Context, thingID uint64) (int64, bool, error)
	SetScore(ctx context.Context, thingID uint64, score int64) error
	DeleteScore(ctx context.Context, thingID uint64, delay time.Duration) error
	Direction(ctx context.Context, userID, thingID uint64) (model.VoteDirection, bool, error)
	WarmDirection(ctx context.Context, userID, thingID uint64, dir model.VoteDirection) error
	ForgetDirection(ctx context.Context, userID, thingID uint64) error
}

type Locker interface {
	Acquire(ctx context.Context, id uint64, token string) (bool, error)
	Release(ctx context.Context, id uint64, token string) error
}

type VoteService struct {
	votes   VoteStore
	cache   ScoreCache
	lock    Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewVoteService cache 和 lock 可以为 nil，此时直接读写数据库
func NewVoteService(votes VoteStore, cache ScoreCache, lock Locker, m *metrics.Metrics, logger *zap.Logger) *VoteService {
	return &VoteService{
		votes:   votes,
		cache:   cache,
		lock:    lock,
		metrics: m,
		logger:  logger.Named("vote_service"),
	}
}

func (s *VoteService) Upvote(ctx context.Context, thingID, userID uint64) (mysql.VoteResult, error) {
	return s.vote(ctx, thingID, userID, model.VoteUp)
}

func (s *VoteService) Downvote(ctx context.Context, thingID, userID uint64) (mysql.VoteResult, error) {
	return s.vote(ctx, thingID, userID, model.VoteDown)
}

func (s *VoteService) Unvote(ctx context.Context, thingID, userID uint64) (mysql.VoteResult, error) {
	return s.vote(ctx, thingID, userID, model.VoteNone)
}

// vote 先写库，事务内已原子更新 vote_score；提交后删缓存并延迟二删。
// 输掉唯一索引竞争的事务整体回滚，按指数退避重试。
func (s *VoteService) vote(ctx context.Context, thingID, userID uint64, dir model.VoteDirection) (mysql.VoteResult, error) {
	if thingID == 0 || userID == 0 {
		return mysql.VoteResult{}, response.InvalidArgument("invalid id")
	}

	var result mysql.VoteResult
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(20*time.Millisecond),
		backoff.WithMaxInterval(200*time.Millisecond),
	), voteMaxRetries), ctx)
	err := backoff.Retry(func() error {
		var err error
		result, err = s.votes.Apply(ctx, userID, thingID, dir)
		if errors.Is(err, mysql.ErrRetryable) {
			s.metrics.RecordVoteRetry()
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, b)
	if err != nil {
		s.metrics.RecordVote(dir.String(), "error")
		return mysql.VoteResult{}, translate(err, "thing")
	}

	if !result.Changed() {
		s.metrics.RecordVote(dir.String(), "noop")
		return result, nil
	}
	s.metrics.RecordVote(dir.String(), "changed")
	s.invalidate(ctx, userID, thingID)
	return result, nil
}

// invalidate 缓存失败只记日志，交给 TTL 和对账兜底
func (s *VoteService) invalidate(ctx context.Context, userID, thingID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteScore(ctx, thingID, scoreDeleteDelay); err != nil {
		s.logger.Warn("delete score cache failed", zap.Uint64("thing_id", thingID), zap.Error(err))
	}
	if err := s.cache.ForgetDirection(ctx, userID, thingID); err != nil {
		s.logger.Warn("forget vote direction failed", zap.Uint64("thing_id", thingID), zap.Error(err))
	}
}

// Score 缓存优先；未命中时抢锁回源，抢不到锁短暂等待后再读一次缓存
func (s *VoteService) Score(ctx context.Context, thingID uint64) (int64, error) {
	if s.cache == nil || s.lock == nil {
		return s.scoreFromDB(ctx, thingID)
	}
	if v, ok, err := s.cache.GetScore(ctx, thingID); err == nil && ok {
		s.metrics.RecordScoreCache("hit")
		return v, nil
	}
	s.metrics.RecordScoreCache("miss")

	token := uuid.NewString()
	got, err := s.lock.Acquire(ctx, thingID, token)
	if err != nil {
		s.logger.Warn("acquire score lock failed", zap.Uint64("thing_id", thingID), zap.Error(err))
		return s.scoreFromDB(ctx, thingID)
	}
	if got {
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), thingID, token); err != nil {
				s.logger.Warn("release score lock failed", zap.Uint64("thing_id", thingID), zap.Error(err))
			}
		}()
		// 第二次检查
		if v, ok, err := s.cache.GetScore(ctx, thingID); err == nil && ok {
			return v, nil
		}
		v, err := s.scoreFromDB(ctx, thingID)
		if err != nil {
			return 0, err
		}
		s.metrics.RecordScoreCache("rebuild")
		_ = s.cache.SetScore(ctx, thingID, v)
		return v, nil
	}

	// 没拿到锁，避免全体打库
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(lockWait):
	}
	if v, ok, err := s.cache.GetScore(ctx, thingID); err == nil && ok {
		return v, nil
	}
	return s.scoreFromDB(ctx, thingID)
}

func (s *VoteService) scoreFromDB(ctx context.Context, thingID uint64) (int64, error) {
	v, err := s.votes.Score(ctx, thingID)
	if err != nil {
		return 0, translate(err, "thing")
	}
	return v, nil
}

// MyVote 用户对 thing 的当前投票
func (s *VoteService) MyVote(ctx context.Context, thingID, userID uint64) (model.VoteDirection, error) {
	if s.cache != nil {
		if dir, ok, err := s.cache.Direction(ctx, userID, thingID); err == nil && ok {
			return dir, nil
		}
	}
	dir, err := s.votes.Direction(ctx, userID, thingID)
	if err != nil {
		return model.VoteNone, response.Internal("load vote", err)
	}
	if s.cache != nil {
		_ = s.cache.WarmDirection(ctx, userID, thingID, dir)
	}
	return dir, nil
}
