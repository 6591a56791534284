package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"Reddit_Clone/internal/metrics"
	"Reddit_Clone/internal/repository/mysql"
)

const reconcileTimeout = 2 * time.Minute

type ScoreReconcileStore interface {
	ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]mysql.ScorePair, uint64, error)
	RealScores(ctx context.Context, thingIDs []uint64) (map[uint64]int64, error)
	FixScore(ctx context.Context, thingID uint64, seen int64) (bool, error)
}

type FollowReconcileStore interface {
	ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]mysql.Pair, uint64, error)
	RealFollowings(ctx context.Context, userID uint64) (int64, error)
	RealFollowers(ctx context.Context, userID uint64) (int64, error)
	FixFollowings(ctx context.Context, userID uint64, seen int64) (bool, error)
	FixFollowers(ctx context.Context, userID uint64, seen int64) (bool, error)
}

// ScoreReconciler 用 votes 表的 SUM(direction) 修正 things.vote_score
type ScoreReconciler struct {
	repo      ScoreReconcileStore
	cache     ScoreCache
	batchSize int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewScoreReconciler(repo ScoreReconcileStore, cache ScoreCache, batchSize int, m *metrics.Metrics, logger *zap.Logger) *ScoreReconciler {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ScoreReconciler{repo: repo, cache: cache, batchSize: batchSize, metrics: m, logger: logger.Named("score_reconciler")}
}

// ReconcileOnce 全表扫一遍，返回修正条数
func (r *ScoreReconciler) ReconcileOnce(ctx context.Context) (int, error) {
	var lastID uint64
	fixed := 0
	for {
		list, next, err := r.repo.ReconcileList(ctx, r.batchSize, lastID)
		if err != nil {
			return fixed, err
		}
		if len(list) == 0 {
			break
		}
		ids := make([]uint64, 0, len(list))
		for _, p := range list {
			ids = append(ids, p.ID)
		}
		actual, err := r.repo.RealScores(ctx, ids)
		if err != nil {
			return fixed, err
		}
		for _, p := range list {
			want := actual[p.ID]
			if want == p.VoteScore {
				continue
			}
			ok, err := r.repo.FixScore(ctx, p.ID, p.VoteScore)
			if err != nil {
				r.logger.Warn("fix score failed", zap.Uint64("thing_id", p.ID), zap.Error(err))
				continue
			}
			if !ok {
				r.logger.Debug("score changed during reconcile, skipped", zap.Uint64("thing_id", p.ID))
				continue
			}
			r.logger.Info("score drift repaired", zap.Uint64("thing_id", p.ID), zap.Int64("was", p.VoteScore), zap.Int64("now", want))
			if r.cache != nil {
				_ = r.cache.DeleteScore(ctx, p.ID, 0)
			}
			fixed++
		}
		lastID = next
	}
	r.metrics.RecordReconciled("vote_score", fixed)
	return fixed, nil
}

// FollowCountReconciler 修正 users 表的关注数与粉丝数
type FollowCountReconciler struct {
	repo      FollowReconcileStore
	batchSize int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewFollowCountReconciler(repo FollowReconcileStore, batchSize int, m *metrics.Metrics, logger *zap.Logger) *FollowCountReconciler {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &FollowCountReconciler{repo: repo, batchSize: batchSize, metrics: m, logger: logger.Named("follow_reconciler")}
}

func (r *FollowCountReconciler) ReconcileOnce(ctx context.Context) (int, error) {
	var lastID uint64
	fixed := 0
	for {
		users, next, err := r.repo.ReconcileList(ctx, r.batchSize, lastID)
		if err != nil {
			return fixed, err
		}
		if len(users) == 0 {
			break
		}
		for _, u := range users {
			// 先查 follow 表真实值，再和 users 表比对
			realFollowing, err := r.repo.RealFollowings(ctx, u.ID)
			if err != nil {
				continue
			}
			realFollower, err := r.repo.RealFollowers(ctx, u.ID)
			if err != nil {
				continue
			}
			if realFollowing != u.FollowingCount {
				if ok, err := r.repo.FixFollowings(ctx, u.ID, u.FollowingCount); err == nil && ok {
					fixed++
				}
			}
			if realFollower != u.FollowerCount {
				if ok, err := r.repo.FixFollowers(ctx, u.ID, u.FollowerCount); err == nil && ok {
					fixed++
				}
			}
		}
		lastID = next
	}
	r.metrics.RecordReconciled("follow_count", fixed)
	return fixed, nil
}

// Job 定时任务，返回处理条数
type Job interface {
	ReconcileOnce(ctx context.Context) (int, error)
}

type JobFunc func(ctx context.Context) (int, error)

func (f JobFunc) ReconcileOnce(ctx context.Context) (int, error) { return f(ctx) }

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewScheduler 按 cron 表达式运行所有对账任务，上一轮未结束时跳过
func NewScheduler(ctx context.Context, spec string, logger *zap.Logger, jobs map[string]Job) (*cron.Cron, error) {
	logger = logger.Named("scheduler")
	cl := cronLogger{l: logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for name, job := range jobs {
		_, err := c.AddFunc(spec, func() {
			runCtx, cancel := context.WithTimeout(ctx, reconcileTimeout)
			defer cancel()
			n, err := job.ReconcileOnce(runCtx)
			if err != nil {
				logger.Warn("reconcile failed", zap.String("job", name), zap.Error(err))
				return
			}
			logger.Info("reconcile done", zap.String("job", name), zap.Int("fixed", n))
		})
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}
