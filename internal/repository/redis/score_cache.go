package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"Reddit_Clone/internal/model"
)

const (
	ScoreTTL       = 24 * time.Hour
	DirectionTTL   = 24 * time.Hour
	LockTTL        = 300 * time.Millisecond
	ScoreKeyPrefix = "vote:score:thing" // thing 的 vote_score 缓存
	DirKeyPrefix   = "vote:dir:thing"   // hash: userID -> 投票方向
	LockKeyPrefix  = "lock:vote:thing"  // 回源分布式锁
)

type ScoreCache struct {
	RDB *redis.Client
	// 可配置
	scoreTTL time.Duration
	dirTTL   time.Duration
}

type DistLock struct {
	RDB *redis.Client
}

func NewScoreCache(rdb *redis.Client) *ScoreCache {
	return &ScoreCache{
		RDB:      rdb,
		scoreTTL: ScoreTTL,
		dirTTL:   DirectionTTL,
	}
}

func scoreKey(thingID uint64) string {
	return fmt.Sprintf("%s:%d", ScoreKeyPrefix, thingID)
}

func dirKey(thingID uint64) string {
	return fmt.Sprintf("%s:%d", DirKeyPrefix, thingID)
}

// GetScore 第二个返回值表示是否命中
func (c *ScoreCache) GetScore(ctx context.Context, thingID uint64) (int64, bool, error) {
	val, err := c.RDB.Get(ctx, scoreKey(thingID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

// SetScore 回填分数
func (c *ScoreCache) SetScore(ctx context.Context, thingID uint64, score int64) error {
	return c.RDB.Set(ctx, scoreKey(thingID), score, c.scoreTTL).Err()
}

// DeleteScore 写库成功后删除缓存，delay>0 时再异步删一次，抵消并发回填窗口
func (c *ScoreCache) DeleteScore(ctx context.Context, thingID uint64, delay time.Duration) error {
	key := scoreKey(thingID)
	if err := c.RDB.Del(ctx, key).Err(); err != nil {
		return err
	}
	if delay > 0 {
		go func() {
			t := time.NewTimer(delay)
			defer t.Stop()
			<-t.C
			_ = c.RDB.Del(context.Background(), key).Err()
		}()
	}
	return nil
}

// Direction 从缓存读取用户的投票方向，第二个返回值表示是否命中
func (c *ScoreCache) Direction(ctx context.Context, userID, thingID uint64) (model.VoteDirection, bool, error) {
	val, err := c.RDB.HGet(ctx, dirKey(thingID), strconv.FormatUint(userID, 10)).Int()
	if errors.Is(err, redis.Nil) {
		return model.VoteNone, false, nil
	}
	if err != nil {
		return model.VoteNone, false, err
	}
	return model.VoteDirection(val), true, nil
}

// WarmDirection 写入用户的投票方向，VoteNone 也记录，避免重复回源
func (c *ScoreCache) WarmDirection(ctx context.Context, userID, thingID uint64, dir model.VoteDirection) error {
	k := dirKey(thingID)
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, strconv.FormatUint(userID, 10), int(dir))
		p.Expire(ctx, k, c.dirTTL)
		return nil
	})
	return err
}

// ForgetDirection 投票变更后删除该用户的缓存方向
func (c *ScoreCache) ForgetDirection(ctx context.Context, userID, thingID uint64) error {
	return c.RDB.HDel(ctx, dirKey(thingID), strconv.FormatUint(userID, 10)).Err()
}

// Acquire 请求加分布式锁
func (l *DistLock) Acquire(ctx context.Context, thingID uint64, token string) (bool, error) {
	key := fmt.Sprintf("%s:%d", LockKeyPrefix, thingID)
	return l.RDB.SetNX(ctx, key, token, LockTTL).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Release 用lua保证只删除自己持有的锁
func (l *DistLock) Release(ctx context.Context, thingID uint64, token string) error {
	key := fmt.Sprintf("%s:%d", LockKeyPrefix, thingID)
	return releaseScript.Run(ctx, l.RDB, []string{key}, token).Err()
}
