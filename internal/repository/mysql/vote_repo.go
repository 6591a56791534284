package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Reddit_Clone/internal/model"
)

var ErrThingRemoved = errors.New("thing removed")

type VoteRepository struct {
	DB *gorm.DB
}

// VoteResult 一次投票前后的方向与分数变化
type VoteResult struct {
	Previous model.VoteDirection
	Current  model.VoteDirection
	Delta    int64
}

func (v VoteResult) Changed() bool { return v.Delta != 0 }

// Apply 把 (user, thing) 的投票置为 dir，dir=VoteNone 表示取消。
// 投票行与 vote_score 在同一事务内修改，分数用原子表达式累加。
// 同一用户并发首次投票时，输掉唯一索引竞争或死锁被回滚的一方返回 ErrRetryable。
func (r *VoteRepository) Apply(ctx context.Context, userID, thingID uint64, dir model.VoteDirection) (VoteResult, error) {
	var result VoteResult
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var thing model.Thing
		if err := tx.Select("id", "status").First(&thing, thingID).Error; err != nil {
			return err
		}
		if thing.Status == model.StatusRemoved {
			return ErrThingRemoved
		}

		var vote model.Vote
		// select for update 避免竞争
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND thing_id = ?", userID, thingID).
			First(&vote).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result.Previous = model.VoteNone
			if dir == model.VoteNone {
				// 没投过票，取消投票是 no-op
				return nil
			}
			if err := tx.Create(&model.Vote{UserID: userID, ThingID: thingID, Direction: dir}).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			result.Previous = vote.Direction
			if vote.Direction == dir {
				// 重复投同方向，幂等
				result.Current = dir
				return nil
			}
			var res *gorm.DB
			if dir == model.VoteNone {
				res = tx.Where("id = ? AND direction = ?", vote.ID, vote.Direction).Delete(&model.Vote{})
			} else {
				res = tx.Model(&model.Vote{}).
					Where("id = ? AND direction = ?", vote.ID, vote.Direction).
					Update("direction", dir)
			}
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrRetryable
			}
		}

		result.Current = dir
		result.Delta = int64(dir) - int64(result.Previous)
		if err := tx.Model(&model.Thing{}).Where("id = ?", thingID).
			UpdateColumn("vote_score", gorm.Expr("vote_score + ?", result.Delta)).Error; err != nil {
			return err
		}
		return insertOutbox(tx, "vote", thingID, map[string]any{
			"thing_id": thingID,
			"user_id":  userID,
			"from":     result.Previous.String(),
			"to":       dir.String(),
			"delta":    result.Delta,
		})
	})
	if err != nil {
		return VoteResult{}, asRetryable(err)
	}
	return result, nil
}

// Direction 用户当前投票方向，没有投票返回 VoteNone
func (r *VoteRepository) Direction(ctx context.Context, userID, thingID uint64) (model.VoteDirection, error) {
	var vote model.Vote
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND thing_id = ?", userID, thingID).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.VoteNone, nil
	}
	if err != nil {
		return model.VoteNone, err
	}
	return vote.Direction, nil
}

// Score 读库里的 vote_score，缓存未命中时回源
func (r *VoteRepository) Score(ctx context.Context, thingID uint64) (int64, error) {
	var thing model.Thing
	if err := r.DB.WithContext(ctx).Select("id", "vote_score").First(&thing, thingID).Error; err != nil {
		return 0, err
	}
	return thing.VoteScore, nil
}

// ScorePair 对账用：计数列与投票表真实值
type ScorePair struct {
	ID        uint64
	VoteScore int64
}

type ScoreReconcilerRepo struct {
	DB *gorm.DB
}

// ReconcileList 按 id 递增批量扫描
func (r *ScoreReconcilerRepo) ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]ScorePair, uint64, error) {
	var list []ScorePair
	if err := r.DB.WithContext(ctx).Model(&model.Thing{}).
		Select("id", "vote_score").
		Where("id > ?", lastID).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, lastID, err
	}
	if len(list) == 0 {
		return nil, lastID, nil
	}
	return list, list[len(list)-1].ID, nil
}

// RealScores 一批 thing 的 SUM(direction)，没有投票的不在结果里
func (r *ScoreReconcilerRepo) RealScores(ctx context.Context, thingIDs []uint64) (map[uint64]int64, error) {
	type row struct {
		ThingID uint64
		Score   int64
	}
	var rows []row
	if err := r.DB.WithContext(ctx).Model(&model.Vote{}).
		Select("thing_id, SUM(direction) AS score").
		Where("thing_id IN ?", thingIDs).
		Group("thing_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]int64, len(rows))
	for _, rw := range rows {
		out[rw.ThingID] = rw.Score
	}
	return out, nil
}

// FixScore 在同一条语句里按 votes 表重算 vote_score。
// 只有 vote_score 仍等于对账时读到的 seen 才写入，期间有投票提交则跳过，留给下一轮。
func (r *ScoreReconcilerRepo) FixScore(ctx context.Context, thingID uint64, seen int64) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.Thing{}).
		Where("id = ? AND vote_score = ?", thingID, seen).
		UpdateColumn("vote_score", gorm.Expr("(SELECT COALESCE(SUM(direction), 0) FROM votes WHERE thing_id = ?)", thingID))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
