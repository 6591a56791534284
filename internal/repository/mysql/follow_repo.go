package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Reddit_Clone/internal/model"
)

type FollowRepository struct {
	DB *gorm.DB
}

type FollowCountReconcilerRepo struct {
	DB *gorm.DB
}

// Pair 对账消息结构体
type Pair struct {
	ID             uint64
	FollowingCount int64
	FollowerCount  int64
}

// Follow 设置关系为关注（幂等）。如果状态从未关注切换为已关注，则返回 changed=true。
func (r *FollowRepository) Follow(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rel model.Follow
		// select for update 避免竞争
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("follower_id=? AND followee_id=?", followerID, followeeID).First(&rel).Error; err != nil {
			// 如果没找到信息则创建
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rel = model.Follow{
					FollowerID: followerID,
					FolloweeID: followeeID,
					Status:     1,
				}
				if err = tx.Create(&rel).Error; err != nil {
					return err
				}
				changed = true
				if err = adjustFollowCounts(tx, followerID, followeeID, +1); err != nil {
					return err
				}
				// 写outbox表
				return insertFollowOutbox(tx, "follow", followerID, followeeID)
			}
			return err
		}
		// 做幂等，判断是否真的是新关注还是重复请求
		if rel.Status == 1 {
			return nil
		}
		if err := tx.Model(&model.Follow{}).
			Where("id=? AND status=0", rel.ID).
			Update("status", 1).Error; err != nil {
			return err
		}
		changed = true
		if err := adjustFollowCounts(tx, followerID, followeeID, +1); err != nil {
			return err
		}
		return insertFollowOutbox(tx, "follow", followerID, followeeID)
	})
	if err != nil {
		return false, asRetryable(err)
	}
	return changed, nil
}

// Unfollow 取消关注（幂等）
func (r *FollowRepository) Unfollow(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = unfollowTx(tx, followerID, followeeID)
		return err
	})
	return changed, err
}

func unfollowTx(tx *gorm.DB, followerID, followeeID uint64) (bool, error) {
	var rel model.Follow
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("follower_id=? AND followee_id=?", followerID, followeeID).First(&rel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if rel.Status == 0 {
		return false, nil
	}
	if err := tx.Model(&model.Follow{}).
		Where("id=? AND status=1", rel.ID).
		Update("status", 0).Error; err != nil {
		return false, err
	}
	if err := adjustFollowCounts(tx, followerID, followeeID, -1); err != nil {
		return false, err
	}
	return true, insertFollowOutbox(tx, "unfollow", followerID, followeeID)
}

// Block 拉黑（幂等），同时解除双方的关注关系
func (r *FollowRepository) Block(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	var changed bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
			DoNothing: true,
		}).Create(&model.Block{BlockerID: blockerID, BlockedID: blockedID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true
		if _, err := unfollowTx(tx, blockerID, blockedID); err != nil {
			return err
		}
		if _, err := unfollowTx(tx, blockedID, blockerID); err != nil {
			return err
		}
		return insertFollowOutbox(tx, "block", blockerID, blockedID)
	})
	return changed, err
}

func (r *FollowRepository) Unblock(ctx context.Context, blockerID, blockedID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&model.Block{})
	return res.RowsAffected > 0, res.Error
}

// IsBlockedEither 任意一方拉黑了另一方
func (r *FollowRepository) IsBlockedEither(ctx context.Context, a, b uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&n).Error
	return n > 0, err
}

// IsFollowing 判断是否关注
func (r *FollowRepository) IsFollowing(ctx context.Context, followerID, followeeID uint64) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id=? AND followee_id=? AND status=1", followerID, followeeID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListFollowings 获取关注列表
func (r *FollowRepository) ListFollowings(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	return r.listFollows(ctx, "follower_id", userID, cursor, limit)
}

// ListFollowers 获取粉丝列表
func (r *FollowRepository) ListFollowers(ctx context.Context, userID uint64, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	return r.listFollows(ctx, "followee_id", userID, cursor, limit)
}

func (r *FollowRepository) listFollows(ctx context.Context, column string, userID, cursor uint64, limit int) ([]model.Follow, uint64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where(column+"=? AND status=1", userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Follow
	// 这里limit+1是为了更好的继续分页
	if err := q.Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(rows) > limit {
		next = rows[limit-1].ID
		rows = rows[:limit]
	}
	return rows, next, nil
}

// adjustFollowCounts 调整关注数与粉丝数，不小于 0
func adjustFollowCounts(tx *gorm.DB, followerID, followeeID uint64, delta int64) error {
	if err := tx.Model(&model.User{}).
		Where("id=?", followerID).
		UpdateColumn("following_count", gorm.Expr("CASE WHEN following_count + ? < 0 THEN 0 ELSE following_count + ? END", delta, delta)).Error; err != nil {
		return err
	}
	return tx.Model(&model.User{}).
		Where("id=?", followeeID).
		UpdateColumn("follower_count", gorm.Expr("CASE WHEN follower_count + ? < 0 THEN 0 ELSE follower_count + ? END", delta, delta)).Error
}

func insertFollowOutbox(tx *gorm.DB, event string, from, to uint64) error {
	return insertOutbox(tx, event, from, map[string]any{
		"follower": from,
		"followee": to,
	})
}

// ReconcileList 异步对账用户批量查询
func (r *FollowCountReconcilerRepo) ReconcileList(ctx context.Context, batchSize int, lastID uint64) ([]Pair, uint64, error) {
	var list []Pair
	if err := r.DB.WithContext(ctx).Model(&model.User{}).
		Select("id", "following_count", "follower_count").
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

// RealFollowings 用户真实关注的人数
func (r *FollowCountReconcilerRepo) RealFollowings(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("follower_id=? AND status=1", userID).
		Count(&n).Error
	return n, err
}

// RealFollowers 用户真实粉丝数
func (r *FollowCountReconcilerRepo) RealFollowers(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Follow{}).
		Where("followee_id=? AND status=1", userID).
		Count(&n).Error
	return n, err
}

// FixFollowings / FixFollowers 按 follow 表重算，计数在对账期间被改过则跳过
func (r *FollowCountReconcilerRepo) FixFollowings(ctx context.Context, userID uint64, seen int64) (bool, error) {
	return r.fixCount(ctx, userID, "following_count", "follower_id", seen)
}

func (r *FollowCountReconcilerRepo) FixFollowers(ctx context.Context, userID uint64, seen int64) (bool, error) {
	return r.fixCount(ctx, userID, "follower_count", "followee_id", seen)
}

func (r *FollowCountReconcilerRepo) fixCount(ctx context.Context, userID uint64, column, key string, seen int64) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND "+column+" = ?", userID, seen).
		UpdateColumn(column, gorm.Expr("(SELECT COUNT(*) FROM follow WHERE "+key+" = ? AND status = 1)", userID))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
