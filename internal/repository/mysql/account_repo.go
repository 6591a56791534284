package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Reddit_Clone/internal/model"
)

type PrefsRepository struct {
	DB *gorm.DB
}

// Get 没有记录时返回 gorm.ErrRecordNotFound
func (r *PrefsRepository) Get(ctx context.Context, userID uint64) (*model.UserPrefs, error) {
	var p model.UserPrefs
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Save 整行 upsert，调用方先合并好 patch
func (r *PrefsRepository) Save(ctx context.Context, p *model.UserPrefs) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(p).Error
}

type SavedPostRepository struct {
	DB *gorm.DB
}

// Save 幂等，已收藏时 changed=false
func (r *SavedPostRepository) Save(ctx context.Context, userID, thingID uint64) (bool, error) {
	err := r.DB.WithContext(ctx).Create(&model.SavedPost{UserID: userID, ThingID: thingID}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return err == nil, err
}

func (r *SavedPostRepository) Unsave(ctx context.Context, userID, thingID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ? AND thing_id = ?", userID, thingID).Delete(&model.SavedPost{})
	return res.RowsAffected > 0, res.Error
}

// List 按收藏先后倒序，cursor 为上一页最后一条收藏记录的 ID
func (r *SavedPostRepository) List(ctx context.Context, userID, cursor uint64, limit int) ([]model.SavedPost, uint64, error) {
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var list []model.SavedPost
	if err := q.Order("id DESC").Limit(limit + 1).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	var next uint64
	if len(list) > limit {
		list = list[:limit]
		next = list[limit-1].ID
	}
	return list, next, nil
}
