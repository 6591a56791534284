package mysql

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Reddit_Clone/internal/model"
)

type CommunityRepository struct {
	DB *gorm.DB
}

// Create 创建社区，创建者成为第一个版主并自动加入
func (r *CommunityRepository) Create(ctx context.Context, c *model.Community, creatorUsername string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return err
		}
		mod := model.CommunityModerator{CommunityID: c.ID, Username: creatorUsername, Position: 0}
		if err := tx.Create(&mod).Error; err != nil {
			return err
		}
		c.Moderators = []model.CommunityModerator{mod}

		// 幂等加入：仓储已 DoNothing；这里将其视为成功
		mRepo := &CommunityMemberRepository{DB: tx}
		if _, err := mRepo.Join(ctx, c.ID, c.CreatorID); err != nil {
			return err
		}
		return insertOutbox(tx, "community.create", c.ID, map[string]any{
			"community_id": c.ID,
			"name":         c.Name,
			"creator":      creatorUsername,
		})
	})
}

func withAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Moderators", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Flairs", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// FindByID 带上版主、flair、规则
func (r *CommunityRepository) FindByID(ctx context.Context, id uint64) (*model.Community, error) {
	var c model.Community
	if err := withAggregate(r.DB.WithContext(ctx)).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommunityRepository) FindByName(ctx context.Context, name string) (*model.Community, error) {
	var c model.Community
	if err := withAggregate(r.DB.WithContext(ctx)).Where("name = ?", name).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommunityRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Community{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *CommunityRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Community{}).Where("name = ?", name).Count(&n).Error
	return n > 0, err
}

// Update 只更新给出的列
func (r *CommunityRepository) Update(ctx context.Context, id uint64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.DB.WithContext(ctx).Model(&model.Community{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *CommunityRepository) SetIcon(ctx context.Context, id uint64, icon string) error {
	return r.DB.WithContext(ctx).Model(&model.Community{}).Where("id = ?", id).Update("icon", icon).Error
}

// IsModerator username 是否在社区版主列表中
func (r *CommunityRepository) IsModerator(ctx context.Context, communityID uint64, username string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.CommunityModerator{}).
		Where("community_id = ? AND username = ?", communityID, username).
		Count(&n).Error
	return n > 0, err
}

func (r *CommunityRepository) Moderators(ctx context.Context, communityID uint64) ([]model.CommunityModerator, error) {
	var list []model.CommunityModerator
	err := r.DB.WithContext(ctx).Where("community_id = ?", communityID).Order("position ASC").Find(&list).Error
	return list, err
}

// AddModerator 追加到版主列表末尾，已是版主时返回 gorm.ErrDuplicatedKey
func (r *CommunityRepository) AddModerator(ctx context.Context, communityID uint64, username string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPos int
		if err := tx.Model(&model.CommunityModerator{}).
			Where("community_id = ?", communityID).
			Select("COALESCE(MAX(position), -1)").Row().Scan(&maxPos); err != nil {
			return err
		}
		return tx.Create(&model.CommunityModerator{CommunityID: communityID, Username: username, Position: maxPos + 1}).Error
	})
}

// ListModeratedBy username 担任版主的社区
func (r *CommunityRepository) ListModeratedBy(ctx context.Context, username string) ([]model.Community, error) {
	var list []model.Community
	err := r.DB.WithContext(ctx).
		Joins("JOIN community_moderators m ON m.community_id = communities.id").
		Where("m.username = ?", username).
		Order("communities.id DESC").
		Find(&list).Error
	return list, err
}

func (r *CommunityRepository) Flairs(ctx context.Context, communityID uint64) ([]model.Flair, error) {
	var list []model.Flair
	err := r.DB.WithContext(ctx).Where("community_id = ?", communityID).Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *CommunityRepository) AddFlair(ctx context.Context, f *model.Flair) error {
	return r.DB.WithContext(ctx).Create(f).Error
}

// DeleteFlair flair 不属于该社区时返回 gorm.ErrRecordNotFound
func (r *CommunityRepository) DeleteFlair(ctx context.Context, communityID uint64, flairID string) error {
	res := r.DB.WithContext(ctx).Where("id = ? AND community_id = ?", flairID, communityID).Delete(&model.Flair{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddRule 规则按 position 有序，新规则排在最后
func (r *CommunityRepository) AddRule(ctx context.Context, rule *model.Rule) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPos int
		if err := tx.Model(&model.Rule{}).
			Where("community_id = ?", rule.CommunityID).
			Select("COALESCE(MAX(position), -1)").Row().Scan(&maxPos); err != nil {
			return err
		}
		rule.Position = maxPos + 1
		return tx.Create(rule).Error
	})
}

func (r *CommunityRepository) DeleteRule(ctx context.Context, communityID uint64, ruleID string) error {
	res := r.DB.WithContext(ctx).Where("id = ? AND community_id = ?", ruleID, communityID).Delete(&model.Rule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateRule 部分更新，返回更新后的规则
func (r *CommunityRepository) UpdateRule(ctx context.Context, communityID uint64, ruleID string, updates map[string]any) (*model.Rule, error) {
	var rule model.Rule
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND community_id = ?", ruleID, communityID).First(&rule).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&rule).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *CommunityRepository) Rules(ctx context.Context, communityID uint64) ([]model.Rule, error) {
	var list []model.Rule
	err := r.DB.WithContext(ctx).Where("community_id = ?", communityID).Order("position ASC").Find(&list).Error
	return list, err
}

// AddCategories 集合语义追加分类
func (r *CommunityRepository) AddCategories(ctx context.Context, communityID uint64, categories []string) ([]string, error) {
	var out []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Community
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "categories").First(&c, communityID).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(c.Categories))
		out = append(out, c.Categories...)
		for _, cat := range c.Categories {
			seen[cat] = struct{}{}
		}
		for _, cat := range categories {
			if _, ok := seen[cat]; ok || cat == "" {
				continue
			}
			seen[cat] = struct{}{}
			out = append(out, cat)
		}
		return tx.Model(&model.Community{}).Where("id = ?", communityID).
			Update("categories", datatypes.NewJSONSlice(out)).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByCategory 分类下的社区
func (r *CommunityRepository) ListByCategory(ctx context.Context, category string, page, limit int) ([]model.Community, error) {
	offset, size := normalizePage(page, limit)
	var list []model.Community
	err := r.DB.WithContext(ctx).
		Where(datatypes.JSONArrayQuery("categories").Contains(category)).
		Order("id DESC").Offset(offset).Limit(size).
		Find(&list).Error
	return list, err
}

// IsNotFound 便于 service 层判断
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate 唯一索引冲突
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
