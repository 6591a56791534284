package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"Reddit_Clone/internal/model"
)

var (
	ErrTypeMismatch  = errors.New("thing type mismatch")
	ErrStatusChanged = errors.New("thing status changed concurrently")
)

type ThingRepository struct {
	DB *gorm.DB
}

func (r *ThingRepository) Create(ctx context.Context, t *model.Thing) error {
	if t.Status == "" {
		t.Status = model.StatusNormal
	}
	return r.DB.WithContext(ctx).Create(t).Error
}

// FindByID 不存在返回 gorm.ErrRecordNotFound
func (r *ThingRepository) FindByID(ctx context.Context, id uint64) (*model.Thing, error) {
	var t model.Thing
	if err := r.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByIDAndAssertType 类型不符时返回包装了 ErrTypeMismatch 的错误
func (r *ThingRepository) FindByIDAndAssertType(ctx context.Context, id uint64, typ model.ThingType) (*model.Thing, error) {
	t, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Type != typ {
		return nil, fmt.Errorf("%w: requested a %s but the id belongs to a %s", ErrTypeMismatch, typ, t.Type)
	}
	return t, nil
}

// UpdateFields 部分更新并记录编辑时间，返回更新后的记录。
// 读取与更新之间的竞争按最后写入为准。
func (r *ThingRepository) UpdateFields(ctx context.Context, id uint64, patch model.ThingPatch) (*model.Thing, error) {
	updates := map[string]any{"edited_at": time.Now()}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Text != nil {
		updates["text"] = *patch.Text
	}
	if patch.FlairID != nil {
		if *patch.FlairID == "" {
			updates["flair_id"] = nil
		} else {
			updates["flair_id"] = *patch.FlairID
		}
	}
	res := r.DB.WithContext(ctx).Model(&model.Thing{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

// SetStatus 无条件写状态，工作流应使用 Transition
func (r *ThingRepository) SetStatus(ctx context.Context, id uint64, status model.ThingStatus) error {
	res := r.DB.WithContext(ctx).Model(&model.Thing{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Transition 条件更新 status，审计记录与 outbox 事件同一事务提交。
// 当前状态已不是 action.FromStatus 时返回 ErrStatusChanged。
func (r *ThingRepository) Transition(ctx context.Context, action *model.ModerationAction) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Thing{}).
			Where("id = ? AND status = ?", action.ThingID, action.FromStatus).
			Update("status", action.ToStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusChanged
		}
		if err := tx.Create(action).Error; err != nil {
			return err
		}
		return insertOutbox(tx, "thing."+string(action.Action), action.ThingID, map[string]any{
			"thing_id":     action.ThingID,
			"community_id": action.CommunityID,
			"moderator":    action.Moderator,
			"from":         action.FromStatus,
			"to":           action.ToStatus,
		})
	})
}

// Approve 记录版主审核通过，仅对 normal 状态生效
func (r *ThingRepository) Approve(ctx context.Context, action *model.ModerationAction) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&model.Thing{}).
			Where("id = ? AND status = ?", action.ThingID, model.StatusNormal).
			Updates(map[string]any{"approved_by": action.Moderator, "approved_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusChanged
		}
		return tx.Create(action).Error
	})
}

// SoftDelete 作者删除，deleted_at 由 gorm 维护
func (r *ThingRepository) SoftDelete(ctx context.Context, id uint64) error {
	res := r.DB.WithContext(ctx).Delete(&model.Thing{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPostsByCommunity 游标分页，cursor 为上一页最后一条 id
func (r *ThingRepository) ListPostsByCommunity(ctx context.Context, communityID, cursor uint64, limit int) ([]model.Thing, uint64, error) {
	q := r.DB.WithContext(ctx).
		Where("community_id = ? AND type = ? AND status = ?", communityID, model.ThingPost, model.StatusNormal)
	return cursorPage(q, cursor, limit)
}

// ListComments 帖子下的评论，按 id 倒序
func (r *ThingRepository) ListComments(ctx context.Context, postID, cursor uint64, limit int) ([]model.Thing, uint64, error) {
	q := r.DB.WithContext(ctx).
		Where("post_id = ? AND type = ? AND status = ?", postID, model.ThingComment, model.StatusNormal)
	return cursorPage(q, cursor, limit)
}

func cursorPage(q *gorm.DB, cursor uint64, limit int) ([]model.Thing, uint64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var rows []model.Thing
	// 这里limit+1是为了判断是否还有下一页
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

// ListByStatus 版主队列：spammed 等
func (r *ThingRepository) ListByStatus(ctx context.Context, communityID uint64, status model.ThingStatus, page, limit int) ([]model.Thing, error) {
	offset, size := normalizePage(page, limit)
	var list []model.Thing
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND status = ?", communityID, status).
		Order("id DESC").Offset(offset).Limit(size).Find(&list).Error
	return list, err
}

// ListUnmoderated 未被审核过的正常内容
func (r *ThingRepository) ListUnmoderated(ctx context.Context, communityID uint64, page, limit int) ([]model.Thing, error) {
	offset, size := normalizePage(page, limit)
	var list []model.Thing
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND status = ? AND approved_at IS NULL", communityID, model.StatusNormal).
		Order("id DESC").Offset(offset).Limit(size).Find(&list).Error
	return list, err
}

// ListEdited 被作者编辑过的正常内容
func (r *ThingRepository) ListEdited(ctx context.Context, communityID uint64, page, limit int) ([]model.Thing, error) {
	offset, size := normalizePage(page, limit)
	var list []model.Thing
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND status = ? AND edited_at IS NOT NULL", communityID, model.StatusNormal).
		Order("edited_at DESC, id DESC").Offset(offset).Limit(size).Find(&list).Error
	return list, err
}

func (r *ThingRepository) ModerationLog(ctx context.Context, thingID uint64) ([]model.ModerationAction, error) {
	var list []model.ModerationAction
	err := r.DB.WithContext(ctx).Where("thing_id = ?", thingID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *ThingRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.Thing, error) {
	var list []model.Thing
	if len(ids) == 0 {
		return list, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}
