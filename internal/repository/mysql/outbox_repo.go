package mysql

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"Reddit_Clone/internal/model"
)

type OutboxRepository struct {
	DB *gorm.DB
}

// insertOutbox 必须传入事务 tx，与业务写入一起提交
func insertOutbox(tx *gorm.DB, event string, aggregateID uint64, fields map[string]any) error {
	body := map[string]any{
		"event":      event,
		"event_time": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tx.Create(&model.OutboxEvent{
		EventType:   event,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      model.OutboxPending,
	}).Error
}

// List 待投递事件，失败的也会重新捞出来，超过 maxRetry 的不再投递
func (r *OutboxRepository) List(ctx context.Context, batchSize, maxRetry int) ([]model.OutboxEvent, error) {
	var list []model.OutboxEvent
	if err := r.DB.WithContext(ctx).
		Where("status IN ? AND retry < ?", []int8{model.OutboxPending, model.OutboxFailed}, maxRetry).
		Order("id ASC").
		Limit(batchSize).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// RetryUpdate outbox记录消息失败重试
func (r *OutboxRepository) RetryUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id=?", id).
		Updates(map[string]any{"status": model.OutboxFailed, "retry": gorm.Expr("retry + 1")}).Error
}

// SuccessUpdate outbox成功记录消息更新
func (r *OutboxRepository) SuccessUpdate(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id=?", id).
		Update("status", model.OutboxSent).Error
}

// PurgeSent 清理已投递且早于 before 的事件
func (r *OutboxRepository) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.OutboxSent, before).
		Delete(&model.OutboxEvent{})
	return res.RowsAffected, res.Error
}
