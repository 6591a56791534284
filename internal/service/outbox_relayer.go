package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"Reddit_Clone/internal/metrics"
	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/pkg"
)

const (
	outboxMaxRetry  = 10
	outboxRetention = 7 * 24 * time.Hour
)

type OutboxStore interface {
	List(ctx context.Context, batchSize, maxRetry int) ([]model.OutboxEvent, error)
	RetryUpdate(ctx context.Context, id uint64) error
	SuccessUpdate(ctx context.Context, id uint64) error
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// Sender 投递一条 outbox 事件
type Sender func(ctx context.Context, ev *model.OutboxEvent) error

// KafkaSender 以 aggregate id 作为消息 key，同一 thing / 用户的事件有序
func KafkaSender(p *pkg.KafkaProducer) Sender {
	return func(ctx context.Context, ev *model.OutboxEvent) error {
		return p.Send(ctx, pkg.MakeKeyFromID(ev.AggregateID), ev.EventType, ev.Payload)
	}
}

// LogSender 没有配置 kafka 时使用，只打日志
func LogSender(logger *zap.Logger) Sender {
	return func(_ context.Context, ev *model.OutboxEvent) error {
		logger.Info("outbox event",
			zap.Uint64("id", ev.ID),
			zap.String("type", ev.EventType),
			zap.Uint64("aggregate_id", ev.AggregateID),
			zap.ByteString("payload", ev.Payload),
		)
		return nil
	}
}

type OutboxRelayer struct {
	repo      OutboxStore
	sender    Sender
	batchSize int
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewOutboxRelayer(repo OutboxStore, sender Sender, batchSize int, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *OutboxRelayer {
	if batchSize <= 0 {
		batchSize = 200
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelayer{
		repo:      repo,
		sender:    sender,
		batchSize: batchSize,
		interval:  interval,
		metrics:   m,
		logger:    logger.Named("outbox_relayer"),
	}
}

// Run 阻塞直到 ctx 取消
func (r *OutboxRelayer) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.DrainOnce(ctx)
		}
	}
}

// DrainOnce 投递一批，返回成功条数
func (r *OutboxRelayer) DrainOnce(ctx context.Context) int {
	rows, err := r.repo.List(ctx, r.batchSize, outboxMaxRetry)
	if err != nil {
		r.logger.Warn("outbox query failed", zap.Error(err))
		return 0
	}
	sent := 0
	for i := range rows {
		ev := rows[i]
		if err := r.sender(ctx, &ev); err != nil {
			r.metrics.RecordOutbox("failed")
			r.logger.Warn("outbox send failed", zap.Uint64("id", ev.ID), zap.Int("retry", ev.Retry), zap.Error(err))
			if err := r.repo.RetryUpdate(ctx, ev.ID); err != nil {
				r.logger.Error("outbox retry mark failed", zap.Uint64("id", ev.ID), zap.Error(err))
			}
			continue
		}
		if err := r.repo.SuccessUpdate(ctx, ev.ID); err != nil {
			// 下一轮会重复投递，消费端按 id 去重
			r.logger.Error("outbox success mark failed", zap.Uint64("id", ev.ID), zap.Error(err))
			continue
		}
		r.metrics.RecordOutbox("sent")
		sent++
	}
	return sent
}

// Purge 清理保留期之外已投递的事件
func (r *OutboxRelayer) Purge(ctx context.Context) (int, error) {
	n, err := r.repo.PurgeSent(ctx, time.Now().Add(-outboxRetention))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
