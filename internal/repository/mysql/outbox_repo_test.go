package mysql

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/testutil"
)

func TestOutboxRepository_Lifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &OutboxRepository{DB: db}
	ctx := context.Background()

	require.NoError(t, insertOutbox(db, "vote", 7, map[string]any{"delta": 1}))
	require.NoError(t, insertOutbox(db, "vote", 8, nil))

	list, err := repo.List(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, list, 2)

	var body map[string]any
	require.NoError(t, json.Unmarshal(list[0].Payload, &body))
	assert.Equal(t, "vote", body["event"])
	assert.EqualValues(t, 1, body["delta"])
	assert.NotEmpty(t, body["event_time"])

	require.NoError(t, repo.SuccessUpdate(ctx, list[0].ID))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RetryUpdate(ctx, list[1].ID))
	}

	// 一条已发送，一条超过重试次数
	list, err = repo.List(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := repo.PurgeSent(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var left int64
	require.NoError(t, db.Model(&model.OutboxEvent{}).Count(&left).Error)
	assert.Equal(t, int64(1), left)
}
