package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/testutil"
)

func TestPrefsRepository_Upsert(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &PrefsRepository{DB: db}
	ctx := context.Background()

	_, err := repo.Get(ctx, 1)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	p := model.DefaultPrefs(1)
	p.DisplayName = "first"
	require.NoError(t, repo.Save(ctx, p))

	p.DisplayName = "second"
	p.Whitelisted = append(p.Whitelisted, "bob")
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "second", got.DisplayName)
	assert.Equal(t, []string{"bob"}, []string(got.Whitelisted))

	var rows int64
	require.NoError(t, db.Model(&model.UserPrefs{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestSavedPostRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &SavedPostRepository{DB: db}
	ctx := context.Background()

	changed, err := repo.Save(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.Save(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, changed)
	for _, thing := range []uint64{11, 12} {
		_, err = repo.Save(ctx, 1, thing)
		require.NoError(t, err)
	}
	// 其他用户的收藏互不影响
	changed, err = repo.Save(ctx, 2, 10)
	require.NoError(t, err)
	assert.True(t, changed)

	list, next, err := repo.List(ctx, 1, 0, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(12), list[0].ThingID)
	assert.Equal(t, uint64(11), list[1].ThingID)

	list, next, err = repo.List(ctx, 1, next, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(10), list[0].ThingID)
	assert.Zero(t, next)

	changed, err = repo.Unsave(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.Unsave(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUserRepository_UsernameTaken(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &UserRepository{DB: db}
	ctx := context.Background()
	testutil.CreateUser(t, db, "alice")

	taken, err := repo.UsernameTaken(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, taken)

	// 只比较用户名
	taken, err = repo.UsernameTaken(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, taken)
}
