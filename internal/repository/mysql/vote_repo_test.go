package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/testutil"
)

func TestVoteRepository_ApplyTransitions(t *testing.T) {
	db := testutil.NewDB(t)
	things := &ThingRepository{DB: db}
	votes := &VoteRepository{DB: db}
	ctx := context.Background()

	post := newPost(t, things, 1, 1, "vote me")

	cases := []struct {
		name     string
		dir      model.VoteDirection
		delta    int64
		expected int64
	}{
		{"upvote", model.VoteUp, 1, 1},
		{"upvote again is idempotent", model.VoteUp, 0, 1},
		{"switch to downvote", model.VoteDown, -2, -1},
		{"unvote", model.VoteNone, 1, 0},
		{"unvote without vote", model.VoteNone, 0, 0},
	}
	for _, tc := range cases {
		res, err := votes.Apply(ctx, 42, post.ID, tc.dir)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.delta, res.Delta, tc.name)

		score, err := votes.Score(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, score, tc.name)
	}

	dir, err := votes.Direction(ctx, 42, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VoteNone, dir)
}

func TestVoteRepository_ScoreMatchesLedger(t *testing.T) {
	db := testutil.NewDB(t)
	things := &ThingRepository{DB: db}
	votes := &VoteRepository{DB: db}
	ctx := context.Background()

	post := newPost(t, things, 1, 1, "p")
	for uid := uint64(1); uid <= 5; uid++ {
		_, err := votes.Apply(ctx, uid, post.ID, model.VoteUp)
		require.NoError(t, err)
	}
	_, err := votes.Apply(ctx, 6, post.ID, model.VoteDown)
	require.NoError(t, err)

	rec := &ScoreReconcilerRepo{DB: db}
	real, err := rec.RealScores(ctx, []uint64{post.ID})
	require.NoError(t, err)

	score, err := votes.Score(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), score)
	assert.Equal(t, score, real[post.ID])

	var events int64
	require.NoError(t, db.Model(&model.OutboxEvent{}).Where("event_type = ?", "vote").Count(&events).Error)
	assert.Equal(t, int64(6), events)
}

func TestVoteRepository_RemovedThingRejectsVotes(t *testing.T) {
	db := testutil.NewDB(t)
	things := &ThingRepository{DB: db}
	votes := &VoteRepository{DB: db}
	ctx := context.Background()

	post := newPost(t, things, 1, 1, "p")
	require.NoError(t, things.SetStatus(ctx, post.ID, model.StatusRemoved))

	_, err := votes.Apply(ctx, 1, post.ID, model.VoteUp)
	assert.ErrorIs(t, err, ErrThingRemoved)

	_, err = votes.Apply(ctx, 1, 98765, model.VoteUp)
	assert.True(t, IsNotFound(err))
}

func TestScoreReconcilerRepo_FixDrift(t *testing.T) {
	db := testutil.NewDB(t)
	things := &ThingRepository{DB: db}
	votes := &VoteRepository{DB: db}
	rec := &ScoreReconcilerRepo{DB: db}
	ctx := context.Background()

	a := newPost(t, things, 1, 1, "a")
	b := newPost(t, things, 1, 1, "b")
	_, err := votes.Apply(ctx, 1, a.ID, model.VoteUp)
	require.NoError(t, err)

	// 人为制造偏差
	require.NoError(t, db.Model(&model.Thing{}).Where("id = ?", b.ID).UpdateColumn("vote_score", 10).Error)

	list, last, err := rec.ReconcileList(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, last)

	real, err := rec.RealScores(ctx, []uint64{a.ID, b.ID})
	require.NoError(t, err)
	for _, p := range list {
		if real[p.ID] != p.VoteScore {
			ok, err := rec.FixScore(ctx, p.ID, p.VoteScore)
			require.NoError(t, err)
			assert.True(t, ok)
		}
	}

	score, err := votes.Score(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, score)

	list, _, err = rec.ReconcileList(ctx, 10, last)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScoreReconcilerRepo_FixSkipsWhenScoreMoved(t *testing.T) {
	db := testutil.NewDB(t)
	things := &ThingRepository{DB: db}
	votes := &VoteRepository{DB: db}
	rec := &ScoreReconcilerRepo{DB: db}
	ctx := context.Background()

	p := newPost(t, things, 1, 1, "p")
	require.NoError(t, db.Model(&model.Thing{}).Where("id = ?", p.ID).UpdateColumn("vote_score", 5).Error)

	// 对账读到 5 之后，有一票提交
	_, err := votes.Apply(ctx, 2, p.ID, model.VoteUp)
	require.NoError(t, err)

	ok, err := rec.FixScore(ctx, p.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	score, err := votes.Score(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), score)

	ok, err = rec.FixScore(ctx, p.ID, 6)
	require.NoError(t, err)
	assert.True(t, ok)
	score, err = votes.Score(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), score)
}
