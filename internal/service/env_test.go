package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Reddit_Clone/internal/metrics"
	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/repository/mysql"
	"Reddit_Clone/internal/response"
	"Reddit_Clone/internal/testutil"
)

// testEnv 所有服务共用一个 sqlite 库
type testEnv struct {
	db      *gorm.DB
	metrics *metrics.Metrics

	things      *mysql.ThingRepository
	votes       *mysql.VoteRepository
	communities *mysql.CommunityRepository
	members     *mysql.CommunityMemberRepository
	users       *mysql.UserRepository

	thing      *ThingService
	moderation *ModerationService
	vote       *VoteService
	community  *CommunityService
	search     *SearchService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zap.NewNop()
	m := metrics.NewWithRegistry(prometheus.NewRegistry(), logger)

	e := &testEnv{
		db:          db,
		metrics:     m,
		things:      &mysql.ThingRepository{DB: db},
		votes:       &mysql.VoteRepository{DB: db},
		communities: &mysql.CommunityRepository{DB: db},
		members:     &mysql.CommunityMemberRepository{DB: db},
		users:       &mysql.UserRepository{DB: db},
	}
	e.thing = NewThingService(e.things, e.communities, e.members, e.users, logger)
	e.moderation = NewModerationService(e.things, e.communities, e.users, m, logger)
	e.vote = NewVoteService(e.votes, nil, nil, m, logger)
	e.community = NewCommunityService(e.communities, e.members, e.users, nil, nil, logger)
	e.search = NewSearchService(&mysql.SearchRepository{DB: db}, e.things, e.users, logger)
	return e
}

func (e *testEnv) actor(t *testing.T, username string) Actor {
	t.Helper()
	u := testutil.CreateUser(t, e.db, username)
	return Actor{ID: u.ID, Username: u.Username}
}

func (e *testEnv) createCommunity(t *testing.T, owner Actor, name string, typ model.CommunityType) *model.Community {
	t.Helper()
	c, err := e.community.Create(context.Background(), owner, CreateCommunityInput{Name: name, Description: "about " + name, Type: typ})
	require.NoError(t, err)
	return c
}

func (e *testEnv) createPost(t *testing.T, author Actor, communityID uint64, title string) *model.Thing {
	t.Helper()
	p, err := e.thing.CreatePost(context.Background(), author.ID, CreatePostInput{CommunityID: communityID, Title: title, Text: "body of " + title})
	require.NoError(t, err)
	return p
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, response.CodeOf(err), "error: %v", err)
}
