package mysql

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/testutil"
)

func createCommunity(t *testing.T, repo *CommunityRepository, name string, creator *model.User) *model.Community {
	t.Helper()
	c := &model.Community{Name: name, Description: "about " + name, Type: model.CommunityPublic, CreatorID: creator.ID}
	require.NoError(t, repo.Create(context.Background(), c, creator.Username))
	return c
}

func TestCommunityRepository_CreateSeedsModeratorAndMember(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &CommunityRepository{DB: db}
	members := &CommunityMemberRepository{DB: db}
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	c := createCommunity(t, repo, "golang", alice)

	got, err := repo.FindByName(ctx, "golang")
	require.NoError(t, err)
	require.Len(t, got.Moderators, 1)
	assert.Equal(t, "alice", got.Moderators[0].Username)
	assert.Equal(t, 0, got.Moderators[0].Position)

	ok, err := members.IsMember(ctx, c.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// 重名
	err = repo.Create(ctx, &model.Community{Name: "golang", Type: model.CommunityPublic, CreatorID: alice.ID}, "alice")
	assert.True(t, IsDuplicate(err))
}

func TestCommunityRepository_Moderators(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &CommunityRepository{DB: db}
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	c := createCommunity(t, repo, "rust", alice)

	require.NoError(t, repo.AddModerator(ctx, c.ID, "bob"))
	require.NoError(t, repo.AddModerator(ctx, c.ID, "carol"))
	assert.True(t, IsDuplicate(repo.AddModerator(ctx, c.ID, "bob")))

	mods, err := repo.Moderators(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, mods, 3)
	assert.Equal(t, []string{"alice", "bob", "carol"}, []string{mods[0].Username, mods[1].Username, mods[2].Username})

	ok, err := repo.IsModerator(ctx, c.ID, "carol")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IsModerator(ctx, c.ID, "dave")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := repo.ListModeratedBy(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "rust", list[0].Name)
}

func TestCommunityRepository_FlairsAndRules(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &CommunityRepository{DB: db}
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	c := createCommunity(t, repo, "news", alice)
	other := createCommunity(t, repo, "olds", alice)

	flair := &model.Flair{ID: uuid.NewString(), CommunityID: c.ID, Text: "Breaking", TextColor: "#fff", BackgroundColor: "#f00"}
	require.NoError(t, repo.AddFlair(ctx, flair))

	flairs, err := repo.Flairs(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, flairs, 1)

	// 别的社区删不掉
	assert.True(t, IsNotFound(repo.DeleteFlair(ctx, other.ID, flair.ID)))
	require.NoError(t, repo.DeleteFlair(ctx, c.ID, flair.ID))
	assert.True(t, IsNotFound(repo.DeleteFlair(ctx, c.ID, flair.ID)))

	r1 := &model.Rule{ID: uuid.NewString(), CommunityID: c.ID, Title: "be nice", AppliesTo: "both"}
	r2 := &model.Rule{ID: uuid.NewString(), CommunityID: c.ID, Title: "no spam", AppliesTo: "posts"}
	require.NoError(t, repo.AddRule(ctx, r1))
	require.NoError(t, repo.AddRule(ctx, r2))
	assert.Equal(t, 0, r1.Position)
	assert.Equal(t, 1, r2.Position)

	updated, err := repo.UpdateRule(ctx, c.ID, r2.ID, map[string]any{"description": "really"})
	require.NoError(t, err)
	assert.Equal(t, "really", updated.Description)
	assert.Equal(t, "no spam", updated.Title)

	_, err = repo.UpdateRule(ctx, other.ID, r2.ID, map[string]any{"title": "x"})
	assert.True(t, IsNotFound(err))

	require.NoError(t, repo.DeleteRule(ctx, c.ID, r1.ID))
	rules, err := repo.Rules(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, r2.ID, rules[0].ID)
}

func TestCommunityRepository_Categories(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &CommunityRepository{DB: db}
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	c := createCommunity(t, repo, "cats", alice)
	createCommunity(t, repo, "dogs", alice)

	cats, err := repo.AddCategories(ctx, c.ID, []string{"animals", "cute"})
	require.NoError(t, err)
	assert.Equal(t, []string{"animals", "cute"}, cats)

	cats, err = repo.AddCategories(ctx, c.ID, []string{"cute", "pets", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"animals", "cute", "pets"}, cats)

	got, err := repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"animals", "cute", "pets"}, []string(got.Categories))
}

func TestCommunityMemberRepository_JoinFlow(t *testing.T) {
	db := testutil.NewDB(t)
	repo := &CommunityRepository{DB: db}
	members := &CommunityMemberRepository{DB: db}
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	c := createCommunity(t, repo, "private", alice)

	changed, err := members.RequestJoin(ctx, c.ID, bob.ID, "let me in")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = members.RequestJoin(ctx, c.ID, bob.ID, "again")
	require.NoError(t, err)
	assert.False(t, changed)

	reqs, err := members.JoinRequests(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "let me in", reqs[0].Message)

	require.NoError(t, members.AcceptJoin(ctx, c.ID, bob.ID, "alice"))
	ok, err := members.IsMember(ctx, c.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// 申请已被消费
	assert.ErrorIs(t, members.AcceptJoin(ctx, c.ID, bob.ID, "alice"), ErrJoinNotRequested)

	left, err := members.Leave(ctx, c.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, left)
	left, err = members.Leave(ctx, c.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, left)

	joined, err := members.Join(ctx, c.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, joined)
	joined, err = members.Join(ctx, c.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, joined)

	list, err := members.ListJoined(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestCommunityMemberRepository_UserLists(t *testing.T) {
	db := testutil.NewDB(t)
	members := &CommunityMemberRepository{DB: db}
	ctx := context.Background()

	require.NoError(t, members.AddUserEntry(ctx, &model.CommunityUserEntry{CommunityID: 1, Kind: model.ListBanned, Username: "troll", Note: "rude"}))
	err := members.AddUserEntry(ctx, &model.CommunityUserEntry{CommunityID: 1, Kind: model.ListBanned, Username: "troll"})
	assert.True(t, IsDuplicate(err))
	// 不同名单互不影响
	require.NoError(t, members.AddUserEntry(ctx, &model.CommunityUserEntry{CommunityID: 1, Kind: model.ListMuted, Username: "troll"}))

	banned, err := members.IsListed(ctx, 1, model.ListBanned, "troll")
	require.NoError(t, err)
	assert.True(t, banned)

	entries, err := members.UserEntries(ctx, 1, model.ListBanned)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rude", entries[0].Note)

	require.NoError(t, members.RemoveUserEntry(ctx, 1, model.ListBanned, "troll"))
	assert.True(t, IsNotFound(members.RemoveUserEntry(ctx, 1, model.ListBanned, "troll")))

	banned, err = members.IsListed(ctx, 1, model.ListBanned, "troll")
	require.NoError(t, err)
	assert.False(t, banned)
}
