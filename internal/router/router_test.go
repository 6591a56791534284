package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Reddit_Clone/internal/handler"
	"Reddit_Clone/internal/metrics"
	"Reddit_Clone/internal/pkg"
	"Reddit_Clone/internal/repository/mysql"
	redisrepo "Reddit_Clone/internal/repository/redis"
	"Reddit_Clone/internal/service"
	"Reddit_Clone/internal/testutil"
)

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	t      *testing.T
	engine *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb, err := redisrepo.NewClient(redisrepo.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, logger)
	jwt := pkg.NewJWTManager(pkg.JWTConfig{AccessSecret: "a", RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour})

	users := &mysql.UserRepository{DB: db}
	things := &mysql.ThingRepository{DB: db}
	communities := &mysql.CommunityRepository{DB: db}
	members := &mysql.CommunityMemberRepository{DB: db}

	userSvc := service.NewUserService(users, &redisrepo.SessionRepository{RDB: rdb, TTL: jwt.AccessTTL()}, jwt, logger)
	thingSvc := service.NewThingService(things, communities, members, users, logger)
	voteSvc := service.NewVoteService(&mysql.VoteRepository{DB: db}, redisrepo.NewScoreCache(rdb), &redisrepo.DistLock{RDB: rdb}, m, logger)
	moderationSvc := service.NewModerationService(things, communities, users, m, logger)
	communitySvc := service.NewCommunityService(communities, members, users, nil, nil, logger)

	engine := Setup(Config{
		Mode:        gin.TestMode,
		Logger:      logger,
		Metrics:     m,
		Gatherer:    reg,
		Auth:        userSvc,
		Users:       handler.NewUserHandler(userSvc, jwt, logger),
		Accounts:    handler.NewAccountHandler(service.NewAccountService(&mysql.PrefsRepository{DB: db}, &mysql.SavedPostRepository{DB: db}, things, logger), logger),
		Follows:     handler.NewFollowHandler(service.NewFollowService(&mysql.FollowRepository{DB: db}, users, logger), logger),
		Things:      handler.NewThingHandler(thingSvc, voteSvc, moderationSvc, logger),
		Communities: handler.NewCommunityHandler(communitySvc, thingSvc, moderationSvc, logger),
		Search:      handler.NewSearchHandler(service.NewSearchService(&mysql.SearchRepository{DB: db}, things, users, logger), logger),
	})
	return &server{t: t, engine: engine}
}

func (s *server) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *server) signup(username string) string {
	s.t.Helper()
	code, _ := s.do(http.MethodPost, "/api/user/register", "", gin.H{
		"username": username, "password": "password1", "email": username + "@example.com",
	})
	require.Equal(s.t, http.StatusCreated, code)

	code, env := s.do(http.MethodPost, "/api/user/login", "", gin.H{"username": username, "password": "password1"})
	require.Equal(s.t, http.StatusOK, code)
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &tokens))
	return tokens.AccessToken
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)

	code, env := s.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "fail", env.Status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	token := s.signup("alice")
	code, env = s.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"username":"alice"`)

	code, _ = s.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRegister_Duplicate(t *testing.T) {
	s := newServer(t)
	s.signup("alice")

	code, env := s.do(http.MethodPost, "/api/user/register", "", gin.H{
		"username": "alice", "password": "password1", "email": "other@example.com",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Code)
}

func TestPostVoteAndModerate(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob_b")

	code, env := s.do(http.MethodPost, "/api/subreddit", alice, gin.H{"name": "golang", "description": "gophers"})
	require.Equal(t, http.StatusCreated, code)
	var community struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &community))

	code, env = s.do(http.MethodPost, "/api/thing/post", alice, gin.H{"subredditId": community.ID, "title": "hello", "text": "world"})
	require.Equal(t, http.StatusCreated, code)
	var post struct {
		ID uint64 `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))
	thingPath := fmt.Sprintf("/api/thing/%d", post.ID)

	code, env = s.do(http.MethodPost, thingPath+"/upvote", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"changed":true`)
	assert.Contains(t, string(env.Data), `"previous":"none"`)
	assert.Contains(t, string(env.Data), `"current":"up"`)

	code, env = s.do(http.MethodGet, thingPath+"/score", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"score":1`)
	assert.Contains(t, string(env.Data), `"myVote":"up"`)

	code, env = s.do(http.MethodGet, thingPath+"/score", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"myVote":"none"`)

	// bob 不是版主
	code, env = s.do(http.MethodPost, thingPath+"/spam", bob, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	code, _ = s.do(http.MethodPost, thingPath+"/spam", alice, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/subreddit/%d/spammed", community.ID), alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), fmt.Sprintf(`"_id":%d`, post.ID))

	code, env = s.do(http.MethodPost, thingPath+"/unspam", alice, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(http.MethodPost, thingPath+"/unspam", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_SPAMMED", env.Code)
}

func TestThing_BadID(t *testing.T) {
	s := newServer(t)
	token := s.signup("alice")

	code, env := s.do(http.MethodGet, "/api/thing/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Code)

	code, env = s.do(http.MethodGet, "/api/thing/999", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestSubredditStaticRoutes(t *testing.T) {
	s := newServer(t)
	token := s.signup("alice")

	code, _ := s.do(http.MethodPost, "/api/subreddit", token, gin.H{"name": "golang"})
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(http.MethodGet, "/api/subreddit/r/golang/available", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"available":false`)

	code, env = s.do(http.MethodGet, "/api/subreddit/r/golang", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"isModerator":true`)

	code, env = s.do(http.MethodGet, "/api/subreddit/mine/moderated", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"name":"golang"`)
}

func TestSearch_RequiresQuery(t *testing.T) {
	s := newServer(t)
	token := s.signup("alice")

	code, _ := s.do(http.MethodGet, "/api/search/people", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.do(http.MethodGet, "/api/search/people?q=ali", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"username":"alice"`)
}

func TestFollowRoutes(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice")
	s.signup("bob_b")

	code, env := s.do(http.MethodPost, "/api/user/2/follow", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"changed":true`)

	code, env = s.do(http.MethodGet, "/api/user/2/relation", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"following":true`)

	code, env = s.do(http.MethodPost, "/api/user/1/follow", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Code)
}

func TestAccountRoutes(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice")

	code, env := s.do(http.MethodGet, "/api/user/available/alice", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"available":false`)
	code, env = s.do(http.MethodGet, "/api/user/available/newbie", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"available":true`)
	code, _ = s.do(http.MethodGet, "/api/user/available/x!", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, "/api/auth/prefs", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"suggestedSort":"hot"`)

	code, env = s.do(http.MethodPatch, "/api/auth/prefs", alice, gin.H{"displayName": "Alice", "suggestedSort": "top"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"displayName":"Alice"`)
	code, env = s.do(http.MethodPatch, "/api/auth/prefs", alice, gin.H{"gender": "robot"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Code)

	code, env = s.do(http.MethodPost, "/api/subreddit", alice, gin.H{"name": "golang"})
	require.Equal(t, http.StatusCreated, code)
	var community struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &community))
	code, env = s.do(http.MethodPost, "/api/thing/post", alice, gin.H{"subredditId": community.ID, "title": "keep me"})
	require.Equal(t, http.StatusCreated, code)
	var post struct {
		ID uint64 `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &post))

	code, _ = s.do(http.MethodPost, fmt.Sprintf("/api/thing/%d/save", post.ID), alice, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(http.MethodGet, "/api/auth/saved", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), fmt.Sprintf(`"_id":%d`, post.ID))

	code, _ = s.do(http.MethodPost, fmt.Sprintf("/api/thing/%d/unsave", post.ID), alice, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = s.do(http.MethodGet, "/api/auth/saved", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"items":[]`)
}

func TestCommunitySettingsRoutes(t *testing.T) {
	s := newServer(t)
	alice := s.signup("alice")
	bob := s.signup("bob_b")

	code, env := s.do(http.MethodPost, "/api/subreddit", alice, gin.H{"name": "strict"})
	require.Equal(t, http.StatusCreated, code)
	var community struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &community))
	subPath := fmt.Sprintf("/api/subreddit/%d", community.ID)

	code, _ = s.do(http.MethodPatch, subPath, alice, gin.H{
		"banPostTitleWords":     true,
		"postTitleBannedWords":  []string{"spoiler"},
		"welcomeMessageEnabled": true,
		"welcomeMessageText":    "be nice",
	})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodGet, subPath, bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"postTitleBannedWords":["spoiler"]`)

	code, env = s.do(http.MethodPost, subPath+"/join", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"welcomeMessage":"be nice"`)

	code, env = s.do(http.MethodPost, "/api/thing/post", bob, gin.H{"subredditId": community.ID, "title": "huge SPOILER"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ARGUMENT", env.Code)
}
