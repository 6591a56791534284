package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"Reddit_Clone/internal/handler"
	"Reddit_Clone/internal/metrics"
	"Reddit_Clone/internal/middleware"
)

type Config struct {
	Mode         string
	AllowOrigins []string

	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Auth     middleware.Authenticator
	// nil 表示不限流
	RateLimiter *middleware.RateLimiter

	Users       *handler.UserHandler
	Accounts    *handler.AccountHandler
	Follows     *handler.FollowHandler
	Things      *handler.ThingHandler
	Communities *handler.CommunityHandler
	Search      *handler.SearchHandler
}

func Setup(cfg Config) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowOrigins
	}

	r.Use(
		middleware.Recovery(cfg.Logger),
		middleware.Logger(cfg.Logger),
		middleware.Metrics(cfg.Metrics),
		cors.New(corsCfg),
	)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware())
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	auth := middleware.AuthMiddleware(cfg.Auth)
	user, account, follow := cfg.Users, cfg.Accounts, cfg.Follows
	thing, community, search := cfg.Things, cfg.Communities, cfg.Search

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", user.Register)
		userGroup.POST("/login", user.Login)
		userGroup.GET("/available/:username", user.UsernameAvailable)
	}

	// token相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", user.TokenRefresh)
	}

	// 登录态接口
	authGroup := r.Group("/api/auth", auth)
	{
		authGroup.POST("/logout", user.Logout)
		authGroup.GET("/me", user.Me)
		authGroup.POST("/change-password", user.ChangePassword)
		authGroup.GET("/prefs", account.Prefs)
		authGroup.PATCH("/prefs", account.UpdatePrefs)
		authGroup.GET("/saved", account.SavedPosts)
	}

	// 用户关系
	relationGroup := r.Group("/api/user/:id", auth)
	{
		relationGroup.POST("/follow", follow.Follow())
		relationGroup.POST("/unfollow", follow.Unfollow())
		relationGroup.POST("/block", follow.Block())
		relationGroup.POST("/unblock", follow.Unblock())
		relationGroup.GET("/followings", follow.ListFollowings)
		relationGroup.GET("/followers", follow.ListFollowers)
		relationGroup.GET("/relation", follow.Relation)
	}

	// 帖子与评论
	thingGroup := r.Group("/api/thing", auth)
	{
		thingGroup.POST("/post", thing.CreatePost)
		thingGroup.POST("/comment", thing.CreateComment)
		thingGroup.GET("/:id", thing.Get)
		thingGroup.PATCH("/:id", thing.Update)
		thingGroup.DELETE("/:id", thing.Delete)
		thingGroup.GET("/:id/comments", thing.Comments)

		thingGroup.POST("/:id/upvote", thing.Upvote())
		thingGroup.POST("/:id/downvote", thing.Downvote())
		thingGroup.POST("/:id/unvote", thing.Unvote())
		thingGroup.GET("/:id/score", thing.Score)

		thingGroup.POST("/:id/spam", thing.Spam())
		thingGroup.POST("/:id/unspam", thing.Unspam())
		thingGroup.POST("/:id/remove", thing.Remove())
		thingGroup.POST("/:id/restore", thing.Restore())
		thingGroup.POST("/:id/approve", thing.Approve())
		thingGroup.GET("/:id/history", thing.History)

		thingGroup.POST("/:id/save", account.SavePost)
		thingGroup.POST("/:id/unsave", account.UnsavePost)
	}

	// 社区相关接口
	sub := r.Group("/api/subreddit", auth)
	{
		sub.POST("", community.Create)
		sub.GET("/r/:name", community.GetByName)
		sub.GET("/r/:name/available", community.NameAvailable)
		sub.GET("/category/:category", community.ByCategory)
		sub.GET("/mine/joined", community.Joined)
		sub.GET("/mine/moderated", community.Moderated)

		sub.GET("/:id", community.Get)
		sub.PATCH("/:id", community.Update)

		sub.POST("/:id/flair", community.AddFlair)
		sub.GET("/:id/flair", community.Flairs)
		sub.DELETE("/:id/flair/:flairId", community.DeleteFlair)

		sub.POST("/:id/rule", community.AddRule)
		sub.PATCH("/:id/rule/:ruleId", community.UpdateRule)
		sub.DELETE("/:id/rule/:ruleId", community.DeleteRule)

		sub.POST("/:id/moderation/:username", community.AddModerator)
		sub.GET("/:id/moderators", community.Moderators)

		sub.POST("/:id/join", community.Join)
		sub.POST("/:id/leave", community.Leave)
		sub.POST("/:id/ask-join", community.AskJoin)
		sub.GET("/:id/join-requests", community.JoinRequests)
		sub.POST("/:id/accept-join/:userId", community.AcceptJoin)

		sub.POST("/:id/category", community.AddCategories)

		sub.GET("/:id/users/:list", community.Users)
		sub.POST("/:id/users/:list", community.AddUser)
		sub.POST("/:id/users/:list/:username", community.AddUser)
		sub.DELETE("/:id/users/:list/:username", community.RemoveUser)

		sub.GET("/:id/posts", community.Posts)
		sub.GET("/:id/spammed", community.Spammed())
		sub.GET("/:id/unmoderated", community.Unmoderated())
		sub.GET("/:id/edited", community.Edited())

		sub.POST("/:id/icon", community.UploadIcon)
		sub.DELETE("/:id/icon", community.RemoveIcon)
	}

	// 搜索
	searchGroup := r.Group("/api/search", auth)
	{
		searchGroup.GET("/people", search.People)
		searchGroup.GET("/communities", search.Communities)
		searchGroup.GET("/posts", search.Posts)
		searchGroup.GET("/comments", search.Comments)
		searchGroup.GET("/all", search.All)
	}

	return r
}
