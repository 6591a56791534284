package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Reddit_Clone/internal/middleware"
	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/repository/mysql"
	"Reddit_Clone/internal/response"
	"Reddit_Clone/internal/service"
)

type ThingHandler struct {
	things     *service.ThingService
	votes      *service.VoteService
	moderation *service.ModerationService
	logger     *zap.Logger
}

func NewThingHandler(things *service.ThingService, votes *service.VoteService, moderation *service.ModerationService, logger *zap.Logger) *ThingHandler {
	return &ThingHandler{
		things:     things,
		votes:      votes,
		moderation: moderation,
		logger:     logger.Named("thing_handler"),
	}
}

type createPostReq struct {
	SubredditID uint64  `json:"subredditId" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Text        string  `json:"text"`
	FlairID     *string `json:"flairId"`
}

type createCommentReq struct {
	PostID   uint64  `json:"postId" binding:"required"`
	ParentID *uint64 `json:"parentId"`
	Text     string  `json:"text" binding:"required"`
}

type updateThingReq struct {
	Title   *string `json:"title"`
	Text    *string `json:"text"`
	FlairID *string `json:"flairId"`
}

// CreatePost 发帖
func (h *ThingHandler) CreatePost(c *gin.Context) {
	var req createPostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	post, err := h.things.CreatePost(c.Request.Context(), middleware.UserID(c), service.CreatePostInput{
		CommunityID: req.SubredditID,
		Title:       req.Title,
		Text:        req.Text,
		FlairID:     req.FlairID,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Created(c, post)
}

// CreateComment 评论帖子或回复评论
func (h *ThingHandler) CreateComment(c *gin.Context) {
	var req createCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	comment, err := h.things.CreateComment(c.Request.Context(), middleware.UserID(c), service.CreateCommentInput{
		PostID:   req.PostID,
		ParentID: req.ParentID,
		Text:     req.Text,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Created(c, comment)
}

// Get ?type=Post|Comment 时校验类型
func (h *ThingHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := h.things.Get(c.Request.Context(), id, model.ThingType(c.Query("type")))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, t)
}

func (h *ThingHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateThingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	t, err := h.things.Update(c.Request.Context(), middleware.UserID(c), id, model.ThingPatch{
		Title:   req.Title,
		Text:    req.Text,
		FlairID: req.FlairID,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, t)
}

func (h *ThingHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.things.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

// Comments 帖子下的评论，按 id 游标分页
func (h *ThingHandler) Comments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cursor, limit := cursorParams(c)
	page, err := h.things.ListComments(c.Request.Context(), id, cursor, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, page)
}

type voteFunc func(ctx context.Context, thingID, userID uint64) (mysql.VoteResult, error)

func (h *ThingHandler) vote(fn voteFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		res, err := fn(c.Request.Context(), id, middleware.UserID(c))
		if err != nil {
			handleServiceError(c, h.logger, err)
			return
		}
		response.Data(c, gin.H{
			"previous": res.Previous,
			"current":  res.Current,
			"changed":  res.Changed(),
		})
	}
}

func (h *ThingHandler) Upvote() gin.HandlerFunc   { return h.vote(h.votes.Upvote) }
func (h *ThingHandler) Downvote() gin.HandlerFunc { return h.vote(h.votes.Downvote) }
func (h *ThingHandler) Unvote() gin.HandlerFunc   { return h.vote(h.votes.Unvote) }

func (h *ThingHandler) Score(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	score, err := h.votes.Score(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	data := gin.H{"id": id, "score": score}
	if uid := middleware.UserID(c); uid != 0 {
		dir, err := h.votes.MyVote(c.Request.Context(), id, uid)
		if err != nil {
			handleServiceError(c, h.logger, err)
			return
		}
		data["myVote"] = dir
	}
	response.Data(c, data)
}

type moderateFunc func(ctx context.Context, actingUserID, thingID uint64) error

func (h *ThingHandler) moderate(fn moderateFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := fn(c.Request.Context(), middleware.UserID(c), id); err != nil {
			handleServiceError(c, h.logger, err)
			return
		}
		response.OK(c)
	}
}

func (h *ThingHandler) Spam() gin.HandlerFunc    { return h.moderate(h.moderation.Spam) }
func (h *ThingHandler) Unspam() gin.HandlerFunc  { return h.moderate(h.moderation.Unspam) }
func (h *ThingHandler) Remove() gin.HandlerFunc  { return h.moderate(h.moderation.Remove) }
func (h *ThingHandler) Restore() gin.HandlerFunc { return h.moderate(h.moderation.Restore) }
func (h *ThingHandler) Approve() gin.HandlerFunc { return h.moderate(h.moderation.Approve) }

// History 审核记录，只对版主可见
func (h *ThingHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	actions, err := h.moderation.History(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, actions)
}
