package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Reddit_Clone/internal/middleware"
	"Reddit_Clone/internal/response"
	"Reddit_Clone/internal/service"
)

type FollowHandler struct {
	svc    *service.FollowService
	logger *zap.Logger
}

func NewFollowHandler(svc *service.FollowService, logger *zap.Logger) *FollowHandler {
	return &FollowHandler{svc: svc, logger: logger.Named("follow_handler")}
}

type relationFunc func(ctx context.Context, from, to uint64) (bool, error)

// relation follow/unfollow/block/unblock 共用，changed=false 表示状态本来就是这样
func (h *FollowHandler) relation(fn relationFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, ok := paramID(c, "id")
		if !ok {
			return
		}
		changed, err := fn(c.Request.Context(), middleware.UserID(c), target)
		if err != nil {
			handleServiceError(c, h.logger, err)
			return
		}
		response.Data(c, gin.H{"changed": changed})
	}
}

func (h *FollowHandler) Follow() gin.HandlerFunc   { return h.relation(h.svc.Follow) }
func (h *FollowHandler) Unfollow() gin.HandlerFunc { return h.relation(h.svc.Unfollow) }
func (h *FollowHandler) Block() gin.HandlerFunc    { return h.relation(h.svc.Block) }
func (h *FollowHandler) Unblock() gin.HandlerFunc  { return h.relation(h.svc.Unblock) }

// ListFollowings 获取关注列表
func (h *FollowHandler) ListFollowings(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	cursor, limit := cursorParams(c)
	page, err := h.svc.ListFollowings(c.Request.Context(), userID, cursor, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, page)
}

// ListFollowers 获取粉丝列表
func (h *FollowHandler) ListFollowers(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	cursor, limit := cursorParams(c)
	page, err := h.svc.ListFollowers(c.Request.Context(), userID, cursor, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, page)
}

// Relation 当前用户是否关注了 :id
func (h *FollowHandler) Relation(c *gin.Context) {
	target, ok := paramID(c, "id")
	if !ok {
		return
	}
	following, err := h.svc.IsFollowing(c.Request.Context(), middleware.UserID(c), target)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, gin.H{"following": following})
}
