package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Reddit_Clone/internal/middleware"
	"Reddit_Clone/internal/response"
	"Reddit_Clone/internal/service"
)

type AccountHandler struct {
	svc    *service.AccountService
	logger *zap.Logger
}

func NewAccountHandler(svc *service.AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{svc: svc, logger: logger.Named("account_handler")}
}

func (h *AccountHandler) Prefs(c *gin.Context) {
	p, err := h.svc.Prefs(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, p)
}

func (h *AccountHandler) UpdatePrefs(c *gin.Context) {
	var patch service.PrefsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid params")
		return
	}
	p, err := h.svc.UpdatePrefs(c.Request.Context(), middleware.UserID(c), patch)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, p)
}

func (h *AccountHandler) SavePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.SavePost(c.Request.Context(), middleware.UserID(c), id); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *AccountHandler) UnsavePost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.UnsavePost(c.Request.Context(), middleware.UserID(c), id); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *AccountHandler) SavedPosts(c *gin.Context) {
	cursor, limit := cursorParams(c)
	page, err := h.svc.SavedPosts(c.Request.Context(), middleware.UserID(c), cursor, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, page)
}
