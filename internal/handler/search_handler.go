package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Reddit_Clone/internal/response"
	"Reddit_Clone/internal/service"
)

type SearchHandler struct {
	svc    *service.SearchService
	logger *zap.Logger
}

func NewSearchHandler(svc *service.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{svc: svc, logger: logger.Named("search_handler")}
}

func query(c *gin.Context) (string, bool) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "q is required")
		return "", false
	}
	return q, true
}

func (h *SearchHandler) People(c *gin.Context) {
	q, ok := query(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	list, err := h.svc.People(c.Request.Context(), q, page, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, list)
}

// Communities ?prefix=true 只匹配名称前缀
func (h *SearchHandler) Communities(c *gin.Context) {
	q, ok := query(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	list, err := h.svc.Communities(c.Request.Context(), q, c.Query("prefix") == "true", page, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, list)
}

func (h *SearchHandler) Posts(c *gin.Context) {
	q, ok := query(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	list, err := h.svc.Posts(c.Request.Context(), q, page, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, list)
}

func (h *SearchHandler) Comments(c *gin.Context) {
	q, ok := query(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	list, err := h.svc.Comments(c.Request.Context(), q, page, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, list)
}

func (h *SearchHandler) All(c *gin.Context) {
	q, ok := query(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	res, err := h.svc.All(c.Request.Context(), q, page, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, res)
}
