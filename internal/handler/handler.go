package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Reddit_Clone/internal/middleware"
	"Reddit_Clone/internal/response"
	"Reddit_Clone/internal/service"
)

const (
	defaultPage  = 1
	defaultLimit = 50
	maxLimit     = 100
)

// handleServiceError 业务错误原样返回，内部错误只记日志
func handleServiceError(c *gin.Context, logger *zap.Logger, err error) {
	code := response.CodeOf(err)
	status := response.HTTPStatus(code)
	msg := err.Error()
	if appErr, ok := asAppError(err); ok {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Uint64("user_id", middleware.UserID(c)),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	response.SendError(c, status, code, msg)
}

func asAppError(err error) (*response.AppError, bool) {
	var appErr *response.AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

func badRequest(c *gin.Context, msg string) {
	response.SendError(c, http.StatusBadRequest, response.ErrCodeInvalidArgument, msg)
}

func actorFrom(c *gin.Context) service.Actor {
	return service.Actor{ID: middleware.UserID(c), Username: middleware.Username(c)}
}

// paramID 解析路径里的数字 id，失败时已经写回 400
func paramID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (page, limit int) {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = defaultPage
	}
	limit, err = strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func cursorParams(c *gin.Context) (cursor uint64, limit int) {
	cursor, _ = strconv.ParseUint(c.Query("cursor"), 10, 64)
	_, limit = pageParams(c)
	return cursor, limit
}
