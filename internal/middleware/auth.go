package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Reddit_Clone/internal/pkg"
	"Reddit_Clone/internal/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
)

// Authenticator 校验 access token 并确认是当前会话
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*pkg.Claims, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, "invalid authorization format")
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			code := response.CodeOf(err)
			response.SendError(c, response.HTTPStatus(code), code, messageOf(err))
			return
		}

		// 注入 user_id 与 username
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

func messageOf(err error) string {
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "unauthorized"
}

// UserID 由 AuthMiddleware 写入
func UserID(c *gin.Context) uint64 {
	return c.GetUint64(ContextUserIDKey)
}

func Username(c *gin.Context) string {
	return c.GetString(ContextUsernameKey)
}
