package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Reddit_Clone/internal/middleware"
	"Reddit_Clone/internal/pkg"
	"Reddit_Clone/internal/response"
	"Reddit_Clone/internal/service"
)

type UserHandler struct {
	svc    *service.UserService
	ttl    int64
	logger *zap.Logger
}

// RegisterReq 注册请求体
type RegisterReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

type ChangePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func NewUserHandler(svc *service.UserService, jwt *pkg.JWTManager, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		ttl:    int64(jwt.AccessTTL().Seconds()),
		logger: logger.Named("user_handler"),
	}
}

func (h *UserHandler) tokens(c *gin.Context, pair *pkg.Pair) {
	response.Data(c, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    h.ttl,
	})
}

// Register 注册接口
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	user, err := h.svc.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Created(c, user)
}

// Login 登录接口，username 也可以填邮箱
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	pair, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	h.tokens(c, pair)
}

func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.UserID(c)); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

// TokenRefresh 利用refresh来更新access
func (h *UserHandler) TokenRefresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	h.tokens(c, pair)
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, user)
}

// ChangePassword 修改后需要重新登录
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), middleware.UserID(c), req.OldPassword, req.NewPassword); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

// UsernameAvailable 注册前检查用户名
func (h *UserHandler) UsernameAvailable(c *gin.Context) {
	ok, err := h.svc.UsernameAvailable(c.Request.Context(), c.Param("username"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, gin.H{"available": ok})
}
