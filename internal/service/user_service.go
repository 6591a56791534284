package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/pkg"
	"Reddit_Clone/internal/repository/mysql"
	redisrepo "Reddit_Clone/internal/repository/redis"
	"Reddit_Clone/internal/response"
)

const minPasswordLen = 8

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	UpdatePassword(ctx context.Context, userID uint64, hash string) error
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

// SessionStore 每个用户一个有效 access token
type SessionStore interface {
	Save(ctx context.Context, userID uint64, token string) error
	Get(ctx context.Context, userID uint64) (string, error)
	Delete(ctx context.Context, userID uint64) error
}

type UserService struct {
	repo     UserStore
	sessions SessionStore
	jwt      *pkg.JWTManager
	logger   *zap.Logger
}

func NewUserService(repo UserStore, sessions SessionStore, jwt *pkg.JWTManager, logger *zap.Logger) *UserService {
	return &UserService{
		repo:     repo,
		sessions: sessions,
		jwt:      jwt,
		logger:   logger.Named("user_service"),
	}
}

func (s *UserService) Register(ctx context.Context, username, password, email string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, response.InvalidArgument("password must be at least 8 characters")
	}
	email = strings.TrimSpace(email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, response.Internal("hash password", err)
	}
	user := &model.User{
		Username: username,
		Password: string(hash),
		Email:    email,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if mysql.IsDuplicate(err) {
			return nil, response.Conflict("username or email already registered")
		}
		return nil, response.Internal("create user", err)
	}
	s.logger.Info("user registered", zap.Uint64("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// UsernameAvailable 格式不合法直接返回 InvalidArgument
func (s *UserService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if err := checkUsername(username); err != nil {
		return false, err
	}
	taken, err := s.repo.UsernameTaken(ctx, username)
	if err != nil {
		return false, response.Internal("check username", err)
	}
	return !taken, nil
}

// Login 用户名或邮箱登录，access token 写入 redis 作为当前会话
func (s *UserService) Login(ctx context.Context, username, password string) (*pkg.Pair, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, response.Unauthorized("invalid username or password")
		}
		return nil, response.Internal("load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, response.Unauthorized("invalid username or password")
	}
	return s.issue(ctx, user.ID, user.Username)
}

func (s *UserService) issue(ctx context.Context, userID uint64, username string) (*pkg.Pair, error) {
	pair, err := s.jwt.GeneratePair(userID, username)
	if err != nil {
		return nil, response.Internal("sign token", err)
	}
	if err := s.sessions.Save(ctx, userID, pair.AccessToken); err != nil {
		return nil, response.Internal("save session", err)
	}
	return pair, nil
}

// Logout 幂等
func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return response.Internal("delete session", err)
	}
	return nil
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	pair, claims, err := s.jwt.Refresh(refreshToken)
	if err != nil {
		if errors.Is(err, pkg.ErrRefreshExpired) {
			return nil, response.Unauthorized("refresh token expired")
		}
		return nil, response.Unauthorized("invalid refresh token")
	}
	// 用户可能已被删除
	if _, err := s.repo.FindByID(ctx, claims.UserID); err != nil {
		if mysql.IsNotFound(err) {
			return nil, response.Unauthorized("user no longer exists")
		}
		return nil, response.Internal("load user", err)
	}
	if err := s.sessions.Save(ctx, claims.UserID, pair.AccessToken); err != nil {
		return nil, response.Internal("save session", err)
	}
	return pair, nil
}

// Authenticate access token 必须是 redis 中记录的当前会话，重新登录后旧 token 失效
func (s *UserService) Authenticate(ctx context.Context, token string) (*pkg.Claims, error) {
	claims, err := s.jwt.ParseAccess(token)
	if err != nil {
		if errors.Is(err, pkg.ErrTokenExpired) {
			return nil, response.Unauthorized("token expired")
		}
		return nil, response.Unauthorized("invalid token")
	}
	stored, err := s.sessions.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, redisrepo.ErrTokenNotFound) {
			return nil, response.Unauthorized("session expired, please login again")
		}
		return nil, response.Internal("load session", err)
	}
	if stored != token {
		return nil, response.Unauthorized("token has been replaced by a newer login")
	}
	return claims, nil
}

func (s *UserService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

// ChangePassword 修改成功后强制重新登录
func (s *UserService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return response.InvalidArgument("password must be at least 8 characters")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return translate(err, "user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return response.Unauthorized("old password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return response.Internal("hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return response.Internal("update password", err)
	}
	return s.Logout(ctx, userID)
}
