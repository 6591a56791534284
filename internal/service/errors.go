package service

import (
	"errors"

	"gorm.io/gorm"

	"Reddit_Clone/internal/repository/mysql"
	"Reddit_Clone/internal/response"
)

// translate 仓储错误转成 AppError，what 用于拼接提示信息
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *response.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return response.NotFound(what + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return response.Conflict(what + " already exists")
	case errors.Is(err, mysql.ErrTypeMismatch):
		return response.InvalidArgument(err.Error())
	case errors.Is(err, mysql.ErrThingRemoved):
		return response.InvalidArgument(what + " has been removed")
	case errors.Is(err, mysql.ErrJoinNotRequested):
		return response.InvalidArgument("user didn't send request to join")
	case errors.Is(err, mysql.ErrStatusChanged), errors.Is(err, mysql.ErrRetryable):
		return response.Conflict(what + " was modified concurrently, please retry")
	default:
		return response.Internal(what, err)
	}
}
