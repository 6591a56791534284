package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"Reddit_Clone/internal/response"
)

const (
	usernameRules = "required,min=3,max=20,username"
	emailRules    = "required,email,max=255"

	communityNameRules = "required,min=3,max=21,communityname"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息里用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", charset("_-"))
	_ = v.RegisterValidation("communityname", charset("_"))
	return v
}

// charset 字母数字之外只放行 extra 里的字符
func charset(extra string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune(extra, r))
		}) < 0
	}
}

func validUsername(username string) bool {
	return validate.Var(username, usernameRules) == nil
}

// checkUsername 返回的是可以直接给客户端的错误
func checkUsername(username string) error {
	if !validUsername(username) {
		return response.InvalidArgument("username must be 3-20 letters, digits, '_' or '-'")
	}
	return nil
}

func checkEmail(email string) error {
	if validate.Var(email, emailRules) != nil {
		return response.InvalidArgument("invalid email")
	}
	return nil
}
