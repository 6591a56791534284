package service

import (
	"context"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/pkg"
)

// EmailService 通过 SMTP 发送社区通知
type EmailService struct {
	emailCfg pkg.SMTPConfig
	send     func(cfg pkg.SMTPConfig, to, subject, htmlBody string) error
}

func NewEmailService(cfg pkg.SMTPConfig) *EmailService {
	return &EmailService{emailCfg: cfg, send: pkg.SendEmail}
}

// JoinAccepted 未配置 SMTP 或用户没有邮箱时静默跳过
func (s *EmailService) JoinAccepted(ctx context.Context, user *model.User, community *model.Community) error {
	if !s.emailCfg.Enabled() || user.Email == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	html := pkg.JoinAcceptedHTML(user.Username, community.Name)
	return s.send(s.emailCfg, user.Email, "Your join request to r/"+community.Name+" was accepted", html)
}
