package service

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/pkg"
	"Reddit_Clone/internal/repository/mysql"
	"Reddit_Clone/internal/response"
)

var iconContentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Actor 当前登录用户，来自 JWT
type Actor struct {
	ID       uint64
	Username string
}

type CommunityStore interface {
	Create(ctx context.Context, c *model.Community, creatorUsername string) error
	FindByID(ctx context.Context, id uint64) (*model.Community, error)
	FindByName(ctx context.Context, name string) (*model.Community, error)
	NameTaken(ctx context.Context, name string) (bool, error)
	Update(ctx context.Context, id uint64, updates map[string]any) error
	SetIcon(ctx context.Context, id uint64, icon string) error
	IsModerator(ctx context.Context, communityID uint64, username string) (bool, error)
	Moderators(ctx context.Context, communityID uint64) ([]model.CommunityModerator, error)
	AddModerator(ctx context.Context, communityID uint64, username string) error
	ListModeratedBy(ctx context.Context, username string) ([]model.Community, error)
	Flairs(ctx context.Context, communityID uint64) ([]model.Flair, error)
	AddFlair(ctx context.Context, f *model.Flair) error
	DeleteFlair(ctx context.Context, communityID uint64, flairID string) error
	AddRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, communityID uint64, ruleID string) error
	UpdateRule(ctx context.Context, communityID uint64, ruleID string, updates map[string]any) (*model.Rule, error)
	AddCategories(ctx context.Context, communityID uint64, categories []string) ([]string, error)
	ListByCategory(ctx context.Context, category string, page, limit int) ([]model.Community, error)
}

type MemberStore interface {
	Join(ctx context.Context, communityID, userID uint64) (bool, error)
	Leave(ctx context.Context, communityID, userID uint64) (bool, error)
	IsMember(ctx context.Context, communityID, userID uint64) (bool, error)
	ListJoined(ctx context.Context, userID uint64) ([]model.Community, error)
	RequestJoin(ctx context.Context, communityID, userID uint64, message string) (bool, error)
	JoinRequests(ctx context.Context, communityID uint64) ([]model.JoinRequest, error)
	AcceptJoin(ctx context.Context, communityID, userID uint64, moderator string) error
	AddUserEntry(ctx context.Context, e *model.CommunityUserEntry) error
	RemoveUserEntry(ctx context.Context, communityID uint64, kind model.UserListKind, username string) error
	UserEntries(ctx context.Context, communityID uint64, kind model.UserListKind) ([]model.CommunityUserEntry, error)
	IsListed(ctx context.Context, communityID uint64, kind model.UserListKind, username string) (bool, error)
}

type UserLookup interface {
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// Notifier 入群通过等通知，失败不影响主流程
type Notifier interface {
	JoinAccepted(ctx context.Context, user *model.User, community *model.Community) error
}

// IconStore 社区图标的对象存储
type IconStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) string
}

type CommunityService struct {
	repo     CommunityStore
	members  MemberStore
	users    UserLookup
	notifier Notifier
	icons    IconStore
	logger   *zap.Logger
}

// NewCommunityService notifier 与 icons 可以为 nil
func NewCommunityService(repo CommunityStore, members MemberStore, users UserLookup, notifier Notifier, icons IconStore, logger *zap.Logger) *CommunityService {
	return &CommunityService{
		repo:     repo,
		members:  members,
		users:    users,
		notifier: notifier,
		icons:    icons,
		logger:   logger.Named("community_service"),
	}
}

type CreateCommunityInput struct {
	Name        string
	Description string
	Type        model.CommunityType
}

type UpdateCommunityInput struct {
	Description *string
	Type        *model.CommunityType

	RequirePostFlair      *bool
	BanPostTitleWords     *bool
	PostTitleBannedWords  *[]string
	BanPostBodyWords      *bool
	PostBodyBannedWords   *[]string
	WelcomeMessageEnabled *bool
	WelcomeMessageText    *string
}

const maxBannedWords = 200

type FlairInput struct {
	Text            string
	TextColor       string
	BackgroundColor string
}

type RuleInput struct {
	Title       string
	Description string
	AppliesTo   string
}

type RulePatch struct {
	Title       *string
	Description *string
	AppliesTo   *string
}

// CommunityView 带上调用者视角的标记
type CommunityView struct {
	*model.Community
	Joined      bool `json:"joined"`
	IsModerator bool `json:"isModerator"`
}

// normalizeWords 去空白、转小写、去重
func normalizeWords(words []string) (datatypes.JSONSlice[string], error) {
	if len(words) > maxBannedWords {
		return nil, response.InvalidArgument("too many banned words")
	}
	out := make(datatypes.JSONSlice[string], 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out, nil
}

func validAppliesTo(s string) bool {
	return s == "posts" || s == "comments" || s == "both"
}

func (s *CommunityService) Create(ctx context.Context, actor Actor, in CreateCommunityInput) (*model.Community, error) {
	name := strings.TrimSpace(in.Name)
	if validate.Var(name, communityNameRules) != nil {
		return nil, response.InvalidArgument("community name must be 3-21 letters, digits or underscores")
	}
	if in.Type == "" {
		in.Type = model.CommunityPublic
	}
	if !in.Type.Valid() {
		return nil, response.InvalidArgument("invalid community type")
	}
	taken, err := s.repo.NameTaken(ctx, name)
	if err != nil {
		return nil, response.Internal("check community name", err)
	}
	if taken {
		return nil, response.Conflict("community name is already taken")
	}

	c := &model.Community{
		Name:        name,
		Description: pkg.SanitizePlain(in.Description),
		Type:        in.Type,
		CreatorID:   actor.ID,
	}
	if err := s.repo.Create(ctx, c, actor.Username); err != nil {
		return nil, translate(err, "community")
	}
	s.logger.Info("community created", zap.Uint64("community_id", c.ID), zap.String("name", name), zap.String("creator", actor.Username))
	return c, nil
}

func (s *CommunityService) view(ctx context.Context, actor Actor, c *model.Community) (*CommunityView, error) {
	v := &CommunityView{Community: c, IsModerator: RequireModerator(c, actor.Username) == nil}
	if actor.ID != 0 {
		joined, err := s.members.IsMember(ctx, c.ID, actor.ID)
		if err != nil {
			return nil, response.Internal("check membership", err)
		}
		v.Joined = joined
	}
	return v, nil
}

func (s *CommunityService) Get(ctx context.Context, actor Actor, id uint64) (*CommunityView, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "community")
	}
	return s.view(ctx, actor, c)
}

func (s *CommunityService) GetByName(ctx context.Context, actor Actor, name string) (*CommunityView, error) {
	c, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, translate(err, "community")
	}
	return s.view(ctx, actor, c)
}

func (s *CommunityService) CheckNameAvailable(ctx context.Context, name string) (bool, error) {
	taken, err := s.repo.NameTaken(ctx, name)
	if err != nil {
		return false, response.Internal("check community name", err)
	}
	return !taken, nil
}

// moderated 加载社区并校验 actor 是版主
func (s *CommunityService) moderated(ctx context.Context, actor Actor, id uint64) (*model.Community, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "community")
	}
	if err := RequireModerator(c, actor.Username); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CommunityService) Update(ctx context.Context, actor Actor, id uint64, in UpdateCommunityInput) error {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return err
	}
	updates := map[string]any{}
	if in.Description != nil {
		updates["description"] = pkg.SanitizePlain(*in.Description)
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return response.InvalidArgument("invalid community type")
		}
		updates["type"] = *in.Type
	}
	if in.RequirePostFlair != nil {
		updates["require_post_flair"] = *in.RequirePostFlair
	}
	if in.BanPostTitleWords != nil {
		updates["ban_post_title_words"] = *in.BanPostTitleWords
	}
	if in.PostTitleBannedWords != nil {
		words, err := normalizeWords(*in.PostTitleBannedWords)
		if err != nil {
			return err
		}
		updates["post_title_banned_words"] = words
	}
	if in.BanPostBodyWords != nil {
		updates["ban_post_body_words"] = *in.BanPostBodyWords
	}
	if in.PostBodyBannedWords != nil {
		words, err := normalizeWords(*in.PostBodyBannedWords)
		if err != nil {
			return err
		}
		updates["post_body_banned_words"] = words
	}
	if in.WelcomeMessageEnabled != nil {
		updates["welcome_message_enabled"] = *in.WelcomeMessageEnabled
	}
	if in.WelcomeMessageText != nil {
		updates["welcome_message_text"] = pkg.SanitizePlain(*in.WelcomeMessageText)
	}
	if len(updates) == 0 {
		return response.InvalidArgument("nothing to update")
	}
	return translate(s.repo.Update(ctx, id, updates), "community")
}

func (s *CommunityService) IsModerator(ctx context.Context, id uint64, username string) (bool, error) {
	ok, err := s.repo.IsModerator(ctx, id, username)
	if err != nil {
		return false, response.Internal("check moderator", err)
	}
	return ok, nil
}

func (s *CommunityService) GetFlairList(ctx context.Context, id uint64) ([]model.Flair, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "community")
	}
	return c.Flairs, nil
}

func (s *CommunityService) ListModerators(ctx context.Context, id uint64) ([]model.CommunityModerator, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "community")
	}
	return c.Moderators, nil
}

// AddModerator 被添加的用户必须存在，已是版主返回 Conflict
func (s *CommunityService) AddModerator(ctx context.Context, actor Actor, id uint64, username string) error {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return err
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return translate(err, "user")
	}
	if err := s.repo.AddModerator(ctx, id, user.Username); err != nil {
		if mysql.IsDuplicate(err) {
			return response.Conflict("user is already a moderator")
		}
		return translate(err, "moderator")
	}
	return nil
}

func (s *CommunityService) AddFlair(ctx context.Context, actor Actor, id uint64, in FlairInput) (*model.Flair, error) {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return nil, err
	}
	text := pkg.SanitizePlain(in.Text)
	if text == "" {
		return nil, response.InvalidArgument("flair text is required")
	}
	f := &model.Flair{
		ID:              uuid.NewString(),
		CommunityID:     id,
		Text:            text,
		TextColor:       pkg.SanitizePlain(in.TextColor),
		BackgroundColor: pkg.SanitizePlain(in.BackgroundColor),
	}
	if err := s.repo.AddFlair(ctx, f); err != nil {
		return nil, translate(err, "flair")
	}
	return f, nil
}

func (s *CommunityService) DeleteFlair(ctx context.Context, actor Actor, id uint64, flairID string) error {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return err
	}
	return translate(s.repo.DeleteFlair(ctx, id, flairID), "flair")
}

func (s *CommunityService) AddRule(ctx context.Context, actor Actor, id uint64, in RuleInput) (*model.Rule, error) {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return nil, err
	}
	title := pkg.SanitizePlain(in.Title)
	if title == "" {
		return nil, response.InvalidArgument("rule title is required")
	}
	if in.AppliesTo == "" {
		in.AppliesTo = "both"
	}
	if !validAppliesTo(in.AppliesTo) {
		return nil, response.InvalidArgument("appliesTo must be posts, comments or both")
	}
	rule := &model.Rule{
		ID:          uuid.NewString(),
		CommunityID: id,
		Title:       title,
		Description: pkg.SanitizeRich(in.Description),
		AppliesTo:   in.AppliesTo,
	}
	if err := s.repo.AddRule(ctx, rule); err != nil {
		return nil, translate(err, "rule")
	}
	return rule, nil
}

func (s *CommunityService) DeleteRule(ctx context.Context, actor Actor, id uint64, ruleID string) error {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return err
	}
	return translate(s.repo.DeleteRule(ctx, id, ruleID), "rule")
}

func (s *CommunityService) UpdateRule(ctx context.Context, actor Actor, id uint64, ruleID string, in RulePatch) (*model.Rule, error) {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.Title != nil {
		title := pkg.SanitizePlain(*in.Title)
		if title == "" {
			return nil, response.InvalidArgument("rule title is required")
		}
		updates["title"] = title
	}
	if in.Description != nil {
		updates["description"] = pkg.SanitizeRich(*in.Description)
	}
	if in.AppliesTo != nil {
		if !validAppliesTo(*in.AppliesTo) {
			return nil, response.InvalidArgument("appliesTo must be posts, comments or both")
		}
		updates["applies_to"] = *in.AppliesTo
	}
	rule, err := s.repo.UpdateRule(ctx, id, ruleID, updates)
	if err != nil {
		return nil, translate(err, "rule")
	}
	return rule, nil
}

// Join 只有公开社区可以直接加入，返回社区开启的欢迎语
func (s *CommunityService) Join(ctx context.Context, actor Actor, id uint64) (string, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", translate(err, "community")
	}
	if c.Type != model.CommunityPublic {
		return "", response.InvalidArgument("this community requires a join request")
	}
	if err := s.notBanned(ctx, id, actor.Username); err != nil {
		return "", err
	}
	changed, err := s.members.Join(ctx, id, actor.ID)
	if err != nil {
		return "", response.Internal("join community", err)
	}
	if !changed {
		return "", response.InvalidArgument("you already joined this community")
	}
	return c.WelcomeMessage(), nil
}

func (s *CommunityService) Leave(ctx context.Context, actor Actor, id uint64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return translate(err, "community")
	}
	changed, err := s.members.Leave(ctx, id, actor.ID)
	if err != nil {
		return response.Internal("leave community", err)
	}
	if !changed {
		return response.InvalidArgument("you are not a member of this community")
	}
	return nil
}

func (s *CommunityService) notBanned(ctx context.Context, id uint64, username string) error {
	banned, err := s.members.IsListed(ctx, id, model.ListBanned, username)
	if err != nil {
		return response.Internal("check ban list", err)
	}
	if banned {
		return response.Unauthorized("you are banned from this community")
	}
	return nil
}

// RequestJoin 集合语义，重复申请视为成功
func (s *CommunityService) RequestJoin(ctx context.Context, actor Actor, id uint64, message string) error {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return translate(err, "community")
	}
	if c.Type == model.CommunityPublic {
		return response.InvalidArgument("public communities can be joined directly")
	}
	if err := s.notBanned(ctx, id, actor.Username); err != nil {
		return err
	}
	joined, err := s.members.IsMember(ctx, id, actor.ID)
	if err != nil {
		return response.Internal("check membership", err)
	}
	if joined {
		return response.InvalidArgument("you already joined this community")
	}
	if _, err := s.members.RequestJoin(ctx, id, actor.ID, pkg.SanitizePlain(message)); err != nil {
		return response.Internal("request join", err)
	}
	return nil
}

func (s *CommunityService) ListJoinRequests(ctx context.Context, actor Actor, id uint64) ([]model.JoinRequest, error) {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return nil, err
	}
	list, err := s.members.JoinRequests(ctx, id)
	if err != nil {
		return nil, response.Internal("list join requests", err)
	}
	return list, nil
}

// AcceptJoin 用户没有申请过返回 InvalidArgument；通知邮件尽力发送
func (s *CommunityService) AcceptJoin(ctx context.Context, actor Actor, id, userID uint64) error {
	c, err := s.moderated(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.members.AcceptJoin(ctx, id, userID, actor.Username); err != nil {
		return translate(err, "join request")
	}
	s.logger.Info("join accepted", zap.Uint64("community_id", id), zap.Uint64("user_id", userID), zap.String("moderator", actor.Username))

	if s.notifier == nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("load accepted user failed", zap.Uint64("user_id", userID), zap.Error(err))
		return nil
	}
	if err := s.notifier.JoinAccepted(ctx, user, c); err != nil {
		s.logger.Warn("join accepted notification failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *CommunityService) AddCategories(ctx context.Context, actor Actor, id uint64, categories []string) ([]string, error) {
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return nil, err
	}
	cleaned := make([]string, 0, len(categories))
	for _, cat := range categories {
		if cat = strings.ToLower(pkg.SanitizePlain(cat)); cat != "" {
			cleaned = append(cleaned, cat)
		}
	}
	if len(cleaned) == 0 {
		return nil, response.InvalidArgument("categories are required")
	}
	out, err := s.repo.AddCategories(ctx, id, cleaned)
	if err != nil {
		return nil, translate(err, "community")
	}
	return out, nil
}

func (s *CommunityService) ListByCategory(ctx context.Context, category string, page, limit int) ([]model.Community, error) {
	list, err := s.repo.ListByCategory(ctx, strings.ToLower(strings.TrimSpace(category)), page, limit)
	if err != nil {
		return nil, response.Internal("list by category", err)
	}
	return list, nil
}

func (s *CommunityService) ListJoined(ctx context.Context, userID uint64) ([]model.Community, error) {
	list, err := s.members.ListJoined(ctx, userID)
	if err != nil {
		return nil, response.Internal("list joined", err)
	}
	return list, nil
}

func (s *CommunityService) ListModerated(ctx context.Context, username string) ([]model.Community, error) {
	list, err := s.repo.ListModeratedBy(ctx, username)
	if err != nil {
		return nil, response.Internal("list moderated", err)
	}
	return list, nil
}

// AddUserToList banned / muted / approved 名单；封禁时顺带移出成员
func (s *CommunityService) AddUserToList(ctx context.Context, actor Actor, id uint64, kind model.UserListKind, username, note string) error {
	if !kind.Valid() {
		return response.InvalidArgument("unknown user list")
	}
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return err
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return translate(err, "user")
	}
	err = s.members.AddUserEntry(ctx, &model.CommunityUserEntry{
		CommunityID: id,
		Kind:        kind,
		Username:    user.Username,
		Note:        pkg.SanitizePlain(note),
	})
	if mysql.IsDuplicate(err) {
		return response.InvalidArgument("user is already in the " + string(kind) + " list")
	}
	if err != nil {
		return response.Internal("add user entry", err)
	}
	if kind == model.ListBanned {
		if _, err := s.members.Leave(ctx, id, user.ID); err != nil {
			s.logger.Warn("remove banned member failed", zap.Uint64("community_id", id), zap.Uint64("user_id", user.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *CommunityService) RemoveUserFromList(ctx context.Context, actor Actor, id uint64, kind model.UserListKind, username string) error {
	if !kind.Valid() {
		return response.InvalidArgument("unknown user list")
	}
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return err
	}
	return translate(s.members.RemoveUserEntry(ctx, id, kind, username), "user entry")
}

func (s *CommunityService) ListUsers(ctx context.Context, actor Actor, id uint64, kind model.UserListKind) ([]model.CommunityUserEntry, error) {
	if !kind.Valid() {
		return nil, response.InvalidArgument("unknown user list")
	}
	if _, err := s.moderated(ctx, actor, id); err != nil {
		return nil, err
	}
	list, err := s.members.UserEntries(ctx, id, kind)
	if err != nil {
		return nil, response.Internal("list user entries", err)
	}
	return list, nil
}

// UploadIcon 上传新图标后再删旧图标
func (s *CommunityService) UploadIcon(ctx context.Context, actor Actor, id uint64, filename, contentType string, body io.Reader) (string, error) {
	if s.icons == nil {
		return "", response.Internal("icon storage is not configured", nil)
	}
	if !iconContentTypes[contentType] {
		return "", response.InvalidArgument("icon must be a png, jpeg, gif or webp image")
	}
	c, err := s.moderated(ctx, actor, id)
	if err != nil {
		return "", err
	}
	url, err := s.icons.Upload(ctx, pkg.IconKey(id, filename), body, contentType)
	if err != nil {
		return "", response.Internal("upload icon", err)
	}
	if err := s.repo.SetIcon(ctx, id, url); err != nil {
		return "", response.Internal("save icon", err)
	}
	if c.Icon != "" {
		if err := s.icons.Delete(ctx, s.icons.KeyFromURL(c.Icon)); err != nil {
			s.logger.Warn("delete old icon failed", zap.String("icon", c.Icon), zap.Error(err))
		}
	}
	return url, nil
}

func (s *CommunityService) RemoveIcon(ctx context.Context, actor Actor, id uint64) error {
	c, err := s.moderated(ctx, actor, id)
	if err != nil {
		return err
	}
	if c.Icon == "" {
		return response.NotFound("community has no icon")
	}
	if s.icons != nil {
		if err := s.icons.Delete(ctx, s.icons.KeyFromURL(c.Icon)); err != nil {
			return response.Internal("delete icon", err)
		}
	}
	return translate(s.repo.SetIcon(ctx, id, ""), "community")
}
