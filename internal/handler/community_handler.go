package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Reddit_Clone/internal/middleware"
	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/response"
	"Reddit_Clone/internal/service"
)

const maxIconSize = 5 << 20

type CommunityHandler struct {
	svc        *service.CommunityService
	things     *service.ThingService
	moderation *service.ModerationService
	logger     *zap.Logger
}

func NewCommunityHandler(svc *service.CommunityService, things *service.ThingService, moderation *service.ModerationService, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{
		svc:        svc,
		things:     things,
		moderation: moderation,
		logger:     logger.Named("community_handler"),
	}
}

type CommunityCreateReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type CommunityUpdateReq struct {
	Description *string `json:"description"`
	Type        *string `json:"type"`

	RequirePostFlair      *bool     `json:"requirePostFlair"`
	BanPostTitleWords     *bool     `json:"banPostTitleWords"`
	PostTitleBannedWords  *[]string `json:"postTitleBannedWords"`
	BanPostBodyWords      *bool     `json:"banPostBodyWords"`
	PostBodyBannedWords   *[]string `json:"postBodyBannedWords"`
	WelcomeMessageEnabled *bool     `json:"welcomeMessageEnabled"`
	WelcomeMessageText    *string   `json:"welcomeMessageText"`
}

type flairReq struct {
	Text            string `json:"text" binding:"required"`
	TextColor       string `json:"textColor"`
	BackgroundColor string `json:"backgroundColor"`
}

type ruleReq struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	AppliesTo   string `json:"appliesTo"`
}

type rulePatchReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AppliesTo   *string `json:"appliesTo"`
}

type categoriesReq struct {
	Categories []string `json:"categories" binding:"required"`
}

type askJoinReq struct {
	Message string `json:"message"`
}

type userListReq struct {
	Username string `json:"username"`
	Note     string `json:"note"`
}

func (h *CommunityHandler) Create(c *gin.Context) {
	var req CommunityCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	typ := model.CommunityType(req.Type)
	if typ == "" {
		typ = model.CommunityPublic
	}
	community, err := h.svc.Create(c.Request.Context(), actorFrom(c), service.CreateCommunityInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        typ,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Created(c, community)
}

func (h *CommunityHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.svc.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, view)
}

func (h *CommunityHandler) GetByName(c *gin.Context) {
	view, err := h.svc.GetByName(c.Request.Context(), actorFrom(c), c.Param("name"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, view)
}

func (h *CommunityHandler) NameAvailable(c *gin.Context) {
	available, err := h.svc.CheckNameAvailable(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, gin.H{"available": available})
}

func (h *CommunityHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CommunityUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	in := service.UpdateCommunityInput{
		Description:           req.Description,
		RequirePostFlair:      req.RequirePostFlair,
		BanPostTitleWords:     req.BanPostTitleWords,
		PostTitleBannedWords:  req.PostTitleBannedWords,
		BanPostBodyWords:      req.BanPostBodyWords,
		PostBodyBannedWords:   req.PostBodyBannedWords,
		WelcomeMessageEnabled: req.WelcomeMessageEnabled,
		WelcomeMessageText:    req.WelcomeMessageText,
	}
	if req.Type != nil {
		typ := model.CommunityType(*req.Type)
		in.Type = &typ
	}
	if err := h.svc.Update(c.Request.Context(), actorFrom(c), id, in); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *CommunityHandler) AddFlair(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req flairReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	flair, err := h.svc.AddFlair(c.Request.Context(), actorFrom(c), id, service.FlairInput{
		Text:            req.Text,
		TextColor:       req.TextColor,
		BackgroundColor: req.BackgroundColor,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Created(c, flair)
}

func (h *CommunityHandler) Flairs(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	flairs, err := h.svc.GetFlairList(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, flairs)
}

func (h *CommunityHandler) DeleteFlair(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteFlair(c.Request.Context(), actorFrom(c), id, c.Param("flairId")); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *CommunityHandler) AddRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ruleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	rule, err := h.svc.AddRule(c.Request.Context(), actorFrom(c), id, service.RuleInput{
		Title:       req.Title,
		Description: req.Description,
		AppliesTo:   req.AppliesTo,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Created(c, rule)
}

func (h *CommunityHandler) UpdateRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req rulePatchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	rule, err := h.svc.UpdateRule(c.Request.Context(), actorFrom(c), id, c.Param("ruleId"), service.RulePatch{
		Title:       req.Title,
		Description: req.Description,
		AppliesTo:   req.AppliesTo,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, rule)
}

func (h *CommunityHandler) DeleteRule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteRule(c.Request.Context(), actorFrom(c), id, c.Param("ruleId")); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

// AddModerator 现任版主任命新版主
func (h *CommunityHandler) AddModerator(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.AddModerator(c.Request.Context(), actorFrom(c), id, c.Param("username")); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *CommunityHandler) Moderators(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	mods, err := h.svc.ListModerators(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, mods)
}

func (h *CommunityHandler) Join(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	welcome, err := h.svc.Join(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	if welcome == "" {
		response.OK(c)
		return
	}
	response.Data(c, gin.H{"welcomeMessage": welcome})
}

func (h *CommunityHandler) Leave(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Leave(c.Request.Context(), actorFrom(c), id); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

// AskJoin 私有/受限社区申请加入，body 可为空
func (h *CommunityHandler) AskJoin(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req askJoinReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid params")
			return
		}
	}
	if err := h.svc.RequestJoin(c.Request.Context(), actorFrom(c), id, req.Message); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *CommunityHandler) JoinRequests(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	reqs, err := h.svc.ListJoinRequests(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, reqs)
}

func (h *CommunityHandler) AcceptJoin(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.AcceptJoin(c.Request.Context(), actorFrom(c), id, userID); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *CommunityHandler) AddCategories(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req categoriesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	cats, err := h.svc.AddCategories(c.Request.Context(), actorFrom(c), id, req.Categories)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, gin.H{"categories": cats})
}

func (h *CommunityHandler) ByCategory(c *gin.Context) {
	page, limit := pageParams(c)
	list, err := h.svc.ListByCategory(c.Request.Context(), c.Param("category"), page, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, list)
}

func listKind(c *gin.Context) (model.UserListKind, bool) {
	kind := model.UserListKind(strings.ToLower(c.Param("list")))
	if !kind.Valid() {
		badRequest(c, "unknown user list")
		return "", false
	}
	return kind, true
}

// AddUser username 可以在路径里，也可以在 body 里
func (h *CommunityHandler) AddUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	kind, ok := listKind(c)
	if !ok {
		return
	}
	var req userListReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid params")
			return
		}
	}
	if name := c.Param("username"); name != "" {
		req.Username = name
	}
	if req.Username == "" {
		badRequest(c, "username is required")
		return
	}
	if err := h.svc.AddUserToList(c.Request.Context(), actorFrom(c), id, kind, req.Username, req.Note); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *CommunityHandler) RemoveUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	kind, ok := listKind(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveUserFromList(c.Request.Context(), actorFrom(c), id, kind, c.Param("username")); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *CommunityHandler) Users(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	kind, ok := listKind(c)
	if !ok {
		return
	}
	list, err := h.svc.ListUsers(c.Request.Context(), actorFrom(c), id, kind)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, list)
}

func (h *CommunityHandler) Posts(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	cursor, limit := cursorParams(c)
	page, err := h.things.ListPosts(c.Request.Context(), id, cursor, limit)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, page)
}

type queueFunc func(ctx context.Context, actingUserID, communityID uint64, page, limit int) ([]model.Thing, error)

// queue 版主审核队列
func (h *CommunityHandler) queue(fn queueFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		page, limit := pageParams(c)
		list, err := fn(c.Request.Context(), middleware.UserID(c), id, page, limit)
		if err != nil {
			handleServiceError(c, h.logger, err)
			return
		}
		response.Data(c, list)
	}
}

func (h *CommunityHandler) Spammed() gin.HandlerFunc     { return h.queue(h.moderation.ListSpammed) }
func (h *CommunityHandler) Unmoderated() gin.HandlerFunc { return h.queue(h.moderation.ListUnmoderated) }
func (h *CommunityHandler) Edited() gin.HandlerFunc      { return h.queue(h.moderation.ListEdited) }

// UploadIcon multipart 字段名 icon
func (h *CommunityHandler) UploadIcon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxIconSize+1<<10)
	fh, err := c.FormFile("icon")
	if err != nil {
		badRequest(c, "icon file is required")
		return
	}
	if fh.Size > maxIconSize {
		badRequest(c, "icon is too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cannot read icon")
		return
	}
	defer f.Close()

	url, err := h.svc.UploadIcon(c.Request.Context(), actorFrom(c), id, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, gin.H{"icon": url})
}

func (h *CommunityHandler) RemoveIcon(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.RemoveIcon(c.Request.Context(), actorFrom(c), id); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.OK(c)
}

func (h *CommunityHandler) Joined(c *gin.Context) {
	list, err := h.svc.ListJoined(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, list)
}

func (h *CommunityHandler) Moderated(c *gin.Context) {
	list, err := h.svc.ListModerated(c.Request.Context(), middleware.Username(c))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	response.Data(c, list)
}
