package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"Reddit_Clone/internal/metrics"
	"Reddit_Clone/internal/model"
	"Reddit_Clone/internal/repository/mysql"
	"Reddit_Clone/internal/response"
)

// 状态机：
//
//	normal  --spam-->    spammed   (spammed 上重复 spam 为成功的空操作)
//	spammed --unspam-->  normal    (其他状态返回 NOT_SPAMMED)
//	normal|spammed --remove--> removed (removed 上重复 remove 为空操作)
//	removed --restore--> normal    (其他状态返回 NOT_REMOVED)
//
// removed 只能经 restore 离开，spam 一个 removed 的内容返回 INVALID_TRANSITION。
var (
	errNotSpammed        = response.NewAppError(response.ErrCodeNotSpammed, "thing is not spammed", "")
	errNotRemoved        = response.NewAppError(response.ErrCodeNotRemoved, "thing is not removed", "")
	errSpamRemoved       = response.NewAppError(response.ErrCodeInvalidTransition, "removed things can only be restored", "")
	errApproveNotVisible = response.NewAppError(response.ErrCodeInvalidTransition, "only normal things can be approved", "")
)

// 并发修改时重新读取状态再判断一次
const maxTransitionAttempts = 2

type ModerationStore interface {
	FindByID(ctx context.Context, id uint64) (*model.Thing, error)
	Transition(ctx context.Context, action *model.ModerationAction) error
	Approve(ctx context.Context, action *model.ModerationAction) error
	ListByStatus(ctx context.Context, communityID uint64, status model.ThingStatus, page, limit int) ([]model.Thing, error)
	ListUnmoderated(ctx context.Context, communityID uint64, page, limit int) ([]model.Thing, error)
	ListEdited(ctx context.Context, communityID uint64, page, limit int) ([]model.Thing, error)
	ModerationLog(ctx context.Context, thingID uint64) ([]model.ModerationAction, error)
}

type ModerationService struct {
	things      ModerationStore
	communities ModeratorChecker
	users       UsernameResolver
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewModerationService(things ModerationStore, communities ModeratorChecker, users UsernameResolver, m *metrics.Metrics, logger *zap.Logger) *ModerationService {
	return &ModerationService{
		things:      things,
		communities: communities,
		users:       users,
		metrics:     m,
		logger:      logger.Named("moderation_service"),
	}
}

func (s *ModerationService) Spam(ctx context.Context, actingUserID, thingID uint64) error {
	return s.transition(ctx, actingUserID, thingID, model.ActionSpam, func(cur model.ThingStatus) (model.ThingStatus, error) {
		if cur == model.StatusRemoved {
			return cur, errSpamRemoved
		}
		return model.StatusSpammed, nil
	})
}

func (s *ModerationService) Unspam(ctx context.Context, actingUserID, thingID uint64) error {
	return s.transition(ctx, actingUserID, thingID, model.ActionUnspam, func(cur model.ThingStatus) (model.ThingStatus, error) {
		if cur != model.StatusSpammed {
			return cur, errNotSpammed
		}
		return model.StatusNormal, nil
	})
}

// Remove 即 disapprove
func (s *ModerationService) Remove(ctx context.Context, actingUserID, thingID uint64) error {
	return s.transition(ctx, actingUserID, thingID, model.ActionRemove, func(model.ThingStatus) (model.ThingStatus, error) {
		return model.StatusRemoved, nil
	})
}

func (s *ModerationService) Restore(ctx context.Context, actingUserID, thingID uint64) error {
	return s.transition(ctx, actingUserID, thingID, model.ActionRestore, func(cur model.ThingStatus) (model.ThingStatus, error) {
		if cur != model.StatusRemoved {
			return cur, errNotRemoved
		}
		return model.StatusNormal, nil
	})
}

// Approve 记录审核通过，状态不变
func (s *ModerationService) Approve(ctx context.Context, actingUserID, thingID uint64) error {
	thing, moderator, err := s.authorize(ctx, actingUserID, thingID)
	if err != nil {
		s.metrics.RecordModeration(string(model.ActionApprove), "denied")
		return err
	}
	if thing.Status != model.StatusNormal {
		s.metrics.RecordModeration(string(model.ActionApprove), "rejected")
		return errApproveNotVisible
	}
	err = s.things.Approve(ctx, &model.ModerationAction{
		ThingID:     thing.ID,
		CommunityID: thing.CommunityID,
		Moderator:   moderator,
		Action:      model.ActionApprove,
		FromStatus:  thing.Status,
		ToStatus:    thing.Status,
	})
	if errors.Is(err, mysql.ErrStatusChanged) {
		return errApproveNotVisible
	}
	if err != nil {
		return translate(err, "thing")
	}
	s.metrics.RecordModeration(string(model.ActionApprove), "ok")
	return nil
}

// authorize 依次：thing 存在 → 解析操作者用户名 → 是 thing 所在社区的版主
func (s *ModerationService) authorize(ctx context.Context, actingUserID, thingID uint64) (*model.Thing, string, error) {
	thing, err := s.things.FindByID(ctx, thingID)
	if err != nil {
		return nil, "", translate(err, "thing")
	}
	username, err := s.users.UsernameByID(ctx, actingUserID)
	if err != nil {
		if mysql.IsNotFound(err) {
			return nil, "", response.Unauthorized("unknown user")
		}
		return nil, "", translate(err, "user")
	}
	if err := requireModeratorOf(ctx, s.communities, thing.CommunityID, username); err != nil {
		return nil, "", err
	}
	return thing, username, nil
}

// transition next 根据当前状态给出目标状态，目标等于当前状态时是空操作
func (s *ModerationService) transition(ctx context.Context, actingUserID, thingID uint64, action model.ModerationActionType,
	next func(model.ThingStatus) (model.ThingStatus, error)) error {
	thing, moderator, err := s.authorize(ctx, actingUserID, thingID)
	if err != nil {
		s.metrics.RecordModeration(string(action), "denied")
		return err
	}

	for attempt := 1; ; attempt++ {
		to, err := next(thing.Status)
		if err != nil {
			s.metrics.RecordModeration(string(action), "rejected")
			return err
		}
		if to == thing.Status {
			s.metrics.RecordModeration(string(action), "noop")
			return nil
		}

		err = s.things.Transition(ctx, &model.ModerationAction{
			ThingID:     thing.ID,
			CommunityID: thing.CommunityID,
			Moderator:   moderator,
			Action:      action,
			FromStatus:  thing.Status,
			ToStatus:    to,
		})
		if err == nil {
			s.metrics.RecordModeration(string(action), "ok")
			s.logger.Info("thing moderated",
				zap.Uint64("thing_id", thing.ID),
				zap.String("action", string(action)),
				zap.String("moderator", moderator),
				zap.String("from", string(thing.Status)),
				zap.String("to", string(to)),
			)
			return nil
		}
		if !errors.Is(err, mysql.ErrStatusChanged) || attempt >= maxTransitionAttempts {
			s.metrics.RecordModeration(string(action), "error")
			return translate(err, "thing")
		}
		if thing, err = s.things.FindByID(ctx, thingID); err != nil {
			return translate(err, "thing")
		}
	}
}

// requireCommunityModerator 列表类接口只需要社区维度的权限
func (s *ModerationService) requireCommunityModerator(ctx context.Context, actingUserID, communityID uint64) error {
	username, err := s.users.UsernameByID(ctx, actingUserID)
	if err != nil {
		if mysql.IsNotFound(err) {
			return response.Unauthorized("unknown user")
		}
		return translate(err, "user")
	}
	return requireModeratorOf(ctx, s.communities, communityID, username)
}

func (s *ModerationService) ListSpammed(ctx context.Context, actingUserID, communityID uint64, page, limit int) ([]model.Thing, error) {
	if err := s.requireCommunityModerator(ctx, actingUserID, communityID); err != nil {
		return nil, err
	}
	list, err := s.things.ListByStatus(ctx, communityID, model.StatusSpammed, page, limit)
	if err != nil {
		return nil, response.Internal("list spammed", err)
	}
	return list, nil
}

func (s *ModerationService) ListUnmoderated(ctx context.Context, actingUserID, communityID uint64, page, limit int) ([]model.Thing, error) {
	if err := s.requireCommunityModerator(ctx, actingUserID, communityID); err != nil {
		return nil, err
	}
	list, err := s.things.ListUnmoderated(ctx, communityID, page, limit)
	if err != nil {
		return nil, response.Internal("list unmoderated", err)
	}
	return list, nil
}

func (s *ModerationService) ListEdited(ctx context.Context, actingUserID, communityID uint64, page, limit int) ([]model.Thing, error) {
	if err := s.requireCommunityModerator(ctx, actingUserID, communityID); err != nil {
		return nil, err
	}
	list, err := s.things.ListEdited(ctx, communityID, page, limit)
	if err != nil {
		return nil, response.Internal("list edited", err)
	}
	return list, nil
}

// History thing 的审核记录，仅版主可见
func (s *ModerationService) History(ctx context.Context, actingUserID, thingID uint64) ([]model.ModerationAction, error) {
	if _, _, err := s.authorize(ctx, actingUserID, thingID); err != nil {
		return nil, err
	}
	list, err := s.things.ModerationLog(ctx, thingID)
	if err != nil {
		return nil, response.Internal("moderation log", err)
	}
	return list, nil
}
