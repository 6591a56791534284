package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Reddit_Clone/internal/model"
)

var ErrJoinNotRequested = errors.New("user didn't send request to join")

type CommunityMemberRepository struct {
	DB *gorm.DB
}

// Join 幂等插入：若已存在 (community_id, user_id) 则不报错，changed 表示是否新加入
func (r *CommunityMemberRepository) Join(ctx context.Context, communityID, userID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&model.CommunityMember{CommunityID: communityID, UserID: userID})
	return res.RowsAffected > 0, res.Error
}

// Leave changed=false 表示本来就没加入
func (r *CommunityMemberRepository) Leave(ctx context.Context, communityID, userID uint64) (bool, error) {
	res := r.DB.WithContext(ctx).Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&model.CommunityMember{})
	return res.RowsAffected > 0, res.Error
}

func (r *CommunityMemberRepository) IsMember(ctx context.Context, communityID, userID uint64) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListJoined 用户加入的社区
func (r *CommunityMemberRepository) ListJoined(ctx context.Context, userID uint64) ([]model.Community, error) {
	var list []model.Community
	err := r.DB.WithContext(ctx).
		Joins("JOIN community_members m ON m.community_id = communities.id").
		Where("m.user_id = ?", userID).
		Order("communities.id DESC").
		Find(&list).Error
	return list, err
}

// RequestJoin 集合语义，重复申请是 no-op
func (r *CommunityMemberRepository) RequestJoin(ctx context.Context, communityID, userID uint64, message string) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&model.JoinRequest{CommunityID: communityID, UserID: userID, Message: message})
	return res.RowsAffected > 0, res.Error
}

func (r *CommunityMemberRepository) JoinRequests(ctx context.Context, communityID uint64) ([]model.JoinRequest, error) {
	var list []model.JoinRequest
	err := r.DB.WithContext(ctx).Where("community_id = ?", communityID).Order("id ASC").Find(&list).Error
	return list, err
}

// AcceptJoin 从申请列表移除并建立成员关系，同一事务。
// 用户不在申请列表中时返回 ErrJoinNotRequested。
func (r *CommunityMemberRepository) AcceptJoin(ctx context.Context, communityID, userID uint64, moderator string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("community_id = ? AND user_id = ?", communityID, userID).Delete(&model.JoinRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJoinNotRequested
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&model.CommunityMember{CommunityID: communityID, UserID: userID}).Error; err != nil {
			return err
		}
		return insertOutbox(tx, "community.join_accepted", communityID, map[string]any{
			"community_id": communityID,
			"user_id":      userID,
			"moderator":    moderator,
		})
	})
}

// AddUserEntry 已在名单中时返回 gorm.ErrDuplicatedKey
func (r *CommunityMemberRepository) AddUserEntry(ctx context.Context, e *model.CommunityUserEntry) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *CommunityMemberRepository) RemoveUserEntry(ctx context.Context, communityID uint64, kind model.UserListKind, username string) error {
	res := r.DB.WithContext(ctx).
		Where("community_id = ? AND kind = ? AND username = ?", communityID, kind, username).
		Delete(&model.CommunityUserEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *CommunityMemberRepository) UserEntries(ctx context.Context, communityID uint64, kind model.UserListKind) ([]model.CommunityUserEntry, error) {
	var list []model.CommunityUserEntry
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND kind = ?", communityID, kind).
		Order("id DESC").Find(&list).Error
	return list, err
}

func (r *CommunityMemberRepository) IsListed(ctx context.Context, communityID uint64, kind model.UserListKind, username string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.CommunityUserEntry{}).
		Where("community_id = ? AND kind = ? AND username = ?", communityID, kind, username).
		Count(&n).Error
	return n > 0, err
}
