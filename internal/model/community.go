package model

import (
	"time"

	"gorm.io/datatypes"
)

type CommunityType string

const (
	CommunityPublic     CommunityType = "public"
	CommunityPrivate    CommunityType = "private"
	CommunityRestricted CommunityType = "restricted"
)

func (t CommunityType) Valid() bool {
	switch t {
	case CommunityPublic, CommunityPrivate, CommunityRestricted:
		return true
	}
	return false
}

type Community struct {
	ID          uint64                      `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string                      `gorm:"type:text" json:"description"`
	Type        CommunityType               `gorm:"size:16;not null;default:public" json:"type"`
	Icon        string                      `gorm:"size:512" json:"icon"`
	CreatorID   uint64                      `gorm:"not null;index" json:"creatorId"`
	Categories  datatypes.JSONSlice[string] `json:"categories"`
	Moderators  []CommunityModerator        `gorm:"foreignKey:CommunityID" json:"moderators,omitempty"`
	Flairs      []Flair                     `gorm:"foreignKey:CommunityID" json:"flairList,omitempty"`
	Rules       []Rule                      `gorm:"foreignKey:CommunityID" json:"rules,omitempty"`

	CommunitySettings

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommunitySettings 发帖约束和欢迎语，版主通过 PATCH 修改
type CommunitySettings struct {
	RequirePostFlair      bool                        `gorm:"not null;default:false" json:"requirePostFlair"`
	BanPostTitleWords     bool                        `gorm:"not null;default:false" json:"banPostTitleWords"`
	PostTitleBannedWords  datatypes.JSONSlice[string] `json:"postTitleBannedWords"`
	BanPostBodyWords      bool                        `gorm:"not null;default:false" json:"banPostBodyWords"`
	PostBodyBannedWords   datatypes.JSONSlice[string] `json:"postBodyBannedWords"`
	WelcomeMessageEnabled bool                        `gorm:"not null;default:false" json:"welcomeMessageEnabled"`
	WelcomeMessageText    string                      `gorm:"type:text" json:"welcomeMessageText"`
}

// WelcomeMessage 未开启或为空时返回空串
func (s CommunitySettings) WelcomeMessage() string {
	if !s.WelcomeMessageEnabled {
		return ""
	}
	return s.WelcomeMessageText
}

// CommunityModerator 有序版主列表，Position=0 为创建者
type CommunityModerator struct {
	ID          uint64    `gorm:"primaryKey" json:"-"`
	CommunityID uint64    `gorm:"not null;uniqueIndex:uk_mod_community_user,priority:1" json:"-"`
	Username    string    `gorm:"size:32;not null;uniqueIndex:uk_mod_community_user,priority:2;index" json:"username"`
	Position    int       `gorm:"not null" json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Flair 由社区拥有，ID 对外暴露
type Flair struct {
	ID              string    `gorm:"primaryKey;size:36" json:"_id"`
	CommunityID     uint64    `gorm:"not null;index" json:"-"`
	Text            string    `gorm:"size:64;not null" json:"flairText"`
	TextColor       string    `gorm:"size:16" json:"flairTextColor"`
	BackgroundColor string    `gorm:"size:16" json:"flairBackGround"`
	CreatedAt       time.Time `json:"-"`
}

type Rule struct {
	ID          string    `gorm:"primaryKey;size:36" json:"_id"`
	CommunityID uint64    `gorm:"not null;index:idx_rule_community_pos,priority:1" json:"-"`
	Position    int       `gorm:"not null;index:idx_rule_community_pos,priority:2" json:"position"`
	Title       string    `gorm:"size:128;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	AppliesTo   string    `gorm:"size:16;not null;default:both" json:"appliesTo"` // posts / comments / both
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// JoinRequest 私有/受限社区的入群申请，(community,user) 唯一即集合语义
type JoinRequest struct {
	ID          uint64    `gorm:"primaryKey" json:"-"`
	CommunityID uint64    `gorm:"not null;uniqueIndex:uk_join_req,priority:1" json:"-"`
	UserID      uint64    `gorm:"not null;uniqueIndex:uk_join_req,priority:2" json:"userId"`
	Message     string    `gorm:"size:255" json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CommunityMember 存在即已加入
type CommunityMember struct {
	ID          uint64 `gorm:"primaryKey"`
	CommunityID uint64 `gorm:"not null;index;uniqueIndex:uk_community_user"`
	UserID      uint64 `gorm:"not null;index;uniqueIndex:uk_community_user"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserListKind string

const (
	ListBanned   UserListKind = "banned"
	ListMuted    UserListKind = "muted"
	ListApproved UserListKind = "approved"
)

func (k UserListKind) Valid() bool {
	switch k {
	case ListBanned, ListMuted, ListApproved:
		return true
	}
	return false
}

// CommunityUserEntry 社区的 banned / muted / approved 名单
type CommunityUserEntry struct {
	ID          uint64       `gorm:"primaryKey" json:"-"`
	CommunityID uint64       `gorm:"not null;uniqueIndex:uk_community_list_user,priority:1" json:"-"`
	Kind        UserListKind `gorm:"size:16;not null;uniqueIndex:uk_community_list_user,priority:2" json:"kind"`
	Username    string       `gorm:"size:32;not null;uniqueIndex:uk_community_list_user,priority:3" json:"username"`
	Note        string       `gorm:"size:255" json:"note"`
	CreatedAt   time.Time    `json:"date"`
}
