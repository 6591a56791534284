package model

import (
	"time"

	"gorm.io/datatypes"
)

// UserPrefs 每个用户一行，没有记录时按 DefaultPrefs 返回
type UserPrefs struct {
	UserID uint64 `gorm:"primaryKey;autoIncrement:false" json:"-"`

	// 账号与资料
	CountryCode string                      `gorm:"size:8" json:"countryCode"`
	Gender      string                      `gorm:"size:8" json:"gender"`
	DisplayName string                      `gorm:"size:64" json:"displayName"`
	About       string                      `gorm:"type:text" json:"about"`
	SocialLinks datatypes.JSONSlice[string] `json:"socialLinks"`
	NSFW        bool                        `gorm:"not null" json:"nsfw"`
	AllowFollow bool                        `gorm:"not null" json:"allowFollow"`

	// 隐私与内容
	ContentVisibility             bool   `gorm:"not null" json:"contentVisibility"`
	ActiveInCommunitiesVisibility bool   `gorm:"not null" json:"activeInCommunitiesVisibility"`
	ShowInSearch                  bool   `gorm:"not null" json:"showInSearch"`
	BadCommentAutoCollapse        string `gorm:"size:8;not null" json:"badCommentAutoCollapse"`
	AdultContent                  bool   `gorm:"not null" json:"adultContent"`
	AutoPlayMedia                 bool   `gorm:"not null" json:"autoPlayMedia"`
	SuggestedSort                 string `gorm:"size:8;not null" json:"suggestedSort"`

	// 通知
	InboxMessages  bool `gorm:"not null" json:"inboxMessages"`
	Mentions       bool `gorm:"not null" json:"mentions"`
	CommentsOnPost bool `gorm:"not null" json:"commentsOnPost"`
	UpvotePosts    bool `gorm:"not null" json:"upvotePosts"`
	UpvoteComments bool `gorm:"not null" json:"upvoteComments"`
	RepliesComment bool `gorm:"not null" json:"repliesComments"`
	NewFollowers   bool `gorm:"not null" json:"newFollowers"`

	// 私信
	AcceptPms   string                      `gorm:"size:16;not null" json:"acceptPms"`
	Whitelisted datatypes.JSONSlice[string] `json:"whitelisted"`

	UpdatedAt time.Time `json:"updatedAt"`
}

func (UserPrefs) TableName() string { return "user_prefs" }

func DefaultPrefs(userID uint64) *UserPrefs {
	return &UserPrefs{
		UserID:                        userID,
		SocialLinks:                   datatypes.JSONSlice[string]{},
		AllowFollow:                   true,
		ContentVisibility:             true,
		ActiveInCommunitiesVisibility: true,
		ShowInSearch:                  true,
		BadCommentAutoCollapse:        "off",
		AutoPlayMedia:                 true,
		SuggestedSort:                 "hot",
		InboxMessages:                 true,
		Mentions:                      true,
		CommentsOnPost:                true,
		UpvotePosts:                   true,
		UpvoteComments:                true,
		RepliesComment:                true,
		NewFollowers:                  true,
		AcceptPms:                     "everyone",
		Whitelisted:                   datatypes.JSONSlice[string]{},
	}
}

// SavedPost (user, thing) 唯一，收藏列表按 ID 倒序翻页
type SavedPost struct {
	ID        uint64    `gorm:"primaryKey"`
	UserID    uint64    `gorm:"not null;uniqueIndex:uk_saved_user_thing,priority:1"`
	ThingID   uint64    `gorm:"not null;uniqueIndex:uk_saved_user_thing,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SavedPost) TableName() string { return "saved_posts" }
