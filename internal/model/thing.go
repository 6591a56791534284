package model

import (
	"time"

	"gorm.io/gorm"
)

type ThingType string

const (
	ThingPost    ThingType = "Post"
	ThingComment ThingType = "Comment"
)

func (t ThingType) Valid() bool {
	return t == ThingPost || t == ThingComment
}

type ThingStatus string

const (
	StatusNormal  ThingStatus = "normal"
	StatusSpammed ThingStatus = "spammed"
	StatusRemoved ThingStatus = "removed"
)

// Thing 帖子与评论共用一张表，Type 区分
type Thing struct {
	ID          uint64         `gorm:"primaryKey;index:idx_thing_comm_time_id,priority:3,sort:desc" json:"_id"`
	Type        ThingType      `gorm:"size:16;not null;index" json:"type"`
	OwnerID     uint64         `gorm:"not null;index" json:"userId"`
	CommunityID uint64         `gorm:"not null;index:idx_thing_comm_time_id,priority:1" json:"subredditId"`
	PostID      *uint64        `gorm:"index" json:"postId,omitempty"`   // 仅评论
	ParentID    *uint64        `gorm:"index" json:"parentId,omitempty"` // 回复的评论，顶层评论为空
	Title       string         `gorm:"size:300" json:"title,omitempty"`
	Text        string         `gorm:"type:text" json:"text"`
	FlairID     *string        `gorm:"size:36" json:"flairId,omitempty"`
	VoteScore   int64          `gorm:"not null;default:0" json:"votesCount"`
	Status      ThingStatus    `gorm:"size:16;not null;default:normal;index" json:"status"`
	ApprovedBy  string         `gorm:"size:32" json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time     `json:"approvedAt,omitempty"`
	EditedAt    *time.Time     `gorm:"index" json:"editedAt,omitempty"`
	CreatedAt   time.Time      `gorm:"index:idx_thing_comm_time_id,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (t *Thing) IsPost() bool    { return t.Type == ThingPost }
func (t *Thing) IsComment() bool { return t.Type == ThingComment }

// ThingPatch 只更新非 nil 字段
type ThingPatch struct {
	Title   *string
	Text    *string
	FlairID *string
}

func (p ThingPatch) Empty() bool {
	return p.Title == nil && p.Text == nil && p.FlairID == nil
}

// Post / Comment 是 Thing 的两种形态，只能经过类型检查后取得
type Post struct{ *Thing }

type Comment struct{ *Thing }

func (t *Thing) AsPost() (Post, bool) {
	if t == nil || t.Type != ThingPost {
		return Post{}, false
	}
	return Post{t}, true
}

func (t *Thing) AsComment() (Comment, bool) {
	if t == nil || t.Type != ThingComment {
		return Comment{}, false
	}
	return Comment{t}, true
}
