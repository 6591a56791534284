package model

import "time"

type ModerationActionType string

const (
	ActionSpam    ModerationActionType = "spam"
	ActionUnspam  ModerationActionType = "unspam"
	ActionRemove  ModerationActionType = "remove"
	ActionRestore ModerationActionType = "restore"
	ActionApprove ModerationActionType = "approve"
)

// ModerationAction 状态变更审计记录，与状态更新同一事务提交
type ModerationAction struct {
	ID          uint64               `gorm:"primaryKey"`
	ThingID     uint64               `gorm:"not null;index"`
	CommunityID uint64               `gorm:"not null;index"`
	Moderator   string               `gorm:"size:32;not null"`
	Action      ModerationActionType `gorm:"size:16;not null"`
	FromStatus  ThingStatus          `gorm:"size:16;not null"`
	ToStatus    ThingStatus          `gorm:"size:16;not null"`
	CreatedAt   time.Time
}
