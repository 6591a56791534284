package model

import (
	"time"

	"gorm.io/datatypes"
)

type Follow struct {
	ID         uint64 `gorm:"primaryKey"`
	FollowerID uint64 `gorm:"not null;uniqueIndex:uk_follower_followee,priority:1"`
	FolloweeID uint64 `gorm:"not null;uniqueIndex:uk_follower_followee,priority:2;index:idx_followee_id"`
	Status     int8   `gorm:"not null;default:1;comment:'1=follow,0=unfollow'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName sets table name for Follow
func (Follow) TableName() string {
	return "follow"
}

// Block 拉黑关系，存在即生效
type Block struct {
	ID        uint64 `gorm:"primaryKey"`
	BlockerID uint64 `gorm:"not null;uniqueIndex:uk_blocker_blocked,priority:1"`
	BlockedID uint64 `gorm:"not null;uniqueIndex:uk_blocker_blocked,priority:2;index"`
	CreatedAt time.Time
}

func (Block) TableName() string { return "block" }

const (
	OutboxPending int8 = 0
	OutboxSent    int8 = 1
	OutboxFailed  int8 = 2
)

// OutboxEvent 事务内写入，relayer 异步投递到 kafka
type OutboxEvent struct {
	ID          uint64         `gorm:"primaryKey"`
	EventType   string         `gorm:"size:32;not null"` // follow / vote / thing.spam / community.join ...
	AggregateID uint64         `gorm:"not null;index"`   // 分区 key
	Payload     datatypes.JSON `gorm:"not null"`
	Status      int8           `gorm:"not null;default:0;index;comment:'0=pending,1=sent,2=failed'"`
	Retry       int            `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (OutboxEvent) TableName() string { return "outbox_events" }
