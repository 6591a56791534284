package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type VoteDirection int8

const (
	VoteUp   VoteDirection = 1
	VoteDown VoteDirection = -1
	VoteNone VoteDirection = 0 // 不落库，只用于返回
)

func (d VoteDirection) String() string {
	switch d {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	default:
		return "none"
	}
}

// MarshalJSON 接口里方向统一用 "up"/"down"/"none"
func (d VoteDirection) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON 兼容字符串和 1/-1/0 两种写法
func (d *VoteDirection) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		dir, err := ParseVoteDirection(s)
		if err != nil {
			return err
		}
		*d = dir
		return nil
	}
	var n int8
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid vote direction %s", b)
	}
	switch VoteDirection(n) {
	case VoteUp, VoteDown, VoteNone:
		*d = VoteDirection(n)
		return nil
	}
	return fmt.Errorf("invalid vote direction %d", n)
}

func ParseVoteDirection(s string) (VoteDirection, error) {
	switch s {
	case "up":
		return VoteUp, nil
	case "down":
		return VoteDown, nil
	case "none":
		return VoteNone, nil
	}
	return VoteNone, fmt.Errorf("invalid vote direction %q", s)
}

// Vote 每个 (user, thing) 至多一行，取消投票即删除
type Vote struct {
	ID        uint64        `gorm:"primaryKey"`
	UserID    uint64        `gorm:"not null;uniqueIndex:uk_vote_user_thing,priority:1"`
	ThingID   uint64        `gorm:"not null;uniqueIndex:uk_vote_user_thing,priority:2;index"`
	Direction VoteDirection `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Vote) TableName() string { return "votes" }
