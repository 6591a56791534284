package model

import "time"

type User struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Password       string    `gorm:"size:255;not null" json:"-"`
	Email          string    `gorm:"uniqueIndex;size:64;not null" json:"email"`
	FollowerCount  int64     `gorm:"not null;default:0" json:"followerCount"`
	FollowingCount int64     `gorm:"not null;default:0" json:"followingCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserBrief 搜索/列表里对外暴露的用户信息
type UserBrief struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}
