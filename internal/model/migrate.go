package model

// All 需要自动建表的模型
func All() []any {
	return []any{
		&User{},
		&UserPrefs{},
		&SavedPost{},
		&Follow{},
		&Block{},
		&Community{},
		&CommunityModerator{},
		&Flair{},
		&Rule{},
		&JoinRequest{},
		&CommunityMember{},
		&CommunityUserEntry{},
		&Thing{},
		&Vote{},
		&ModerationAction{},
		&OutboxEvent{},
	}
}
