package mysql

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"Reddit_Clone/internal/model"
)

type SearchRepository struct {
	DB *gorm.DB
}

func prefixPattern(q string) string {
	return escapeLike(strings.ToLower(q)) + "%"
}

func containsPattern(q string) string {
	return "%" + escapeLike(strings.ToLower(q)) + "%"
}

// People 用户名前缀
func (r *SearchRepository) People(ctx context.Context, q string, page, limit int) ([]model.UserBrief, error) {
	offset, size := normalizePage(page, limit)
	var list []model.UserBrief
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Select("id", "username").
		Where("LOWER(username) LIKE ? ESCAPE '!'", prefixPattern(q)).
		Order("username ASC").Offset(offset).Limit(size).
		Find(&list).Error
	return list, err
}

// CommunityNames 社区名前缀，不区分大小写
func (r *SearchRepository) CommunityNames(ctx context.Context, q string, page, limit int) ([]model.Community, error) {
	offset, size := normalizePage(page, limit)
	var list []model.Community
	err := r.DB.WithContext(ctx).
		Where("LOWER(name) LIKE ? ESCAPE '!'", prefixPattern(q)).
		Order("name ASC").Offset(offset).Limit(size).
		Find(&list).Error
	return list, err
}

// Communities 名称或描述包含关键字
func (r *SearchRepository) Communities(ctx context.Context, q string, page, limit int) ([]model.Community, error) {
	offset, size := normalizePage(page, limit)
	pat := containsPattern(q)
	var list []model.Community
	err := r.DB.WithContext(ctx).
		Where("LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'", pat, pat).
		Order("id DESC").Offset(offset).Limit(size).
		Find(&list).Error
	return list, err
}

// Posts 标题前缀或正文包含，只返回正常状态
func (r *SearchRepository) Posts(ctx context.Context, q string, page, limit int) ([]model.Thing, error) {
	offset, size := normalizePage(page, limit)
	var list []model.Thing
	err := r.DB.WithContext(ctx).
		Where("type = ? AND status = ?", model.ThingPost, model.StatusNormal).
		Where("LOWER(title) LIKE ? ESCAPE '!' OR LOWER(text) LIKE ? ESCAPE '!'", prefixPattern(q), containsPattern(q)).
		Order("id DESC").Offset(offset).Limit(size).
		Find(&list).Error
	return list, err
}

// Comments 正文包含
func (r *SearchRepository) Comments(ctx context.Context, q string, page, limit int) ([]model.Thing, error) {
	offset, size := normalizePage(page, limit)
	var list []model.Thing
	err := r.DB.WithContext(ctx).
		Where("type = ? AND status = ?", model.ThingComment, model.StatusNormal).
		Where("LOWER(text) LIKE ? ESCAPE '!'", containsPattern(q)).
		Order("id DESC").Offset(offset).Limit(size).
		Find(&list).Error
	return list, err
}
