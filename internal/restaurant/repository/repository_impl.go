package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/restaurant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, restaurant *domain.Restaurant) error {
	return db.WithContext(ctx).Create(restaurant).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, restaurant *domain.Restaurant) error {
	return db.WithContext(ctx).Save(restaurant).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Restaurant, error) {
	var restaurant domain.Restaurant
	err := db.WithContext(ctx).Where("id = ?", id).First(&restaurant).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &restaurant, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Restaurant, error) {
	var restaurant domain.Restaurant
	err := db.WithContext(ctx).Where("slug = ?", slug).First(&restaurant).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &restaurant, nil
}

func (r *repo) ListActiveIDs(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	stmt := db.WithContext(ctx).
		Model(&domain.Restaurant{}).
		Where("is_active = ?", true).
		Order("id asc")
	if afterID != 0 {
		stmt = stmt.Where("id > ?", afterID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Pluck("id", &ids).Error
	return ids, err
}
