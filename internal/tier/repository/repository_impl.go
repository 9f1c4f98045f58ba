package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/tier/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tier *domain.Tier) error {
	return db.WithContext(ctx).Create(tier).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*domain.Tier, error) {
	var tier domain.Tier
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		First(&tier).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tier, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) ([]domain.Tier, error) {
	var tiers []domain.Tier
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Order("level asc").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (r *repo) LevelExists(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, level int) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Tier{}).
		Where("restaurant_id = ? AND level = ?", restaurantID, level).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
