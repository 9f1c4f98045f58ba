package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/reward/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, reward *domain.CustomerReward) error {
	return db.WithContext(ctx).Create(reward).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*domain.CustomerReward, error) {
	var reward domain.CustomerReward
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		First(&reward).Error
	if err != nil {
		return nil, err
	}
	return &reward, nil
}

func (r *repository) ListByCustomer(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID, status domain.Status) ([]domain.CustomerReward, error) {
	q := db.WithContext(ctx).
		Where("restaurant_id = ? AND customer_id = ?", restaurantID, customerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var rewards []domain.CustomerReward
	err := q.Order("created_at desc, id desc").Find(&rewards).Error
	return rewards, err
}

func (r *repository) ListByTransaction(ctx context.Context, db *gorm.DB, restaurantID, transactionID snowflake.ID) ([]domain.CustomerReward, error) {
	var rewards []domain.CustomerReward
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND transaction_id = ?", restaurantID, transactionID).
		Find(&rewards).Error
	return rewards, err
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, reward *domain.CustomerReward) error {
	return db.WithContext(ctx).Save(reward).Error
}
