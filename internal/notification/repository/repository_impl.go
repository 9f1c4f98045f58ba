package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/notification/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

// Upsert re-registers a token that moved between customers, which happens
// when a shared device signs in to a different account.
func (r *repository) Upsert(ctx context.Context, db *gorm.DB, sub *domain.PushSubscription) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"restaurant_id", "customer_id", "platform"}),
		}).
		Create(sub).Error
}

func (r *repository) DeleteByToken(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, token string) (int64, error) {
	res := db.WithContext(ctx).
		Where("restaurant_id = ? AND token = ?", restaurantID, token).
		Delete(&domain.PushSubscription{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListByCustomer(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID) ([]domain.PushSubscription, error) {
	var subs []domain.PushSubscription
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND customer_id = ?", restaurantID, customerID).
		Find(&subs).Error
	return subs, err
}
