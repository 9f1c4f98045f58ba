package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/campaign/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) error {
	return db.WithContext(ctx).Create(campaign).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*domain.Campaign, error) {
	var campaign domain.Campaign
	err := db.WithContext(ctx).
		Preload("Products").
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		First(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, activeOnly bool) ([]domain.Campaign, error) {
	q := db.WithContext(ctx).
		Preload("Products").
		Where("restaurant_id = ?", restaurantID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var campaigns []domain.Campaign
	err := q.Order("created_at desc, id desc").Find(&campaigns).Error
	return campaigns, err
}

// QualifyingQuantity counts purchased items toward the campaign. Only
// COMPLETED transactions count, complimentary items are excluded, and a
// non-empty product list restricts the sum to those products.
func (r *repository) QualifyingQuantity(ctx context.Context, db *gorm.DB, campaign *domain.Campaign, customerID snowflake.ID) (int64, error) {
	q := db.WithContext(ctx).
		Table("transaction_items").
		Joins("JOIN transactions ON transactions.id = transaction_items.transaction_id").
		Where("transactions.restaurant_id = ?", campaign.RestaurantID).
		Where("transactions.customer_id = ?", customerID).
		Where("transactions.status = ?", "COMPLETED").
		Where("transaction_items.is_free = ?", false)

	if campaign.StartDate != nil {
		q = q.Where("transactions.created_at >= ?", *campaign.StartDate)
	}
	if campaign.EndDate != nil {
		q = q.Where("transactions.created_at <= ?", *campaign.EndDate)
	}
	if len(campaign.Products) > 0 {
		productIDs := make([]snowflake.ID, 0, len(campaign.Products))
		for _, p := range campaign.Products {
			productIDs = append(productIDs, p.ProductID)
		}
		q = q.Where("transaction_items.product_id IN ?", productIDs)
	}

	var total int64
	err := q.Select("COALESCE(SUM(transaction_items.quantity), 0)").Scan(&total).Error
	return total, err
}

func (r *repository) SumStampsUsed(ctx context.Context, db *gorm.DB, restaurantID, campaignID, customerID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.TransactionCampaignUsage{}).
		Where("restaurant_id = ? AND campaign_id = ? AND customer_id = ?", restaurantID, campaignID, customerID).
		Select("COALESCE(SUM(stamps_used), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) InsertUsage(ctx context.Context, db *gorm.DB, usage *domain.TransactionCampaignUsage) error {
	return db.WithContext(ctx).Create(usage).Error
}

func (r *repository) ListUsagesByTransaction(ctx context.Context, db *gorm.DB, restaurantID, transactionID snowflake.ID) ([]domain.TransactionCampaignUsage, error) {
	var usages []domain.TransactionCampaignUsage
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND transaction_id = ?", restaurantID, transactionID).
		Find(&usages).Error
	return usages, err
}

func (r *repository) DeleteUsagesByTransaction(ctx context.Context, db *gorm.DB, restaurantID, transactionID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).
		Where("restaurant_id = ? AND transaction_id = ?", restaurantID, transactionID).
		Delete(&domain.TransactionCampaignUsage{})
	return res.RowsAffected, res.Error
}
