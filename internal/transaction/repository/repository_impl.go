package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/transaction/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).
		Preload("Items").
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		First(&txn).Error
	if err != nil {
		return nil, err
	}

	// Items load separately; FOR UPDATE does not compose with a preload.
	err = db.WithContext(ctx).
		Where("transaction_id = ?", txn.ID).
		Find(&txn.Items).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByOrderNumber(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, orderNumber string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).
		Preload("Items").
		Where("restaurant_id = ? AND order_number = ?", restaurantID, orderNumber).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Omit("Items").Save(txn).Error
}

func (r *repository) ListByCustomer(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID, limit int) ([]domain.Transaction, error) {
	q := db.WithContext(ctx).
		Preload("Items").
		Where("restaurant_id = ? AND customer_id = ?", restaurantID, customerID).
		Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var txns []domain.Transaction
	err := q.Find(&txns).Error
	return txns, err
}
