package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, entry *domain.PointLedgerEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

// Replay order: CreatedAt ascending, ID as tiebreaker so entries created in
// the same instant keep insertion order.
func (r *repository) ListByCustomer(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID) ([]domain.PointLedgerEntry, error) {
	var entries []domain.PointLedgerEntry
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND customer_id = ?", restaurantID, customerID).
		Order("created_at asc, id asc").
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListByCustomerForUpdate(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID) ([]domain.PointLedgerEntry, error) {
	var entries []domain.PointLedgerEntry
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("restaurant_id = ? AND customer_id = ?", restaurantID, customerID).
		Order("created_at asc, id asc").
		Find(&entries).Error
	return entries, err
}

func (r *repository) UpdateBalance(ctx context.Context, db *gorm.DB, entryID snowflake.ID, balance int64) error {
	return db.WithContext(ctx).
		Model(&domain.PointLedgerEntry{}).
		Where("id = ?", entryID).
		Update("balance", balance).Error
}

func (r *repository) ListExpirable(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, before time.Time, limit int) ([]domain.PointLedgerEntry, error) {
	var entries []domain.PointLedgerEntry
	q := db.WithContext(ctx).
		Where("restaurant_id = ? AND entry_type = ? AND expiry_applied = ? AND expires_at IS NOT NULL AND expires_at <= ?",
			restaurantID, domain.EntryEarned, false, before).
		Order("expires_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

func (r *repository) MarkExpiryApplied(ctx context.Context, db *gorm.DB, entryID snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.PointLedgerEntry{}).
		Where("id = ?", entryID).
		Update("expiry_applied", true).Error
}

func (r *repository) SumByTransaction(ctx context.Context, db *gorm.DB, restaurantID, transactionID snowflake.ID, entryType domain.EntryType) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.PointLedgerEntry{}).
		Where("restaurant_id = ? AND transaction_id = ? AND entry_type = ?", restaurantID, transactionID, entryType).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
