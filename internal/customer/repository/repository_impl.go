package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/customer/domain"
	"github.com/stampkit/stampkit/pkg/db/option"
	"github.com/stampkit/stampkit/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		First(&customer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// FindByIDForUpdate locks the customer row for the duration of the enclosing
// transaction. Point-affecting writers go through this to serialize ledger
// appends per customer.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("restaurant_id = ? AND id = ?", restaurantID, id).
		First(&customer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("restaurant_id = ?", restaurantID)
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.Phone != "" {
		stmt = stmt.Where("phone = ?", filter.Phone)
	}
	if filter.TierID != 0 {
		stmt = stmt.Where("tier_id = ?", filter.TierID)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) ListIDs(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("restaurant_id = ?", restaurantID)
	if afterID != 0 {
		stmt = stmt.Where("id > ?", afterID)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Order("id asc").Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) UpdateAggregates(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", customer.ID).
		Updates(map[string]any{
			"points":      customer.Points,
			"total_spent": customer.TotalSpent,
			"visit_count": customer.VisitCount,
			"tier_id":     customer.TierID,
			"updated_at":  customer.UpdatedAt,
		}).Error
}
