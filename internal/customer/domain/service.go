package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*Customer, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
	ListIDs(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
	UpdateAggregates(ctx context.Context, db *gorm.DB, customer *Customer) error
}

type ListCustomerRequest struct {
	PageToken   string
	PageSize    int32
	Name        string
	Phone       string
	TierID      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerFilter struct {
	Name        string
	Phone       string
	TierID      snowflake.ID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name  string
	Phone string
	Email string
}

type GetCustomerRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
}

var (
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidPhone      = errors.New("invalid_phone")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
)
