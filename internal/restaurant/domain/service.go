package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, restaurant *Restaurant) error
	Update(ctx context.Context, db *gorm.DB, restaurant *Restaurant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Restaurant, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Restaurant, error)
	// ListActiveIDs pages through active restaurants in id order, for
	// schedulers that sweep every tenant.
	ListActiveIDs(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
}

type CreateRestaurantRequest struct {
	Name         string `json:"name"`
	TimezoneName string `json:"timezone_name"`
	Currency     string `json:"currency"`
}

type UpdateRestaurantRequest struct {
	Name         string `json:"name"`
	TimezoneName string `json:"timezone_name"`
	Currency     string `json:"currency"`
}

type Service interface {
	Create(ctx context.Context, req CreateRestaurantRequest) (*Restaurant, error)
	Get(ctx context.Context) (*Restaurant, error)
	Update(ctx context.Context, req UpdateRestaurantRequest) (*Restaurant, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrDuplicateSlug    = errors.New("duplicate_slug")
	ErrNotFound         = errors.New("not_found")
	ErrInvalidTimezone  = errors.New("invalid_timezone")
	ErrInvalidCurrency  = errors.New("invalid_currency")
	ErrMissingContextID = errors.New("invalid_restaurant")
)
