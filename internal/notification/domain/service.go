package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, sub *PushSubscription) error
	DeleteByToken(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, token string) (int64, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID) ([]PushSubscription, error)
}

type SubscribeRequest struct {
	CustomerID snowflake.ID
	Token      string
	Platform   string
}

type Service interface {
	Subscribe(ctx context.Context, req SubscribeRequest) (PushSubscription, error)
	Unsubscribe(ctx context.Context, token string) error

	// NotifyCustomer delivers a push to every device the customer has
	// registered. Delivery failures are logged per device and never
	// propagate; a dead token must not fail business flows.
	NotifyCustomer(ctx context.Context, restaurantID, customerID snowflake.ID, title, body string, data map[string]string)
}

var (
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidCustomer   = errors.New("invalid_customer")
	ErrInvalidToken      = errors.New("invalid_token")
	ErrNotFound          = errors.New("not_found")
)
