package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reward *CustomerReward) error
	FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*CustomerReward, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID, status Status) ([]CustomerReward, error)
	ListByTransaction(ctx context.Context, db *gorm.DB, restaurantID, transactionID snowflake.ID) ([]CustomerReward, error)
	Update(ctx context.Context, db *gorm.DB, reward *CustomerReward) error
}

type GrantRewardRequest struct {
	CustomerID    snowflake.ID
	CampaignID    *snowflake.ID
	TransactionID *snowflake.ID
	Name          string
}

type Service interface {
	Grant(ctx context.Context, req GrantRewardRequest) (CustomerReward, error)
	GrantTx(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, req GrantRewardRequest) (CustomerReward, error)

	// Redeem marks an AVAILABLE reward as redeemed.
	Redeem(ctx context.Context, rewardID snowflake.ID) (CustomerReward, error)

	// ListByCustomer returns the customer's rewards, optionally filtered
	// by status (empty status means all).
	ListByCustomer(ctx context.Context, customerID snowflake.ID, status Status) ([]CustomerReward, error)

	// RevokeByTransaction revokes AVAILABLE rewards granted by the
	// transaction. Rewards already redeemed stay redeemed; the customer
	// keeps what they have consumed.
	RevokeByTransaction(ctx context.Context, tx *gorm.DB, restaurantID, transactionID snowflake.ID) (int64, error)
}

var (
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidCustomer   = errors.New("invalid_customer")
	ErrInvalidName       = errors.New("invalid_name")
	ErrNotFound          = errors.New("not_found")
	ErrNotRedeemable     = errors.New("not_redeemable")
)
