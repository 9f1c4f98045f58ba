package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*Transaction, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*Transaction, error)
	FindByOrderNumber(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, orderNumber string) (*Transaction, error)
	Update(ctx context.Context, db *gorm.DB, txn *Transaction) error
	ListByCustomer(ctx context.Context, db *gorm.DB, restaurantID, customerID snowflake.ID, limit int) ([]Transaction, error)
}

type CreateTransactionItem struct {
	ProductID snowflake.ID
	Name      string
	Quantity  int64
	UnitPrice int64
	IsFree    bool
}

type StampRedemption struct {
	CampaignID snowflake.ID
	Stamps     int64
}

type CreateTransactionRequest struct {
	CustomerID  snowflake.ID
	OrderNumber string
	Items       []CreateTransactionItem
	PointsUsed  int64
	Redemptions []StampRedemption
}

// CancelSteps selects which compensations run. Each step is independent;
// all selected steps commit or none do.
type CancelSteps struct {
	RefundPoints        bool `json:"refundPoints"`
	CancelCampaignUsage bool `json:"cancelCampaignUsage"`
	CancelStamps        bool `json:"cancelStamps"`
	CancelRewards       bool `json:"cancelRewards"`
	CheckTierDowngrade  bool `json:"checkTierDowngrade"`
}

type CancelTransactionRequest struct {
	TransactionID snowflake.ID
	OrderNumber   string
	Reason        string
	Steps         CancelSteps
}

// CancelResult summarizes the compensation applied to one transaction.
type CancelResult struct {
	Transaction      Transaction   `json:"transaction"`
	PointsRefunded   int64         `json:"points_refunded"`
	PointsRevoked    int64         `json:"points_revoked"`
	UsagesCancelled  int64         `json:"usages_cancelled"`
	StampsReturned   int64         `json:"stamps_returned"`
	RewardsRevoked   int64         `json:"rewards_revoked"`
	TierDowngraded   bool          `json:"tier_downgraded"`
	PreviousTierID   *snowflake.ID `json:"previous_tier_id,string,omitempty"`
	NewTierID        *snowflake.ID `json:"new_tier_id,string,omitempty"`
	NewPointsBalance int64         `json:"new_points_balance"`
	CancelledAt      time.Time     `json:"cancelled_at"`
}

type Service interface {
	// Create records a completed sale: line items, point earn and spend,
	// aggregate bumps, stamp redemptions and a tier upgrade check, all in
	// one unit of work.
	Create(ctx context.Context, req CreateTransactionRequest) (Transaction, error)

	GetByID(ctx context.Context, id snowflake.ID) (Transaction, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (Transaction, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID, limit int) ([]Transaction, error)

	// Cancel compensates a COMPLETED transaction. Cancelling twice is an
	// error, not a no-op.
	Cancel(ctx context.Context, req CancelTransactionRequest) (CancelResult, error)
}

var (
	ErrInvalidRestaurant  = errors.New("invalid_restaurant")
	ErrInvalidCustomer    = errors.New("invalid_customer")
	ErrInvalidOrderNumber = errors.New("invalid_order_number")
	ErrInvalidItems       = errors.New("invalid_items")
	ErrInvalidPointsUsed  = errors.New("invalid_points_used")
	ErrNotFound           = errors.New("not_found")
	ErrAlreadyCancelled   = errors.New("already_cancelled")
	ErrDuplicateOrder     = errors.New("duplicate_order_number")
)
