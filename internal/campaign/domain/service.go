package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, campaign *Campaign) error
	FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*Campaign, error)
	List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, activeOnly bool) ([]Campaign, error)

	// QualifyingQuantity sums item quantities from COMPLETED transactions
	// of the customer that match the campaign's product filter, excluding
	// complimentary items and purchases outside the campaign window.
	QualifyingQuantity(ctx context.Context, db *gorm.DB, campaign *Campaign, customerID snowflake.ID) (int64, error)

	SumStampsUsed(ctx context.Context, db *gorm.DB, restaurantID, campaignID, customerID snowflake.ID) (int64, error)
	InsertUsage(ctx context.Context, db *gorm.DB, usage *TransactionCampaignUsage) error
	ListUsagesByTransaction(ctx context.Context, db *gorm.DB, restaurantID, transactionID snowflake.ID) ([]TransactionCampaignUsage, error)
	DeleteUsagesByTransaction(ctx context.Context, db *gorm.DB, restaurantID, transactionID snowflake.ID) (int64, error)
}

type CreateCampaignRequest struct {
	Name                string
	Description         string
	BuyQuantity         int64
	MaxUsagePerCustomer *int64
	StartDate           *time.Time
	EndDate             *time.Time
	ProductIDs          []snowflake.ID
}

// StampProgress is the full stamp position of one customer on one campaign.
type StampProgress struct {
	CampaignID          snowflake.ID `json:"campaign_id,string"`
	CustomerID          snowflake.ID `json:"customer_id,string"`
	TotalPurchased      int64        `json:"total_purchased"`
	BuyQuantity         int64        `json:"buy_quantity"`
	StampsEarned        int64        `json:"stamps_earned"`
	StampsUsed          int64        `json:"stamps_used"`
	StampsAvailable     int64        `json:"stamps_available"`
	Progress            int64        `json:"progress"`
	Remaining           int64        `json:"remaining"`
	CanEarnMore         bool         `json:"can_earn_more"`
	MaxUsagePerCustomer *int64       `json:"max_usage_per_customer,omitempty"`
}

// CustomerStampSummary aggregates one customer's position across every
// active campaign.
type CustomerStampSummary struct {
	CustomerID           snowflake.ID    `json:"customer_id,string"`
	Campaigns            []StampProgress `json:"campaigns"`
	TotalStampsAvailable int64           `json:"total_stamps_available"`
}

type RedeemStampsRequest struct {
	CampaignID    snowflake.ID
	CustomerID    snowflake.ID
	TransactionID snowflake.ID
	Stamps        int64
}

type Service interface {
	Create(ctx context.Context, req CreateCampaignRequest) (Campaign, error)
	List(ctx context.Context, activeOnly bool) ([]Campaign, error)
	GetByID(ctx context.Context, id snowflake.ID) (Campaign, error)

	// Progress computes the customer's stamp position on the campaign.
	Progress(ctx context.Context, campaignID, customerID snowflake.ID) (StampProgress, error)

	// ProgressTx is Progress against a caller-owned transaction, used when
	// redemption must read and write atomically.
	ProgressTx(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, campaignID, customerID snowflake.ID) (StampProgress, error)

	// ProgressSummary reports the customer's position on every active
	// campaign plus the total stamps available for redemption.
	ProgressSummary(ctx context.Context, customerID snowflake.ID) (CustomerStampSummary, error)

	// Redeem spends stamps against a transaction.
	Redeem(ctx context.Context, req RedeemStampsRequest) (TransactionCampaignUsage, error)

	// RedeemTx is Redeem inside a caller-owned transaction.
	RedeemTx(ctx context.Context, tx *gorm.DB, restaurantID snowflake.ID, req RedeemStampsRequest) (TransactionCampaignUsage, error)

	// CancelUsageByTransaction removes all stamp usages recorded against a
	// transaction, returning the usage row count and the stamps given back.
	CancelUsageByTransaction(ctx context.Context, tx *gorm.DB, restaurantID, transactionID snowflake.ID) (usages, stamps int64, err error)

	// InvalidateCustomerProgress drops the customer's cached stamp
	// positions after a purchase or cancellation.
	InvalidateCustomerProgress(ctx context.Context, restaurantID, customerID snowflake.ID)
}

var (
	ErrInvalidRestaurant  = errors.New("invalid_restaurant")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidBuyQuantity = errors.New("invalid_buy_quantity")
	ErrInvalidDateRange   = errors.New("invalid_date_range")
	ErrInvalidStampCount  = errors.New("invalid_stamp_count")
	ErrNotFound           = errors.New("not_found")
	ErrCampaignInactive   = errors.New("campaign_inactive")
	ErrInsufficientStamps = errors.New("insufficient_stamps")
	ErrUsageLimitExceeded = errors.New("usage_limit_exceeded")
)
