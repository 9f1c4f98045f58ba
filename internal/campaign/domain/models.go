package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Campaign is a buy-N-get-a-stamp promotion. A customer collects one stamp
// per BuyQuantity qualifying items purchased; stamps are later redeemed for
// rewards. An empty product list means every purchased item qualifies.
type Campaign struct {
	ID                  snowflake.ID      `json:"id,string" gorm:"primaryKey"`
	RestaurantID        snowflake.ID      `json:"restaurant_id,string" gorm:"index"`
	Name                string            `json:"name" gorm:"size:255"`
	Description         string            `json:"description"`
	BuyQuantity         int64             `json:"buy_quantity"`
	MaxUsagePerCustomer *int64            `json:"max_usage_per_customer,omitempty"`
	StartDate           *time.Time        `json:"start_date,omitempty"`
	EndDate             *time.Time        `json:"end_date,omitempty"`
	IsActive            bool              `json:"is_active"`
	Products            []CampaignProduct `json:"products,omitempty" gorm:"foreignKey:CampaignID"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// EffectiveBuyQuantity treats zero or negative configuration as 1 so a
// misconfigured campaign degrades to one stamp per item instead of dividing
// by zero.
func (c Campaign) EffectiveBuyQuantity() int64 {
	if c.BuyQuantity <= 0 {
		return 1
	}
	return c.BuyQuantity
}

// Active reports whether the campaign accepts purchases at the given time.
func (c Campaign) Active(at time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartDate != nil && at.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && at.After(*c.EndDate) {
		return false
	}
	return true
}

// CampaignProduct restricts a campaign to specific products.
type CampaignProduct struct {
	CampaignID snowflake.ID `json:"campaign_id,string" gorm:"primaryKey;autoIncrement:false"`
	ProductID  snowflake.ID `json:"product_id,string" gorm:"primaryKey;autoIncrement:false"`
}

func (CampaignProduct) TableName() string {
	return "campaign_products"
}

// TransactionCampaignUsage records stamps redeemed against a transaction.
// Cancelling the transaction removes the usage and returns the stamps.
type TransactionCampaignUsage struct {
	ID            snowflake.ID `json:"id,string" gorm:"primaryKey"`
	RestaurantID  snowflake.ID `json:"restaurant_id,string" gorm:"index"`
	CampaignID    snowflake.ID `json:"campaign_id,string" gorm:"index:ix_usages_campaign_customer,priority:1"`
	CustomerID    snowflake.ID `json:"customer_id,string" gorm:"index:ix_usages_campaign_customer,priority:2"`
	TransactionID snowflake.ID `json:"transaction_id,string" gorm:"index"`
	StampsUsed    int64        `json:"stamps_used"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (TransactionCampaignUsage) TableName() string {
	return "transaction_campaign_usages"
}
