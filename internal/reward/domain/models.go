package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusRedeemed  Status = "REDEEMED"
	StatusRevoked   Status = "REVOKED"
)

// CustomerReward is a single grant, usually the payoff of a filled stamp
// card. TransactionID links back to the sale that granted it so
// cancellation can revoke unredeemed grants.
type CustomerReward struct {
	ID            snowflake.ID  `json:"id,string" gorm:"primaryKey"`
	RestaurantID  snowflake.ID  `json:"restaurant_id,string" gorm:"index:ix_rewards_restaurant_customer,priority:1"`
	CustomerID    snowflake.ID  `json:"customer_id,string" gorm:"index:ix_rewards_restaurant_customer,priority:2"`
	CampaignID    *snowflake.ID `json:"campaign_id,string,omitempty" gorm:"index"`
	TransactionID *snowflake.ID `json:"transaction_id,string,omitempty" gorm:"index"`
	Name          string        `json:"name" gorm:"size:255"`
	Status        Status        `json:"status" gorm:"size:16;index"`
	RedeemedAt    *time.Time    `json:"redeemed_at,omitempty"`
	RevokedAt     *time.Time    `json:"revoked_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (CustomerReward) TableName() string {
	return "customer_rewards"
}
