package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PushSubscription binds a customer to a device push token. A customer may
// hold several active subscriptions, one per device.
type PushSubscription struct {
	ID           snowflake.ID `json:"id,string" gorm:"primaryKey"`
	RestaurantID snowflake.ID `json:"restaurant_id,string" gorm:"index:ix_push_restaurant_customer,priority:1"`
	CustomerID   snowflake.ID `json:"customer_id,string" gorm:"index:ix_push_restaurant_customer,priority:2"`
	Token        string       `json:"token" gorm:"size:512;uniqueIndex"`
	Platform     string       `json:"platform" gorm:"size:16"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
