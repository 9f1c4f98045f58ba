package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Transaction is a completed sale. Amounts are minor currency units.
// PointsEarned and PointsUsed are recorded here for display; the point
// ledger remains the source of truth for balances.
type Transaction struct {
	ID           snowflake.ID      `json:"id,string" gorm:"primaryKey"`
	RestaurantID snowflake.ID      `json:"restaurant_id,string" gorm:"uniqueIndex:ux_transactions_restaurant_order,priority:1"`
	CustomerID   snowflake.ID      `json:"customer_id,string" gorm:"index"`
	OrderNumber  string            `json:"order_number" gorm:"size:64;uniqueIndex:ux_transactions_restaurant_order,priority:2"`
	Status       Status            `json:"status" gorm:"size:16;index"`
	TotalAmount  int64             `json:"total_amount"`
	PointsEarned int64             `json:"points_earned"`
	PointsUsed   int64             `json:"points_used"`
	Items        []TransactionItem `json:"items" gorm:"foreignKey:TransactionID"`
	CancelReason string            `json:"cancel_reason,omitempty" gorm:"size:255"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// TransactionItem is one line of a sale. IsFree marks complimentary items,
// which never count toward campaign stamps or point earning.
type TransactionItem struct {
	ID            snowflake.ID `json:"id,string" gorm:"primaryKey"`
	TransactionID snowflake.ID `json:"transaction_id,string" gorm:"index"`
	ProductID     snowflake.ID `json:"product_id,string" gorm:"index"`
	Name          string       `json:"name" gorm:"size:255"`
	Quantity      int64        `json:"quantity"`
	UnitPrice     int64        `json:"unit_price"`
	IsFree        bool         `json:"is_free"`
}

func (TransactionItem) TableName() string {
	return "transaction_items"
}
