package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntryType classifies a ledger movement. The sign convention is enforced at
// append time: EARNED is strictly positive, SPENT and EXPIRED strictly
// negative, ADJUSTED any non-zero value.
type EntryType string

const (
	EntryEarned   EntryType = "EARNED"
	EntrySpent    EntryType = "SPENT"
	EntryExpired  EntryType = "EXPIRED"
	EntryAdjusted EntryType = "ADJUSTED"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryEarned, EntrySpent, EntryExpired, EntryAdjusted:
		return true
	}
	return false
}

// PointLedgerEntry is an append-only record of a single point movement.
// Balance is the running balance snapshot after applying Amount; it is
// derived data and may drift, which the reconciler repairs.
type PointLedgerEntry struct {
	ID            snowflake.ID  `json:"id,string" gorm:"primaryKey"`
	RestaurantID  snowflake.ID  `json:"restaurant_id,string" gorm:"index:ix_ledger_restaurant_customer,priority:1"`
	CustomerID    snowflake.ID  `json:"customer_id,string" gorm:"index:ix_ledger_restaurant_customer,priority:2"`
	EntryType     EntryType     `json:"entry_type" gorm:"size:16"`
	Amount        int64         `json:"amount"`
	Balance       int64         `json:"balance"`
	Source        string        `json:"source" gorm:"size:64"`
	Description   string        `json:"description"`
	TransactionID *snowflake.ID `json:"transaction_id,string,omitempty" gorm:"index"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	ExpiryApplied bool          `json:"expiry_applied"`
	CreatedAt     time.Time     `json:"created_at" gorm:"index"`
}

func (PointLedgerEntry) TableName() string {
	return "point_ledger_entries"
}
