package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Customer is a loyalty member of one restaurant. Points, TotalSpent, and
// VisitCount are cached aggregates; the point ledger is the authority for
// Points and the reconciler is the only writer of corrections.
type Customer struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	RestaurantID snowflake.ID      `gorm:"not null;index" json:"restaurant_id"`
	Name         string            `gorm:"not null" json:"name"`
	Phone        string            `gorm:"not null;index" json:"phone"`
	Email        string            `json:"email,omitempty"`
	Points       int64             `gorm:"not null;default:0" json:"points"`
	TotalSpent   int64             `gorm:"not null;default:0" json:"total_spent"`
	VisitCount   int               `gorm:"not null;default:0" json:"visit_count"`
	TierID       *snowflake.ID     `gorm:"index" json:"tier_id,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
