package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier is one loyalty level. A nil threshold is always satisfied for that
// dimension; thresholds are inclusive. Level is a total order per restaurant.
type Tier struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	RestaurantID    snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_tiers_restaurant_level,priority:1" json:"restaurant_id"`
	Name            string        `gorm:"not null" json:"name"`
	Level           int           `gorm:"not null;uniqueIndex:ux_tiers_restaurant_level,priority:2" json:"level"`
	MinTotalSpent   *int64        `json:"min_total_spent,omitempty"`
	MinVisitCount   *int          `json:"min_visit_count,omitempty"`
	MinPoints       *int64        `json:"min_points,omitempty"`
	PointMultiplier float64       `gorm:"not null;default:1" json:"point_multiplier"`
	IsActive        bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tier) TableName() string { return "tiers" }

// Stats are the customer aggregates evaluated against tier thresholds.
type Stats struct {
	TotalSpent int64
	VisitCount int
	Points     int64
}

// Satisfies reports whether the stats meet every set threshold of the tier.
func (t Tier) Satisfies(stats Stats) bool {
	if t.MinTotalSpent != nil && stats.TotalSpent < *t.MinTotalSpent {
		return false
	}
	if t.MinVisitCount != nil && stats.VisitCount < *t.MinVisitCount {
		return false
	}
	if t.MinPoints != nil && stats.Points < *t.MinPoints {
		return false
	}
	return true
}
