package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
)

// APIKey stores hashed API credentials scoped to a restaurant. The plain
// key is shown once at creation; only its hash persists.
type APIKey struct {
	ID               snowflake.ID   `gorm:"primaryKey"`
	RestaurantID     snowflake.ID   `gorm:"column:restaurant_id;not null;uniqueIndex:ux_api_keys_restaurant_key_id,priority:1"`
	KeyID            string         `gorm:"column:key_id;type:text;not null;uniqueIndex:ux_api_keys_restaurant_key_id,priority:2"`
	Name             string         `gorm:"type:text;not null"`
	Scopes           pq.StringArray `gorm:"type:text[];not null"`
	KeyHash          string         `gorm:"column:key_hash;type:text;not null;index"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time      `gorm:"not null"`
	UpdatedAt        time.Time      `gorm:"not null"`
	LastUsedAt       *time.Time     `gorm:"column:last_used_at"`
	ExpiresAt        *time.Time     `gorm:"column:expires_at"`
	RotatedFromKeyID *string        `gorm:"column:rotated_from_key_id;type:text"`
}

func (APIKey) TableName() string { return "api_keys" }

// HasScope reports whether the key carries the scope or the admin scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope || s == ScopeAdmin {
			return true
		}
	}
	return false
}
