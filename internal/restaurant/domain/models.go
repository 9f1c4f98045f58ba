// Package domain contains persistence models for the restaurant service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Restaurant represents a tenant. Every loyalty record hangs off one.
type Restaurant struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"type:text;not null" json:"name"`
	Slug         string            `gorm:"type:text;not null;uniqueIndex:ux_restaurants_slug" json:"slug"`
	TimezoneName string            `gorm:"column:timezone_name" json:"timezone_name"`
	Currency     string            `gorm:"type:text" json:"currency"`
	IsDefault    bool              `gorm:"column:is_default" json:"is_default"`
	IsActive     bool              `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Restaurant) TableName() string { return "restaurants" }
