package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem ActorType = "system"
	ActorTypeAPIKey ActorType = "api_key"
	ActorTypeAdmin  ActorType = "admin"
)

// AuditLog is an append-only record of a state-changing loyalty operation.
type AuditLog struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	RestaurantID *snowflake.ID     `gorm:"column:restaurant_id;index" json:"restaurant_id"`
	ActorType    string            `gorm:"column:actor_type;type:text;not null" json:"actor_type"`
	ActorID      *string           `gorm:"column:actor_id;type:text" json:"actor_id"`
	Action       string            `gorm:"type:text;not null;index" json:"action"`
	TargetType   string            `gorm:"column:target_type;type:text;not null" json:"target_type"`
	TargetID     *string           `gorm:"column:target_id;type:text" json:"target_id"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	IPAddress    *string           `gorm:"column:ip_address;type:text" json:"ip_address"`
	UserAgent    *string           `gorm:"column:user_agent;type:text" json:"user_agent"`
	CreatedAt    time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	RestaurantID snowflake.ID
	Action       string
	TargetType   string
	TargetID     string
	ActorType    string
	StartAt      *time.Time
	EndAt        *time.Time
	Cursor       *AuditCursor
	Limit        int
}
