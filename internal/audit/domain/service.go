package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record appends an audit entry. The restaurant and actor fall back to
	// whatever the request context carries when not given explicitly.
	Record(ctx context.Context, restaurantID *snowflake.ID, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrInvalidTimeRange  = errors.New("invalid_time_range")
	ErrInvalidAction     = errors.New("invalid_action")
)
