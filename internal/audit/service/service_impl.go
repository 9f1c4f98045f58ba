package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/stampkit/stampkit/internal/audit/domain"
	"github.com/stampkit/stampkit/internal/audit/masking"
	"github.com/stampkit/stampkit/internal/clock"
	obscontext "github.com/stampkit/stampkit/internal/observability/context"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"github.com/stampkit/stampkit/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Metadata keys whose values never land in the log in the clear.
var sensitiveKeys = map[string]bool{
	"api_key": true,
	"secret":  true,
	"token":   true,
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, restaurantID *snowflake.ID, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := map[string]any{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		if sensitiveKeys[key] {
			if str, ok := value.(string); ok {
				payload[key] = masking.MaskSecret(str)
				continue
			}
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	actorType, actorID := s.resolveActor(ctx)

	entry := auditdomain.AuditLog{
		ID:           s.genID.Generate(),
		RestaurantID: s.resolveRestaurantID(ctx, restaurantID),
		ActorType:    actorType,
		ActorID:      actorID,
		Action:       action,
		TargetType:   targetType,
		TargetID:     normalizePointer(targetID),
		Metadata:     datatypes.JSONMap(payload),
		CreatedAt:    s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidRestaurant
	}

	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		RestaurantID: restaurantID,
		Action:       req.Action,
		TargetType:   req.TargetType,
		TargetID:     req.TargetID,
		ActorType:    req.ActorType,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		Cursor:       cursor,
		Limit:        pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *auditdomain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	resp := auditdomain.ListAuditLogResponse{AuditLogs: logs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) resolveRestaurantID(ctx context.Context, restaurantID *snowflake.ID) *snowflake.ID {
	if restaurantID != nil && *restaurantID != 0 {
		return restaurantID
	}
	resolved, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || resolved == 0 {
		return nil
	}
	return &resolved
}

func (s *Service) resolveActor(ctx context.Context) (string, *string) {
	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		return string(auditdomain.ActorTypeSystem), nil
	}
	return actorType, normalizePointer(&actorID)
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
