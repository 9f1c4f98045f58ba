package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stampkit/stampkit/internal/audit/domain"
	"github.com/stampkit/stampkit/internal/audit/repository"
	"github.com/stampkit/stampkit/internal/clock"
	obscontext "github.com/stampkit/stampkit/internal/observability/context"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"github.com/stampkit/stampkit/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type auditFixture struct {
	svc   domain.Service
	clock *clock.FakeClock
	ctx   context.Context
}

func setup(t *testing.T) *auditFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(8)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})

	return &auditFixture{
		svc:   svc,
		clock: fake,
		ctx:   restaurantctx.WithRestaurantID(context.Background(), 42),
	}
}

func strPtr(v string) *string { return &v }

func TestRecordResolvesActorAndMasksSecrets(t *testing.T) {
	f := setup(t)
	ctx := obscontext.WithActor(f.ctx, "api_key", "key_POS1")
	ctx = obscontext.WithRequestID(ctx, "req-123")

	err := f.svc.Record(ctx, nil, "apikey.created", "api_key", strPtr("key_POS1"), map[string]any{
		"api_key": "sk_live_key_POS1_deadbeefcafe",
		"name":    "pos terminal",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	resp, err := f.svc.List(f.ctx, domain.ListAuditLogRequest{Action: "apikey.created"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.AuditLogs) != 1 {
		t.Fatalf("expected one entry, got %d", len(resp.AuditLogs))
	}

	entry := resp.AuditLogs[0]
	if entry.ActorType != "api_key" || entry.ActorID == nil || *entry.ActorID != "key_POS1" {
		t.Fatalf("actor not resolved from context: %+v", entry)
	}
	if entry.RestaurantID == nil || *entry.RestaurantID != 42 {
		t.Fatalf("restaurant not resolved from context: %+v", entry.RestaurantID)
	}
	masked, _ := entry.Metadata["api_key"].(string)
	if strings.Contains(masked, "deadbeefcafe") {
		t.Fatalf("secret leaked into audit metadata: %s", masked)
	}
	if !strings.HasSuffix(masked, "cafe") {
		t.Fatalf("masked secret should keep a correlation suffix, got %s", masked)
	}
	if entry.Metadata["request_id"] != "req-123" {
		t.Fatalf("request id missing from metadata: %v", entry.Metadata)
	}
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	f := setup(t)

	if err := f.svc.Record(f.ctx, nil, "points.reconcile", "customer", strPtr("7"), nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := f.svc.Record(f.ctx, nil, "", "customer", nil, nil); !errors.Is(err, domain.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction for blank action, got %v", err)
	}

	resp, err := f.svc.List(f.ctx, domain.ListAuditLogRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.AuditLogs) != 1 || resp.AuditLogs[0].ActorType != string(domain.ActorTypeSystem) {
		t.Fatalf("expected one system-actor entry, got %+v", resp.AuditLogs)
	}
}

func TestListPaginatesWithCursor(t *testing.T) {
	f := setup(t)

	for i := 0; i < 5; i++ {
		if err := f.svc.Record(f.ctx, nil, "transaction.cancelled", "transaction", strPtr(fmt.Sprintf("tx-%d", i)), nil); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		f.clock.Advance(time.Minute)
	}

	first, err := f.svc.List(f.ctx, domain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 3},
	})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.AuditLogs) != 3 || !first.HasMore || first.NextPageToken == "" {
		t.Fatalf("expected a full first page with more to come, got %d has_more=%v", len(first.AuditLogs), first.HasMore)
	}

	second, err := f.svc.List(f.ctx, domain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 3, PageToken: first.NextPageToken},
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.AuditLogs) != 2 || second.HasMore {
		t.Fatalf("expected the final two entries, got %d has_more=%v", len(second.AuditLogs), second.HasMore)
	}

	// Newest first, no overlap between pages.
	seen := map[string]bool{}
	for _, entry := range append(first.AuditLogs, second.AuditLogs...) {
		if entry.TargetID == nil || seen[*entry.TargetID] {
			t.Fatalf("duplicate or missing target across pages: %+v", entry)
		}
		seen[*entry.TargetID] = true
	}

	if _, err := f.svc.List(f.ctx, domain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "not-base64!"},
	}); !errors.Is(err, domain.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}

	if _, err := f.svc.List(context.Background(), domain.ListAuditLogRequest{}); !errors.Is(err, domain.ErrInvalidRestaurant) {
		t.Fatalf("expected ErrInvalidRestaurant without context, got %v", err)
	}
}
