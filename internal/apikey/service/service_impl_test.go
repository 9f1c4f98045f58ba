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
	"github.com/stampkit/stampkit/internal/apikey/domain"
	"github.com/stampkit/stampkit/internal/apikey/repository"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type apikeyFixture struct {
	svc   domain.Service
	clock *clock.FakeClock
	ctx   context.Context
}

func setup(t *testing.T) *apikeyFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.APIKey{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})

	return &apikeyFixture{
		svc:   svc,
		clock: fake,
		ctx:   restaurantctx.WithRestaurantID(context.Background(), 42),
	}
}

func TestCreateAuthenticateRoundTrip(t *testing.T) {
	f := setup(t)

	secret, err := f.svc.Create(f.ctx, domain.CreateRequest{Name: "pos terminal"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(secret.APIKey, "sk_live_key_") {
		t.Fatalf("unexpected key format: %s", secret.APIKey)
	}

	key, err := f.svc.Authenticate(f.ctx, secret.APIKey)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if key.KeyID != secret.KeyID {
		t.Fatalf("expected key %s, got %s", secret.KeyID, key.KeyID)
	}
	if !key.HasScope(domain.ScopeLoyaltyWrite) {
		t.Fatalf("default scopes should allow loyalty writes, got %v", key.Scopes)
	}

	keys, err := f.svc.List(f.ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 1 || keys[0].LastUsedAt == nil {
		t.Fatalf("expected one key with last_used_at set, got %+v", keys)
	}

	if _, err := f.svc.Authenticate(f.ctx, "sk_live_key_bogus"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown key, got %v", err)
	}
}

func TestRevokeRejectsFurtherUse(t *testing.T) {
	f := setup(t)

	secret, err := f.svc.Create(f.ctx, domain.CreateRequest{Name: "kiosk"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.Revoke(f.ctx, secret.KeyID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := f.svc.Authenticate(f.ctx, secret.APIKey); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after revoke, got %v", err)
	}
	if err := f.svc.Revoke(f.ctx, "key_MISSING"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown key, got %v", err)
	}
}

func TestRotateKeepsOldKeyThroughGracePeriod(t *testing.T) {
	f := setup(t)

	old, err := f.svc.Create(f.ctx, domain.CreateRequest{Name: "backoffice", Scopes: []string{domain.ScopeAdmin}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	next, err := f.svc.Rotate(f.ctx, old.KeyID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.KeyID == old.KeyID {
		t.Fatalf("rotation should mint a new key id")
	}

	// Both keys work inside the grace window.
	if _, err := f.svc.Authenticate(f.ctx, old.APIKey); err != nil {
		t.Fatalf("old key should still authenticate during grace period: %v", err)
	}
	rotated, err := f.svc.Authenticate(f.ctx, next.APIKey)
	if err != nil {
		t.Fatalf("new key should authenticate: %v", err)
	}
	if rotated.RotatedFromKeyID == nil || *rotated.RotatedFromKeyID != old.KeyID {
		t.Fatalf("expected rotation lineage to %s, got %+v", old.KeyID, rotated.RotatedFromKeyID)
	}
	if !rotated.HasScope(domain.ScopeLoyaltyRead) {
		t.Fatalf("admin scope should imply read access")
	}

	f.clock.Advance(25 * time.Hour)
	if _, err := f.svc.Authenticate(f.ctx, old.APIKey); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected old key to expire after grace period, got %v", err)
	}
	if _, err := f.svc.Authenticate(f.ctx, next.APIKey); err != nil {
		t.Fatalf("new key should outlive the grace period: %v", err)
	}

	// A rotated-out key cannot be rotated again.
	if _, err := f.svc.Rotate(f.ctx, old.KeyID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound rotating an expired key, got %v", err)
	}
}
