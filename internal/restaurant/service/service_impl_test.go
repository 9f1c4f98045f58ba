package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stampkit/stampkit/internal/clock"
	"github.com/stampkit/stampkit/internal/restaurant/domain"
	"github.com/stampkit/stampkit/internal/restaurant/repository"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Restaurant{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(9)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateSlugsNameAndRejectsDuplicates(t *testing.T) {
	svc := setup(t)

	created, err := svc.Create(context.Background(), domain.CreateRestaurantRequest{
		Name:     "Café Milano",
		Currency: "eur",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Slug != "cafe-milano" {
		t.Fatalf("expected slug cafe-milano, got %s", created.Slug)
	}
	if created.Currency != "EUR" {
		t.Fatalf("expected currency EUR, got %s", created.Currency)
	}

	if _, err := svc.Create(context.Background(), domain.CreateRestaurantRequest{Name: "Cafe Milano"}); !errors.Is(err, domain.ErrDuplicateSlug) {
		t.Fatalf("expected ErrDuplicateSlug, got %v", err)
	}
	if _, err := svc.Create(context.Background(), domain.CreateRestaurantRequest{Name: "  "}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestGetAndUpdateUseContextRestaurant(t *testing.T) {
	svc := setup(t)

	created, err := svc.Create(context.Background(), domain.CreateRestaurantRequest{Name: "Burger Barn"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx := restaurantctx.WithRestaurantID(context.Background(), int64(created.ID))
	got, err := svc.Get(ctx)
	if err != nil || got.ID != created.ID {
		t.Fatalf("get: %v (%+v)", err, got)
	}

	updated, err := svc.Update(ctx, domain.UpdateRestaurantRequest{TimezoneName: "America/New_York"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TimezoneName != "America/New_York" {
		t.Fatalf("timezone not applied: %s", updated.TimezoneName)
	}

	if _, err := svc.Update(ctx, domain.UpdateRestaurantRequest{TimezoneName: "Not/A_Zone"}); !errors.Is(err, domain.ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
	if _, err := svc.Get(context.Background()); !errors.Is(err, domain.ErrMissingContextID) {
		t.Fatalf("expected ErrMissingContextID, got %v", err)
	}
}
