package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"github.com/stampkit/stampkit/internal/tier/domain"
	"github.com/stampkit/stampkit/internal/tier/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }

func ladder() []domain.Tier {
	return []domain.Tier{
		{ID: 1, Name: "Bronze", Level: 0, MinTotalSpent: int64Ptr(0), MinVisitCount: intPtr(0), MinPoints: int64Ptr(0)},
		{ID: 2, Name: "Silver", Level: 1, MinTotalSpent: int64Ptr(1000), MinVisitCount: intPtr(10), MinPoints: int64Ptr(200)},
		{ID: 3, Name: "Gold", Level: 2, MinTotalSpent: int64Ptr(5000), MinVisitCount: intPtr(50), MinPoints: int64Ptr(1000)},
	}
}

func TestEligibleSelectsHighestQualifyingLevel(t *testing.T) {
	stats := domain.Stats{TotalSpent: 1200, VisitCount: 15, Points: 300}

	got := Eligible(ladder(), stats)
	if got == nil {
		t.Fatalf("expected an eligible tier")
	}
	if got.Name != "Silver" || got.Level != 1 {
		t.Fatalf("expected Silver (level 1), got %s (level %d)", got.Name, got.Level)
	}
}

func TestEligibleNilThresholdAlwaysSatisfied(t *testing.T) {
	tiers := []domain.Tier{
		{ID: 1, Name: "Base", Level: 0},
		{ID: 2, Name: "Points Only", Level: 1, MinPoints: int64Ptr(100)},
	}

	got := Eligible(tiers, domain.Stats{Points: 100})
	if got == nil || got.Name != "Points Only" {
		t.Fatalf("inclusive threshold with nil spend/visit minimums should qualify, got %+v", got)
	}
}

func TestEligibleNoQualifyingTier(t *testing.T) {
	tiers := []domain.Tier{
		{ID: 1, Name: "Members", Level: 0, MinVisitCount: intPtr(1)},
	}
	if got := Eligible(tiers, domain.Stats{}); got != nil {
		t.Fatalf("expected no eligible tier, got %s", got.Name)
	}
}

// Raising any single stat must never lower the evaluated tier.
func TestEligibleMonotonicity(t *testing.T) {
	tiers := ladder()

	base := domain.Stats{TotalSpent: 900, VisitCount: 9, Points: 150}
	levelOf := func(stats domain.Stats) int {
		tier := Eligible(tiers, stats)
		if tier == nil {
			return -1
		}
		return tier.Level
	}

	baseLevel := levelOf(base)
	for _, boosted := range []domain.Stats{
		{TotalSpent: base.TotalSpent + 10000, VisitCount: base.VisitCount, Points: base.Points},
		{TotalSpent: base.TotalSpent, VisitCount: base.VisitCount + 100, Points: base.Points},
		{TotalSpent: base.TotalSpent, VisitCount: base.VisitCount, Points: base.Points + 5000},
	} {
		if levelOf(boosted) < baseLevel {
			t.Fatalf("increasing a stat lowered the tier: base %d, boosted %d (%+v)", baseLevel, levelOf(boosted), boosted)
		}
	}
}

func setupTierService(t *testing.T) (domain.Service, snowflake.ID, context.Context) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Tier{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	restaurantID := node.Generate()
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	ctx := restaurantctx.WithRestaurantID(context.Background(), int64(restaurantID))

	return svc, restaurantID, ctx
}

func TestCreateRejectsDuplicateLevel(t *testing.T) {
	svc, _, ctx := setupTierService(t)

	if _, err := svc.Create(ctx, domain.CreateTierRequest{Name: "Bronze", Level: 0}); err != nil {
		t.Fatalf("create bronze: %v", err)
	}
	_, err := svc.Create(ctx, domain.CreateTierRequest{Name: "Copper", Level: 0})
	if err != domain.ErrDuplicateLevel {
		t.Fatalf("expected ErrDuplicateLevel, got %v", err)
	}
}

func TestEvaluateReportsUpgradeAndAlreadyCorrect(t *testing.T) {
	svc, restaurantID, ctx := setupTierService(t)

	bronze, err := svc.Create(ctx, domain.CreateTierRequest{Name: "Bronze", Level: 0})
	if err != nil {
		t.Fatalf("create bronze: %v", err)
	}
	silver, err := svc.Create(ctx, domain.CreateTierRequest{
		Name:          "Silver",
		Level:         1,
		MinTotalSpent: int64Ptr(1000),
		MinVisitCount: intPtr(10),
		MinPoints:     int64Ptr(200),
	})
	if err != nil {
		t.Fatalf("create silver: %v", err)
	}

	stats := domain.Stats{TotalSpent: 1200, VisitCount: 15, Points: 300}

	eval, err := svc.Evaluate(ctx, nil, restaurantID, &bronze.ID, stats)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Direction != domain.TransitionUpgrade {
		t.Fatalf("expected upgrade, got %s", eval.Direction)
	}
	if eval.Eligible == nil || eval.Eligible.ID != silver.ID {
		t.Fatalf("expected eligible Silver")
	}

	eval, err = svc.Evaluate(ctx, nil, restaurantID, &silver.ID, stats)
	if err != nil {
		t.Fatalf("evaluate again: %v", err)
	}
	if eval.Changed() {
		t.Fatalf("expected already-correct evaluation, got %s", eval.Direction)
	}
}
