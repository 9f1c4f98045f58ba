package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/stampkit/stampkit/internal/apikey/domain"
	"github.com/stampkit/stampkit/internal/config"
	restaurantdomain "github.com/stampkit/stampkit/internal/restaurant/domain"
	tierdomain "github.com/stampkit/stampkit/internal/tier/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultRestaurantName = "Main"
	defaultRestaurantSlug = "main"
	devAPIKeyName         = "dev"
)

// EnsureDefaults seeds the default restaurant, its tier ladder, and
// optionally a development API key. Safe to run on every startup.
func EnsureDefaults(db *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restaurant, err := ensureRestaurantTx(ctx, tx, node, cfg.DefaultRestID)
		if err != nil {
			return err
		}

		if cfg.Bootstrap.EnsureDefaultTiers {
			if err := ensureTiersTx(ctx, tx, node, restaurant.ID); err != nil {
				return err
			}
		}

		if cfg.Bootstrap.EnsureDevAPIKey {
			if err := ensureDevAPIKeyTx(ctx, tx, node, restaurant.ID, log); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureRestaurantTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, defaultID int64) (restaurantdomain.Restaurant, error) {
	var restaurant restaurantdomain.Restaurant
	err := tx.WithContext(ctx).Where("slug = ?", defaultRestaurantSlug).First(&restaurant).Error
	if err == nil {
		return restaurant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return restaurant, err
	}

	id := node.Generate()
	if defaultID != 0 {
		id = snowflake.ID(defaultID)
	}
	now := time.Now().UTC()
	restaurant = restaurantdomain.Restaurant{
		ID:        id,
		Name:      defaultRestaurantName,
		Slug:      defaultRestaurantSlug,
		IsDefault: true,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&restaurant).Error; err != nil {
		return restaurant, err
	}
	return restaurant, nil
}

func ensureTiersTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, restaurantID snowflake.ID) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&tierdomain.Tier{}).
		Where("restaurant_id = ?", restaurantID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	int64Ptr := func(v int64) *int64 { return &v }
	intPtr := func(v int) *int { return &v }
	now := time.Now().UTC()
	ladder := []tierdomain.Tier{
		{
			Name:            "Bronze",
			Level:           0,
			PointMultiplier: 1,
		},
		{
			Name:            "Silver",
			Level:           1,
			MinTotalSpent:   int64Ptr(50_000),
			MinVisitCount:   intPtr(10),
			PointMultiplier: 1.25,
		},
		{
			Name:            "Gold",
			Level:           2,
			MinTotalSpent:   int64Ptr(200_000),
			MinVisitCount:   intPtr(40),
			MinPoints:       int64Ptr(1_000),
			PointMultiplier: 1.5,
		},
	}
	for i := range ladder {
		ladder[i].ID = node.Generate()
		ladder[i].RestaurantID = restaurantID
		ladder[i].IsActive = true
		ladder[i].CreatedAt = now
		ladder[i].UpdatedAt = now
		if err := tx.WithContext(ctx).Create(&ladder[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureDevAPIKeyTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, restaurantID snowflake.ID, log *zap.Logger) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&apikeydomain.APIKey{}).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	id := node.Generate()
	keyID := "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	plain := fmt.Sprintf("sk_live_key_%s_%s", strings.TrimPrefix(keyID, "key_"), hex.EncodeToString(secret))

	now := time.Now().UTC()
	key := apikeydomain.APIKey{
		ID:           id,
		RestaurantID: restaurantID,
		KeyID:        keyID,
		Name:         devAPIKeyName,
		Scopes:       []string{apikeydomain.ScopeAdmin},
		KeyHash:      apikeydomain.HashAPIKey(plain),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&key).Error; err != nil {
		return err
	}

	// Shown once; only the hash is stored.
	log.Warn("seeded development API key",
		zap.String("key_id", keyID),
		zap.String("api_key", plain),
	)
	return nil
}
