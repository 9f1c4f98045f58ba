package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stampkit/stampkit/internal/restaurantctx"
	"github.com/stampkit/stampkit/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tier.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTierRequest) (domain.Tier, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return domain.Tier{}, domain.ErrInvalidRestaurant
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Tier{}, domain.ErrInvalidName
	}
	if req.Level < 0 {
		return domain.Tier{}, domain.ErrInvalidLevel
	}
	multiplier := req.PointMultiplier
	if multiplier == 0 {
		multiplier = 1
	}
	if multiplier < 0 {
		return domain.Tier{}, domain.ErrInvalidMultiplier
	}

	// Duplicate levels break the total order the evaluator depends on, so
	// they are rejected here rather than at evaluation time.
	exists, err := s.repo.LevelExists(ctx, s.db, restaurantID, req.Level)
	if err != nil {
		return domain.Tier{}, err
	}
	if exists {
		return domain.Tier{}, domain.ErrDuplicateLevel
	}

	now := time.Now().UTC()
	tier := domain.Tier{
		ID:              s.genID.Generate(),
		RestaurantID:    restaurantID,
		Name:            name,
		Level:           req.Level,
		MinTotalSpent:   req.MinTotalSpent,
		MinVisitCount:   req.MinVisitCount,
		MinPoints:       req.MinPoints,
		PointMultiplier: multiplier,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &tier); err != nil {
		return domain.Tier{}, err
	}

	return tier, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Tier, error) {
	restaurantID, ok := restaurantctx.RestaurantIDFromContext(ctx)
	if !ok || restaurantID == 0 {
		return nil, domain.ErrInvalidRestaurant
	}
	return s.repo.ListActive(ctx, s.db, restaurantID)
}

func (s *Service) Evaluate(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, currentTierID *snowflake.ID, stats domain.Stats) (domain.Evaluation, error) {
	if db == nil {
		db = s.db
	}

	tiers, err := s.repo.ListActive(ctx, db, restaurantID)
	if err != nil {
		return domain.Evaluation{}, err
	}

	eligible := Eligible(tiers, stats)

	currentLevel := -1
	var previous *domain.Tier
	if currentTierID != nil && *currentTierID != 0 {
		for i := range tiers {
			if tiers[i].ID == *currentTierID {
				previous = &tiers[i]
				currentLevel = tiers[i].Level
				break
			}
		}
	}

	eval := domain.Evaluation{
		Direction:    domain.TransitionNone,
		CurrentLevel: currentLevel,
		Eligible:     eligible,
		Previous:     previous,
	}

	eligibleLevel := -1
	if eligible != nil {
		eligibleLevel = eligible.Level
	}

	switch {
	case eligibleLevel > currentLevel:
		eval.Direction = domain.TransitionUpgrade
	case eligibleLevel < currentLevel:
		eval.Direction = domain.TransitionDowngrade
	}

	return eval, nil
}

// Eligible returns the highest-level tier whose thresholds the stats satisfy.
// Multiple tiers may qualify simultaneously; the maximum level always wins.
func Eligible(tiers []domain.Tier, stats domain.Stats) *domain.Tier {
	var best *domain.Tier
	for i := range tiers {
		if !tiers[i].Satisfies(stats) {
			continue
		}
		if best == nil || tiers[i].Level > best.Level {
			best = &tiers[i]
		}
	}
	return best
}
