package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tier *Tier) error
	FindByID(ctx context.Context, db *gorm.DB, restaurantID, id snowflake.ID) (*Tier, error)
	ListActive(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) ([]Tier, error)
	LevelExists(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, level int) (bool, error)
}

type CreateTierRequest struct {
	Name            string
	Level           int
	MinTotalSpent   *int64
	MinVisitCount   *int
	MinPoints       *int64
	PointMultiplier float64
}

// TransitionDirection classifies the outcome of a tier evaluation.
type TransitionDirection string

const (
	TransitionNone      TransitionDirection = "none"
	TransitionUpgrade   TransitionDirection = "upgrade"
	TransitionDowngrade TransitionDirection = "downgrade"
)

// Evaluation is the result of comparing a customer's stats against the
// restaurant's tier ladder.
type Evaluation struct {
	Direction    TransitionDirection `json:"direction"`
	CurrentLevel int                 `json:"current_level"`
	Eligible     *Tier               `json:"eligible,omitempty"`
	Previous     *Tier               `json:"previous,omitempty"`
}

// Changed reports whether the customer's tier reference moved.
func (e Evaluation) Changed() bool { return e.Direction != TransitionNone }

type Service interface {
	Create(context.Context, CreateTierRequest) (Tier, error)
	List(context.Context) ([]Tier, error)

	// Evaluate determines the eligible tier for the given stats and current
	// tier reference, using tiers loaded through the supplied handle so the
	// caller controls the transaction boundary. It does not persist anything.
	Evaluate(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, currentTierID *snowflake.ID, stats Stats) (Evaluation, error)
}

var (
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidLevel      = errors.New("invalid_level")
	ErrInvalidMultiplier = errors.New("invalid_multiplier")
	ErrDuplicateLevel    = errors.New("duplicate_level")
	ErrNotFound          = errors.New("not_found")
)
