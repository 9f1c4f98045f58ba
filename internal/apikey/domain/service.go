package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	ScopeLoyaltyRead  = "loyalty:read"
	ScopeLoyaltyWrite = "loyalty:write"
	ScopeAdmin        = "admin"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Update(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByKeyID(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID, keyID string) (*APIKey, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, restaurantID snowflake.ID) ([]APIKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Rotate(ctx context.Context, keyID string) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error

	// Authenticate resolves a presented bearer token to its key record, or
	// ErrUnauthorized when unknown, inactive, or expired.
	Authenticate(ctx context.Context, plain string) (*APIKey, error)
}

type CreateRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type Response struct {
	KeyID            string     `json:"key_id"`
	Name             string     `json:"name"`
	Scopes           []string   `json:"scopes"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       *time.Time `json:"last_used_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RotatedFromKeyID *string    `json:"rotated_from_key_id"`
}

type SecretResponse struct {
	KeyID  string `json:"key_id"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidRestaurant = errors.New("invalid_restaurant")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidKeyID      = errors.New("invalid_key_id")
	ErrNotFound          = errors.New("not_found")
	ErrUnauthorized      = errors.New("unauthorized")
)
