package restaurantctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// RestaurantContextKey is the request context key for the active restaurant ID.
type RestaurantContextKey struct{}

// WithRestaurantID stores the restaurant ID in the context.
func WithRestaurantID(ctx context.Context, restaurantID int64) context.Context {
	return context.WithValue(ctx, RestaurantContextKey{}, restaurantID)
}

// RestaurantIDFromContext returns the restaurant ID from context, if set.
func RestaurantIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(RestaurantContextKey{})
	if value == nil {
		return 0, false
	}

	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
