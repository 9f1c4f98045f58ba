package option

import (
	"time"

	"github.com/stampkit/stampkit/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a GORM statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB { return f(stmt) }

// ApplyPagination applies cursor pagination: results after the cursor row,
// fetching one extra row so callers can detect another page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 50
		}
		if size > 250 {
			size = 250
		}

		if page.PageToken != "" {
			cursor, err := pagination.DecodeCursor(page.PageToken)
			if err == nil && cursor != nil && cursor.CreatedAt != "" {
				if createdAt, parseErr := time.Parse(time.RFC3339, cursor.CreatedAt); parseErr == nil {
					stmt = stmt.Where(
						"(created_at < ?) OR (created_at = ? AND id < ?)",
						createdAt, createdAt, cursor.ID,
					)
				}
			}
		}

		return stmt.Limit(size + 1)
	})
}

// Limit caps the number of returned rows.
func Limit(n int) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if n > 0 {
			stmt = stmt.Limit(n)
		}
		return stmt
	})
}
