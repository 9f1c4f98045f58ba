package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/stampkit/stampkit/internal/ledger/domain"
	"github.com/stampkit/stampkit/internal/restaurantctx"
)

type appendPointEntryRequest struct {
	EntryType     string     `json:"entry_type"`
	Amount        int64      `json:"amount"`
	Source        string     `json:"source"`
	Description   string     `json:"description"`
	TransactionID string     `json:"transaction_id"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

func (s *Server) ListPointEntries(c *gin.Context) {
	customerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries, err := s.ledgerSvc.List(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// AppendPointEntry records a manual ledger movement, typically a staff
// adjustment. The ledger service owns validation and the cached balance.
func (s *Server) AppendPointEntry(c *gin.Context) {
	customerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req appendPointEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	transactionID, err := parseOptionalSnowflakeID(req.TransactionID)
	if err != nil {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "invalid transaction_id"))
		return
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "manual"
	}

	entry, err := s.ledgerSvc.Append(c.Request.Context(), ledgerdomain.AppendRequest{
		CustomerID:    customerID,
		EntryType:     ledgerdomain.EntryType(strings.ToUpper(strings.TrimSpace(req.EntryType))),
		Amount:        req.Amount,
		Source:        source,
		Description:   strings.TrimSpace(req.Description),
		TransactionID: transactionID,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := customerID.String()
	_ = s.auditSvc.Record(c.Request.Context(), nil, "points.append", "customer", &targetID, map[string]any{
		"entry_id":   entry.ID.String(),
		"entry_type": string(entry.EntryType),
		"amount":     entry.Amount,
		"source":     entry.Source,
	})

	c.JSON(http.StatusOK, gin.H{"data": entry})
}

// RecalculatePoints replays one customer's ledger and repairs drift. The
// cross-instance lock keeps concurrent recalculations of the same customer
// from interleaving.
func (s *Server) RecalculatePoints(c *gin.Context) {
	customerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	restaurantID, _ := restaurantctx.RestaurantIDFromContext(ctx)

	if s.guard.Enabled() {
		token, locked, err := s.guard.TryLockCustomer(ctx, restaurantID, customerID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !locked {
			AbortWithError(c, ErrRateLimited)
			return
		}
		defer func() {
			_ = s.guard.ReleaseCustomer(ctx, restaurantID, customerID, token)
		}()
	}

	result, err := s.ledgerSvc.Recalculate(ctx, customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Status != ledgerdomain.ReconcileUnchanged {
		targetID := customerID.String()
		_ = s.auditSvc.Record(ctx, nil, "points.recalculate", "customer", &targetID, map[string]any{
			"old_balance": result.OldBalance,
			"new_balance": result.NewBalance,
			"status":      string(result.Status),
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// RecalculateAllPoints replays every customer of the restaurant. Per
// customer failures are reported in the payload, never abort the batch.
func (s *Server) RecalculateAllPoints(c *gin.Context) {
	ctx := c.Request.Context()
	restaurantID, _ := restaurantctx.RestaurantIDFromContext(ctx)

	if s.guard.Enabled() {
		allowed, err := s.guard.AllowRecalcAll(ctx, restaurantID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !allowed.Allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	result, err := s.ledgerSvc.RecalculateAll(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	_ = s.auditSvc.Record(ctx, nil, "points.recalculate_all", "restaurant", nil, map[string]any{
		"processed": result.Processed,
		"corrected": result.Corrected,
		"failed":    result.Failed,
	})

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func parsePathID(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return id, nil
}
