package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tierdomain "github.com/stampkit/stampkit/internal/tier/domain"
)

type createTierRequest struct {
	Name            string  `json:"name"`
	Level           int     `json:"level"`
	MinTotalSpent   *int64  `json:"min_total_spent"`
	MinVisitCount   *int    `json:"min_visit_count"`
	MinPoints       *int64  `json:"min_points"`
	PointMultiplier float64 `json:"point_multiplier"`
}

func (s *Server) ListTiers(c *gin.Context) {
	tiers, err := s.tierSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tiers})
}

func (s *Server) CreateTier(c *gin.Context) {
	var req createTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tierSvc.Create(c.Request.Context(), tierdomain.CreateTierRequest{
		Name:            strings.TrimSpace(req.Name),
		Level:           req.Level,
		MinTotalSpent:   req.MinTotalSpent,
		MinVisitCount:   req.MinVisitCount,
		MinPoints:       req.MinPoints,
		PointMultiplier: req.PointMultiplier,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), nil, "tier.create", "tier", &targetID, map[string]any{
		"name":  resp.Name,
		"level": resp.Level,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
