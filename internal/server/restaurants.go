package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	restaurantdomain "github.com/stampkit/stampkit/internal/restaurant/domain"
)

func (s *Server) GetRestaurant(c *gin.Context) {
	resp, err := s.restaurantSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateRestaurant(c *gin.Context) {
	var req restaurantdomain.UpdateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.restaurantSvc.Update(c.Request.Context(), restaurantdomain.UpdateRestaurantRequest{
		Name:         strings.TrimSpace(req.Name),
		TimezoneName: strings.TrimSpace(req.TimezoneName),
		Currency:     strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), nil, "restaurant.update", "restaurant", &targetID, map[string]any{
		"name": resp.Name,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
