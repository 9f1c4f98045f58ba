package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	notificationdomain "github.com/stampkit/stampkit/internal/notification/domain"
)

type subscribePushRequest struct {
	CustomerID string `json:"customer_id"`
	Token      string `json:"token"`
	Platform   string `json:"platform"`
}

type unsubscribePushRequest struct {
	Token string `json:"token"`
}

func (s *Server) SubscribePush(c *gin.Context) {
	var req subscribePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID, err := parseOptionalSnowflakeID(req.CustomerID)
	if err != nil || customerID == nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}

	resp, err := s.notificationSvc.Subscribe(c.Request.Context(), notificationdomain.SubscribeRequest{
		CustomerID: *customerID,
		Token:      strings.TrimSpace(req.Token),
		Platform:   strings.TrimSpace(req.Platform),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnsubscribePush(c *gin.Context) {
	var req unsubscribePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.notificationSvc.Unsubscribe(c.Request.Context(), strings.TrimSpace(req.Token)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
