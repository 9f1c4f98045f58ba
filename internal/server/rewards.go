package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	rewarddomain "github.com/stampkit/stampkit/internal/reward/domain"
)

type grantRewardRequest struct {
	CustomerID    string `json:"customer_id"`
	CampaignID    string `json:"campaign_id"`
	TransactionID string `json:"transaction_id"`
	Name          string `json:"name"`
}

func (s *Server) ListCustomerRewards(c *gin.Context) {
	customerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := rewarddomain.Status(strings.ToUpper(strings.TrimSpace(c.Query("status"))))

	rewards, err := s.rewardSvc.ListByCustomer(c.Request.Context(), customerID, status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rewards})
}

func (s *Server) GrantReward(c *gin.Context) {
	var req grantRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID, err := parseOptionalSnowflakeID(req.CustomerID)
	if err != nil || customerID == nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}
	campaignID, err := parseOptionalSnowflakeID(req.CampaignID)
	if err != nil {
		AbortWithError(c, newValidationError("campaign_id", "invalid_campaign_id", "invalid campaign_id"))
		return
	}
	transactionID, err := parseOptionalSnowflakeID(req.TransactionID)
	if err != nil {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "invalid transaction_id"))
		return
	}

	resp, err := s.rewardSvc.Grant(c.Request.Context(), rewarddomain.GrantRewardRequest{
		CustomerID:    *customerID,
		CampaignID:    campaignID,
		TransactionID: transactionID,
		Name:          strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), nil, "reward.grant", "reward", &targetID, map[string]any{
		"customer_id": resp.CustomerID.String(),
		"name":        resp.Name,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RedeemReward(c *gin.Context) {
	rewardID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.rewardSvc.Redeem(c.Request.Context(), rewardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), nil, "reward.redeem", "reward", &targetID, map[string]any{
		"customer_id": resp.CustomerID.String(),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
