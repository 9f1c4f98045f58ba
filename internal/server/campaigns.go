package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	campaigndomain "github.com/stampkit/stampkit/internal/campaign/domain"
)

type createCampaignRequest struct {
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	BuyQuantity         int64      `json:"buy_quantity"`
	MaxUsagePerCustomer *int64     `json:"max_usage_per_customer"`
	StartDate           *time.Time `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
	ProductIDs          []string   `json:"product_ids"`
}

func (s *Server) ListCampaigns(c *gin.Context) {
	activeOnly, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	campaigns, err := s.campaignSvc.List(c.Request.Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": campaigns})
}

func (s *Server) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	productIDs := make([]snowflake.ID, 0, len(req.ProductIDs))
	for _, raw := range req.ProductIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			AbortWithError(c, newValidationError("product_ids", "invalid_product_ids", "invalid product_ids"))
			return
		}
		productIDs = append(productIDs, id)
	}

	resp, err := s.campaignSvc.Create(c.Request.Context(), campaigndomain.CreateCampaignRequest{
		Name:                strings.TrimSpace(req.Name),
		Description:         strings.TrimSpace(req.Description),
		BuyQuantity:         req.BuyQuantity,
		MaxUsagePerCustomer: req.MaxUsagePerCustomer,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		ProductIDs:          productIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), nil, "campaign.create", "campaign", &targetID, map[string]any{
		"name":         resp.Name,
		"buy_quantity": resp.BuyQuantity,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCampaignByID(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.campaignSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetStampProgress reports one customer's stamp position on one campaign.
func (s *Server) GetStampProgress(c *gin.Context) {
	campaignID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	customerID, err := parsePathID(c, "customerId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	progress, err := s.campaignSvc.Progress(c.Request.Context(), campaignID, customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": progress})
}

// GetStampSummary reports the customer's position on every active campaign
// plus the combined stamps available for redemption.
func (s *Server) GetStampSummary(c *gin.Context) {
	customerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.campaignSvc.ProgressSummary(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
