package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	transactiondomain "github.com/stampkit/stampkit/internal/transaction/domain"
)

type transactionItemRequest struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	IsFree    bool   `json:"is_free"`
}

type stampRedemptionRequest struct {
	CampaignID string `json:"campaign_id"`
	Stamps     int64  `json:"stamps"`
}

type createTransactionRequest struct {
	CustomerID  string                   `json:"customer_id"`
	OrderNumber string                   `json:"order_number"`
	Items       []transactionItemRequest `json:"items"`
	PointsUsed  int64                    `json:"points_used"`
	Redemptions []stampRedemptionRequest `json:"redemptions"`
}

type cancelTransactionRequest struct {
	TransactionID string                        `json:"transaction_id"`
	OrderNumber   string                        `json:"order_number"`
	Reason        string                        `json:"reason"`
	Steps         *transactiondomain.CancelSteps `json:"steps"`
}

func (s *Server) CreateTransaction(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customerID, err := parseOptionalSnowflakeID(req.CustomerID)
	if err != nil || customerID == nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}

	items := make([]transactiondomain.CreateTransactionItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := parseOptionalSnowflakeID(item.ProductID)
		if err != nil {
			AbortWithError(c, newValidationError("items", "invalid_items", "invalid product_id"))
			return
		}
		var pid snowflake.ID
		if productID != nil {
			pid = *productID
		}
		items = append(items, transactiondomain.CreateTransactionItem{
			ProductID: pid,
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			IsFree:    item.IsFree,
		})
	}

	redemptions := make([]transactiondomain.StampRedemption, 0, len(req.Redemptions))
	for _, redemption := range req.Redemptions {
		campaignID, err := parseOptionalSnowflakeID(redemption.CampaignID)
		if err != nil || campaignID == nil {
			AbortWithError(c, newValidationError("redemptions", "invalid_redemptions", "invalid campaign_id"))
			return
		}
		redemptions = append(redemptions, transactiondomain.StampRedemption{
			CampaignID: *campaignID,
			Stamps:     redemption.Stamps,
		})
	}

	resp, err := s.transactionSvc.Create(c.Request.Context(), transactiondomain.CreateTransactionRequest{
		CustomerID:  *customerID,
		OrderNumber: strings.TrimSpace(req.OrderNumber),
		Items:       items,
		PointsUsed:  req.PointsUsed,
		Redemptions: redemptions,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := resp.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), nil, "transaction.create", "transaction", &targetID, map[string]any{
		"order_number": resp.OrderNumber,
		"total_amount": resp.TotalAmount,
		"customer_id":  resp.CustomerID.String(),
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTransactionByID(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.transactionSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// FindTransaction looks a transaction up by order number, or lists a
// customer's recent transactions.
func (s *Server) FindTransaction(c *gin.Context) {
	orderNumber := strings.TrimSpace(c.Query("order_number"))
	if orderNumber != "" {
		resp, err := s.transactionSvc.GetByOrderNumber(c.Request.Context(), orderNumber)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": resp})
		return
	}

	customerID, err := parseOptionalSnowflakeID(c.Query("customer_id"))
	if err != nil || customerID == nil {
		AbortWithError(c, newValidationError("customer_id", "invalid_customer_id", "invalid customer_id"))
		return
	}

	limit, err := parseOptionalInt64(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	resolved := 50
	if limit != nil && *limit > 0 {
		resolved = int(*limit)
	}

	transactions, err := s.transactionSvc.ListByCustomer(c.Request.Context(), *customerID, resolved)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transactions})
}

// CancelTransaction compensates a completed sale, selected by transaction
// id or order number. Omitted steps default to the full compensation.
func (s *Server) CancelTransaction(c *gin.Context) {
	var req cancelTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	transactionID, err := parseOptionalSnowflakeID(req.TransactionID)
	if err != nil {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "invalid transaction_id"))
		return
	}

	orderNumber := strings.TrimSpace(req.OrderNumber)
	if transactionID == nil && orderNumber == "" {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "transaction_id or order_number is required"))
		return
	}

	var id snowflake.ID
	if transactionID != nil {
		id = *transactionID
	}

	s.cancelTransaction(c, transactiondomain.CancelTransactionRequest{
		TransactionID: id,
		OrderNumber:   orderNumber,
		Reason:        strings.TrimSpace(req.Reason),
		Steps:         resolveCancelSteps(req.Steps),
	})
}

// CancelTransactionByID is CancelTransaction with the id in the path.
func (s *Server) CancelTransactionByID(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.cancelTransaction(c, transactiondomain.CancelTransactionRequest{
		TransactionID: id,
		Reason:        strings.TrimSpace(req.Reason),
		Steps:         resolveCancelSteps(req.Steps),
	})
}

func (s *Server) cancelTransaction(c *gin.Context, req transactiondomain.CancelTransactionRequest) {
	result, err := s.transactionSvc.Cancel(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	targetID := result.Transaction.ID.String()
	_ = s.auditSvc.Record(c.Request.Context(), nil, "transaction.cancel", "transaction", &targetID, map[string]any{
		"order_number":    result.Transaction.OrderNumber,
		"points_refunded": result.PointsRefunded,
		"points_revoked":  result.PointsRevoked,
		"stamps_returned": result.StampsReturned,
		"rewards_revoked": result.RewardsRevoked,
		"tier_downgraded": result.TierDowngraded,
	})

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func resolveCancelSteps(steps *transactiondomain.CancelSteps) transactiondomain.CancelSteps {
	if steps == nil {
		return transactiondomain.CancelSteps{
			RefundPoints:        true,
			CancelCampaignUsage: true,
			CancelStamps:        true,
			CancelRewards:       true,
			CheckTierDowngrade:  true,
		}
	}
	return *steps
}
