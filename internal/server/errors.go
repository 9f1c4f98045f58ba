package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/stampkit/stampkit/internal/apikey/domain"
	auditdomain "github.com/stampkit/stampkit/internal/audit/domain"
	campaigndomain "github.com/stampkit/stampkit/internal/campaign/domain"
	customerdomain "github.com/stampkit/stampkit/internal/customer/domain"
	ledgerdomain "github.com/stampkit/stampkit/internal/ledger/domain"
	notificationdomain "github.com/stampkit/stampkit/internal/notification/domain"
	restaurantdomain "github.com/stampkit/stampkit/internal/restaurant/domain"
	rewarddomain "github.com/stampkit/stampkit/internal/reward/domain"
	tierdomain "github.com/stampkit/stampkit/internal/tier/domain"
	transactiondomain "github.com/stampkit/stampkit/internal/transaction/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, apikeydomain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "rate limited, retry later",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger the coarse error class so
// 4xx noise does not page anyone.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "server_error", payload.Type
	}
	return "client_error", payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isCustomerValidationError(err),
		isTierValidationError(err),
		isLedgerValidationError(err),
		isCampaignValidationError(err),
		isRewardValidationError(err),
		isTransactionValidationError(err),
		isRestaurantValidationError(err),
		isAPIKeyValidationError(err),
		isAuditValidationError(err),
		errors.Is(err, notificationdomain.ErrInvalidRestaurant),
		errors.Is(err, notificationdomain.ErrInvalidToken),
		errors.Is(err, notificationdomain.ErrInvalidCustomer):
		return true
	default:
		return false
	}
}

func isCustomerValidationError(err error) bool {
	switch {
	case errors.Is(err, customerdomain.ErrInvalidRestaurant),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidPhone),
		errors.Is(err, customerdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isTierValidationError(err error) bool {
	switch {
	case errors.Is(err, tierdomain.ErrInvalidRestaurant),
		errors.Is(err, tierdomain.ErrInvalidName),
		errors.Is(err, tierdomain.ErrInvalidLevel),
		errors.Is(err, tierdomain.ErrInvalidMultiplier):
		return true
	default:
		return false
	}
}

func isLedgerValidationError(err error) bool {
	switch {
	case errors.Is(err, ledgerdomain.ErrInvalidRestaurant),
		errors.Is(err, ledgerdomain.ErrInvalidCustomer),
		errors.Is(err, ledgerdomain.ErrInvalidEntryType),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidSource):
		return true
	default:
		return false
	}
}

func isCampaignValidationError(err error) bool {
	switch {
	case errors.Is(err, campaigndomain.ErrInvalidRestaurant),
		errors.Is(err, campaigndomain.ErrInvalidName),
		errors.Is(err, campaigndomain.ErrInvalidBuyQuantity),
		errors.Is(err, campaigndomain.ErrInvalidDateRange),
		errors.Is(err, campaigndomain.ErrInvalidStampCount),
		errors.Is(err, campaigndomain.ErrCampaignInactive),
		errors.Is(err, campaigndomain.ErrInsufficientStamps),
		errors.Is(err, campaigndomain.ErrUsageLimitExceeded):
		return true
	default:
		return false
	}
}

func isRewardValidationError(err error) bool {
	switch {
	case errors.Is(err, rewarddomain.ErrInvalidRestaurant),
		errors.Is(err, rewarddomain.ErrInvalidCustomer),
		errors.Is(err, rewarddomain.ErrInvalidName),
		errors.Is(err, rewarddomain.ErrNotRedeemable):
		return true
	default:
		return false
	}
}

func isTransactionValidationError(err error) bool {
	switch {
	case errors.Is(err, transactiondomain.ErrInvalidRestaurant),
		errors.Is(err, transactiondomain.ErrInvalidCustomer),
		errors.Is(err, transactiondomain.ErrInvalidOrderNumber),
		errors.Is(err, transactiondomain.ErrInvalidItems),
		errors.Is(err, transactiondomain.ErrInvalidPointsUsed),
		errors.Is(err, transactiondomain.ErrAlreadyCancelled):
		return true
	default:
		return false
	}
}

func isRestaurantValidationError(err error) bool {
	switch {
	case errors.Is(err, restaurantdomain.ErrMissingContextID),
		errors.Is(err, restaurantdomain.ErrInvalidName),
		errors.Is(err, restaurantdomain.ErrInvalidTimezone),
		errors.Is(err, restaurantdomain.ErrInvalidCurrency):
		return true
	default:
		return false
	}
}

func isAPIKeyValidationError(err error) bool {
	switch {
	case errors.Is(err, apikeydomain.ErrInvalidRestaurant),
		errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidKeyID):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidRestaurant),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, transactiondomain.ErrDuplicateOrder),
		errors.Is(err, tierdomain.ErrDuplicateLevel),
		errors.Is(err, restaurantdomain.ErrDuplicateSlug):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, transactiondomain.ErrDuplicateOrder):
		return "order number already exists"
	case errors.Is(err, tierdomain.ErrDuplicateLevel):
		return "tier level already exists"
	case errors.Is(err, restaurantdomain.ErrDuplicateSlug):
		return "restaurant slug already exists"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, tierdomain.ErrNotFound),
		errors.Is(err, campaigndomain.ErrNotFound),
		errors.Is(err, rewarddomain.ErrNotFound),
		errors.Is(err, transactiondomain.ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, restaurantdomain.ErrNotFound),
		errors.Is(err, ledgerdomain.ErrCustomerNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
