package server

import (
	"errors"
	"net/http"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	invoicedomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/domain"
	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	orderdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/domain"
	plandomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/pkg/money"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
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

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, orderdomain.ErrInvalidPayload),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, billingdomain.ErrInvalidCurrency),
		errors.Is(err, plandomain.ErrInvalidPlan),
		errors.Is(err, plandomain.ErrMissingCurrency),
		errors.Is(err, plandomain.ErrMissingLocale),
		errors.Is(err, plandomain.ErrIntervalRequired),
		errors.Is(err, plandomain.ErrUnknownBilling):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}

	case errors.Is(err, billingdomain.ErrCapExceeded):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "cap_exceeded",
			Message: "usage cap exceeded for the current period",
		}

	case errors.Is(err, billingdomain.ErrNotUsagePlan),
		errors.Is(err, plandomain.ErrPlanNotActive):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: "operation not valid for this plan",
		}

	case errors.Is(err, billingdomain.ErrAlreadyResolved),
		errors.Is(err, billingdomain.ErrConcurrentStateConflict),
		errors.Is(err, plandomain.ErrPlanCodeTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}

	case errors.Is(err, ErrNotFound),
		errors.Is(err, merchantdomain.ErrMerchantNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, invoicedomain.ErrOrderNotFound),
		errors.Is(err, billingdomain.ErrSubscriptionNotFound),
		errors.Is(err, billingdomain.ErrNoActiveSubscription),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}

	// The merchant never sees gateway internals; a declined charge
	// reads the same as any other payment failure.
	case errors.Is(err, billingdomain.ErrChargeDeclined):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_failed",
			Message: "payment could not be completed",
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
