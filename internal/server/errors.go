package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/kolopay/kolopay/internal/catalog/domain"
	gatewaydomain "github.com/kolopay/kolopay/internal/gateway/domain"
	orderdomain "github.com/kolopay/kolopay/internal/order/domain"
	payoutdomain "github.com/kolopay/kolopay/internal/payout/domain"
	referraldomain "github.com/kolopay/kolopay/internal/referral/domain"
	"github.com/kolopay/kolopay/internal/scheduler"
	userdomain "github.com/kolopay/kolopay/internal/user/domain"
	walletdomain "github.com/kolopay/kolopay/internal/wallet/domain"
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
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware turns the last gin error into the wire error shape.
// Handlers push domain errors with AbortWithError and never build payloads
// themselves.
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
	case errors.Is(err, ErrForbidden),
		errors.Is(err, orderdomain.ErrNotOwner),
		errors.Is(err, referraldomain.ErrRoleNotAllowed):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: err.Error(),
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, walletdomain.ErrInsufficientBalance),
		errors.Is(err, walletdomain.ErrInsufficientLocked),
		errors.Is(err, payoutdomain.ErrNoAvailableBalance):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_balance",
			Message: err.Error(),
		}
	case errors.Is(err, gatewaydomain.ErrProviderRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_rejected",
			Message: "payment provider rejected the request",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, scheduler.ErrUnknownJob),
		errors.Is(err, gatewaydomain.ErrProviderNotFound),
		errors.Is(err, gatewaydomain.ErrInvalidPayload):
		return true
	case errors.Is(err, userdomain.ErrInvalidName),
		errors.Is(err, userdomain.ErrInvalidPhone),
		errors.Is(err, userdomain.ErrInvalidRole),
		errors.Is(err, userdomain.ErrInvalidID):
		return true
	case errors.Is(err, catalogdomain.ErrInvalidSeller),
		errors.Is(err, catalogdomain.ErrInvalidTitle),
		errors.Is(err, catalogdomain.ErrInvalidPrice),
		errors.Is(err, catalogdomain.ErrInvalidID):
		return true
	case errors.Is(err, orderdomain.ErrEmptyCart),
		errors.Is(err, orderdomain.ErrInvalidQuantity),
		errors.Is(err, orderdomain.ErrInvalidShipping),
		errors.Is(err, orderdomain.ErrInvalidBuyer),
		errors.Is(err, orderdomain.ErrSellerMismatch),
		errors.Is(err, orderdomain.ErrProductInactive):
		return true
	case errors.Is(err, walletdomain.ErrInvalidUser),
		errors.Is(err, walletdomain.ErrInvalidAmount),
		errors.Is(err, walletdomain.ErrInvalidReference),
		errors.Is(err, walletdomain.ErrInvalidMovement):
		return true
	case errors.Is(err, referraldomain.ErrInvalidUser),
		errors.Is(err, referraldomain.ErrInvalidAmount),
		errors.Is(err, referraldomain.ErrSelfReferral),
		errors.Is(err, referraldomain.ErrWindowExpired):
		return true
	case errors.Is(err, payoutdomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrReferralCodeNotFound),
		errors.Is(err, catalogdomain.ErrNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, orderdomain.ErrSellerNotFound),
		errors.Is(err, orderdomain.ErrProductNotFound),
		errors.Is(err, gatewaydomain.ErrOrderNotFound),
		errors.Is(err, gatewaydomain.ErrPayinNotFound),
		errors.Is(err, payoutdomain.ErrPayoutNotFound),
		errors.Is(err, referraldomain.ErrCodeNotFound),
		errors.Is(err, walletdomain.ErrAccountNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrPhoneTaken),
		errors.Is(err, orderdomain.ErrAlreadyConfirmed),
		errors.Is(err, orderdomain.ErrPaymentNotEligible),
		errors.Is(err, orderdomain.ErrInvalidTransition),
		errors.Is(err, referraldomain.ErrAlreadyReferred),
		errors.Is(err, payoutdomain.ErrWithdrawInProgress):
		return true
	default:
		return false
	}
}
