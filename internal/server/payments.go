package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kolopay/kolopay/internal/authcontext"
	gatewaydomain "github.com/kolopay/kolopay/internal/gateway/domain"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type initiatePayinRequest struct {
	OrderID      string `json:"order_id"`
	Provider     string `json:"provider"`
	PayerContact string `json:"payer_contact"`
	Channel      string `json:"channel"`
}

func (s *Server) InitiatePayin(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var req initiatePayinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	orderID, err := snowflake.ParseString(strings.TrimSpace(req.OrderID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payin, err := s.gatewaySvc.InitiatePayIn(c.Request.Context(), gatewaydomain.InitiatePayinRequest{
		OrderID:      orderID,
		ClientID:     identity.UserID,
		Provider:     strings.TrimSpace(req.Provider),
		PayerContact: strings.TrimSpace(req.PayerContact),
		Channel:      strings.TrimSpace(req.Channel),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": payin})
}

func (s *Server) VerifyPayin(c *gin.Context) {
	providerTxID := strings.TrimSpace(c.Param("providerTxId"))

	payin, err := s.gatewaySvc.VerifyPayIn(c.Request.Context(), providerTxID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payin})
}

// PayoutWebhook always acks with 200 once the payload is read: providers
// retry on anything else, and settlement is idempotent anyway. Internal
// failures are logged, never surfaced.
func (s *Server) PayoutWebhook(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			s.log.Warn("payout webhook body unreadable",
				zap.String("provider", provider),
				zap.Error(err),
			)
			c.JSON(http.StatusOK, gin.H{"status": "received"})
			return
		}

		signature := c.GetHeader("X-Webhook-Signature")
		if err := s.payoutSvc.HandleWebhook(c.Request.Context(), provider, payload, signature); err != nil {
			s.log.Warn("payout webhook processing failed",
				zap.String("provider", provider),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusOK, gin.H{"status": "received"})
	}
}
