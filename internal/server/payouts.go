package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kolopay/kolopay/internal/authcontext"
	payoutdomain "github.com/kolopay/kolopay/internal/payout/domain"
)

type createPayoutRequest struct {
	Provider string `json:"provider"`
	Contact  string `json:"contact"`
	Channel  string `json:"channel"`
}

func (s *Server) CreatePayout(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var req createPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payout, err := s.payoutSvc.WithdrawAll(c.Request.Context(), payoutdomain.WithdrawRequest{
		SellerID: identity.UserID,
		Provider: strings.TrimSpace(req.Provider),
		Contact:  strings.TrimSpace(req.Contact),
		Channel:  strings.TrimSpace(req.Channel),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": payout})
}

func (s *Server) ListPayouts(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payouts, err := s.payoutSvc.ListBySeller(c.Request.Context(), identity.UserID, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payouts})
}
