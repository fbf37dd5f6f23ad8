package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kolopay/kolopay/internal/authcontext"
	walletdomain "github.com/kolopay/kolopay/internal/wallet/domain"
)

func (s *Server) GetWallet(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	account, err := s.walletSvc.GetOrCreateAccount(c.Request.Context(), identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) ListWalletTransactions(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	txns, err := s.walletSvc.ListTransactions(c.Request.Context(), walletdomain.ListTransactionsRequest{
		UserID: identity.UserID,
		Limit:  query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txns})
}
