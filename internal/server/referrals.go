package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kolopay/kolopay/internal/authcontext"
)

type applyReferralRequest struct {
	Code string `json:"code"`
}

func (s *Server) ApplyReferralCode(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var req applyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	referral, err := s.referralSvc.ApplyReferralCode(c.Request.Context(), identity.UserID, strings.TrimSpace(req.Code))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": referral})
}

func (s *Server) ListCommissions(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	commissions, err := s.referralSvc.ListCommissions(c.Request.Context(), identity.UserID, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": commissions})
}

func (s *Server) GetReferralStats(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	stats, err := s.referralSvc.GetStats(c.Request.Context(), identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
