package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kolopay/kolopay/internal/authcontext"
	catalogdomain "github.com/kolopay/kolopay/internal/catalog/domain"
)

type createProductRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
}

func (s *Server) CreateProduct(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	product, err := s.catalogSvc.Create(c.Request.Context(), catalogdomain.CreateProductRequest{
		SellerID:    identity.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Image:       strings.TrimSpace(req.Image),
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": product})
}

func (s *Server) ListProducts(c *gin.Context) {
	var query struct {
		SellerID string `form:"seller_id"`
		Limit    int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sellerID, err := snowflake.ParseString(strings.TrimSpace(query.SellerID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	products, err := s.catalogSvc.ListBySeller(c.Request.Context(), sellerID, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products})
}
