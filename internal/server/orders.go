package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/kolopay/kolopay/internal/authcontext"
	orderdomain "github.com/kolopay/kolopay/internal/order/domain"
)

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	SellerID        string                   `json:"seller_id"`
	Items           []createOrderItemRequest `json:"items"`
	ShippingFee     int64                    `json:"shipping_fee"`
	DeliveryAddress string                   `json:"delivery_address"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sellerID, err := snowflake.ParseString(strings.TrimSpace(req.SellerID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	items := make([]orderdomain.CreateOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := snowflake.ParseString(strings.TrimSpace(item.ProductID))
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		items = append(items, orderdomain.CreateOrderItem{
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}

	order, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateOrderRequest{
		BuyerID:         identity.UserID,
		SellerID:        sellerID,
		Items:           items,
		ShippingFee:     req.ShippingFee,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) GetOrder(c *gin.Context) {
	orderID, err := orderIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.GetByID(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ListOrders(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	orders, err := s.orderSvc.ListByBuyer(c.Request.Context(), identity.UserID, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (s *Server) ConfirmOrder(c *gin.Context) {
	identity, _ := authcontext.IdentityFromContext(c.Request.Context())

	orderID, err := orderIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.ConfirmByClient(c.Request.Context(), orderID, identity.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) AssignOrder(c *gin.Context) {
	s.transitionOrder(c, s.orderSvc.MarkAssigned)
}

func (s *Server) ShipOrder(c *gin.Context) {
	s.transitionOrder(c, s.orderSvc.MarkShipped)
}

func (s *Server) DeliverOrder(c *gin.Context) {
	s.transitionOrder(c, s.orderSvc.MarkDelivered)
}

func (s *Server) transitionOrder(c *gin.Context, fn func(ctx context.Context, orderID snowflake.ID) (orderdomain.Order, error)) {
	orderID, err := orderIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := fn(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelOrder(c *gin.Context) {
	orderID, err := orderIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	order, err := s.orderSvc.Cancel(c.Request.Context(), orderID, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func orderIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return 0, ErrInvalidRequest
	}
	return id, nil
}
