package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/storefront"
)

type createOrderRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
}

type verifyRequest struct {
	OrderID          string `json:"order_id" binding:"required"`
	GatewayOrderID   string `json:"razorpay_order_id" binding:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature        string `json:"razorpay_signature" binding:"required"`
}

// POST /api/checkout/orders
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	co, err := s.sf.PlaceOrder(c.Request.Context(), sessionID(c), storefront.CheckoutInput{Email: req.Email})
	switch {
	case err == nil:
	case errors.Is(err, storefront.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Your cart is empty"})
		return
	case errors.Is(err, storefront.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Checkout is already in progress"})
		return
	case errors.Is(err, storefront.ErrGatewayFailed):
		s.logger.Error("create gateway order", "session_id", sessionID(c), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create order"})
		return
	default:
		s.internalError(c, "place order", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":         co.Order.ID.String(),
		"receipt":          co.Order.Receipt,
		"gateway_order_id": co.GatewayOrder.ID,
		"amount":           co.Order.Total.MinorUnits(),
		"currency":         co.GatewayOrder.Currency,
		"total":            money(co.Order.Total),
		"key_id":           co.KeyID,
	})
}

// POST /api/checkout/verify
func (s *Server) verifyPayment(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing payment details"})
		return
	}

	res, err := s.sf.VerifyPayment(c.Request.Context(), storefront.VerifyInput{
		OrderID:          req.OrderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case storefront.IsSignatureMismatch(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Payment verification failed"})
	default:
		s.logger.Error("verify payment", "order_id", req.OrderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Payment verification failed"})
	}
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Log(c.Request.Context(), slog.LevelError, op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
}
