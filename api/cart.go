package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/id"
)

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,gte=1,lte=99"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,lte=99"`
}

type panelRequest struct {
	Open bool `json:"open"`
}

type couponRequest struct {
	Code string `json:"code"`
}

// outcome writes a cart mutation result.
func outcome(c *gin.Context, status int, out cart.Outcome) {
	c.JSON(status, gin.H{
		"cart":          out.Cart,
		"notifications": out.Notifications,
	})
}

func (s *Server) cart(c *gin.Context) (*cart.Store, bool) {
	store, err := s.sf.Cart(c.Request.Context(), sessionID(c))
	if err != nil {
		s.internalError(c, "load cart", err)
		return nil, false
	}
	return store, true
}

// GET /api/cart
func (s *Server) getCart(c *gin.Context) {
	store, ok := s.cart(c)
	if !ok {
		return
	}
	outcome(c, http.StatusOK, cart.Outcome{Cart: store.Snapshot(), Notifications: []cart.Notification{}})
}

// POST /api/cart/items
func (s *Server) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	productID, err := id.ParseProductID(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	out, err := s.sf.AddProduct(c.Request.Context(), sessionID(c), productID, req.Quantity)
	switch {
	case err == nil:
		outcome(c, http.StatusOK, out)
	case errors.Is(err, storefront.ErrProductNotFound), errors.Is(err, storefront.ErrProductInactive):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, cart.ErrInvalidItem):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": cart.UserMessage(err)})
	default:
		s.internalError(c, "add item", err)
	}
}

// PATCH /api/cart/items/:product_id
func (s *Server) updateItem(c *gin.Context) {
	productID, err := id.ParseProductID(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store, ok := s.cart(c)
	if !ok {
		return
	}
	outcome(c, http.StatusOK, store.UpdateQuantity(c.Request.Context(), productID, *req.Quantity))
}

// DELETE /api/cart/items/:product_id
func (s *Server) removeItem(c *gin.Context) {
	productID, err := id.ParseProductID(c.Param("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}
	store, ok := s.cart(c)
	if !ok {
		return
	}
	outcome(c, http.StatusOK, store.RemoveItem(c.Request.Context(), productID))
}

// DELETE /api/cart
func (s *Server) clearCart(c *gin.Context) {
	store, ok := s.cart(c)
	if !ok {
		return
	}
	outcome(c, http.StatusOK, store.ClearCart(c.Request.Context()))
}

// PUT /api/cart/panel
func (s *Server) setPanel(c *gin.Context) {
	var req panelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store, ok := s.cart(c)
	if !ok {
		return
	}
	outcome(c, http.StatusOK, store.SetPanelOpen(req.Open))
}

// POST /api/cart/coupon
//
// A rejected coupon is a 422 carrying the unchanged cart and the rejection
// notification, whose message is safe to show.
func (s *Server) applyCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	store, ok := s.cart(c)
	if !ok {
		return
	}
	out, err := store.ApplyCoupon(c.Request.Context(), req.Code)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, cart.ErrCouponApplyInProgress) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":         cart.UserMessage(err),
			"cart":          out.Cart,
			"notifications": out.Notifications,
		})
		return
	}
	outcome(c, http.StatusOK, out)
}

// DELETE /api/cart/coupon
func (s *Server) removeCoupon(c *gin.Context) {
	store, ok := s.cart(c)
	if !ok {
		return
	}
	outcome(c, http.StatusOK, store.RemoveCoupon(c.Request.Context()))
}
