package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/types"
)

type productView struct {
	*product.Product
	DiscountPercent int `json:"discount_percent"`
}

func viewProduct(p *product.Product) productView {
	return productView{Product: p, DiscountPercent: p.DiscountPercent()}
}

// GET /api/products?category=&page=&limit=
func (s *Server) listProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))   //nolint:errcheck // bad input falls back to defaults
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "24")) //nolint:errcheck // bad input falls back to defaults
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 24
	}

	products, err := s.sf.ListProducts(c.Request.Context(), product.ListOpts{
		Category:   c.Query("category"),
		ActiveOnly: true,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		s.internalError(c, "list products", err)
		return
	}

	data := make([]productView, len(products))
	for i, p := range products {
		data[i] = viewProduct(p)
	}
	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": gin.H{"page": page, "limit": limit},
	})
}

// GET /api/products/:slug
func (s *Server) getProduct(c *gin.Context) {
	p, err := s.sf.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, storefront.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		s.internalError(c, "get product", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": viewProduct(p)})
}

// money renders a price the way the storefront shows it.
func money(m types.Money) gin.H {
	return gin.H{"amount": m.Amount, "currency": m.Currency, "display": m.String()}
}
