// Package api exposes the storefront over HTTP with gin.
//
// Every cart route resolves the shopper session from the X-Session-ID
// header, then the sf_session cookie, and mints a new session (set as a
// cookie) when neither is present. Cart responses carry the cart snapshot
// and the notifications the request raised.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/storefront"
)

const (
	// SessionHeader carries the session ID for non-browser clients.
	SessionHeader = "X-Session-ID"
	// SessionCookie carries the session ID for browsers.
	SessionCookie = "sf_session"

	sessionKey = "storefront.session"
)

// Server holds the HTTP handlers.
type Server struct {
	sf       *storefront.Storefront
	logger   *slog.Logger
	basePath string
	metrics  http.Handler
	registry prometheus.Registerer

	cookieMaxAge int
	cookieSecure bool
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec

	engine *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBasePath mounts the API under a prefix. Defaults to "/api".
func WithBasePath(p string) Option {
	return func(s *Server) { s.basePath = p }
}

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithRequestMetrics records request counts and latency on reg.
func WithRequestMetrics(reg prometheus.Registerer) Option {
	return func(s *Server) { s.registry = reg }
}

// WithSessionCookie sets the session cookie lifetime and Secure flag.
func WithSessionCookie(maxAge time.Duration, secure bool) Option {
	return func(s *Server) {
		s.cookieMaxAge = int(maxAge.Seconds())
		s.cookieSecure = secure
	}
}

// New builds the router.
func New(sf *storefront.Storefront, opts ...Option) *Server {
	s := &Server{
		sf:           sf,
		logger:       slog.Default(),
		basePath:     "/api",
		cookieMaxAge: int((30 * 24 * time.Hour).Seconds()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"})
		s.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"})
		s.registry.MustRegister(s.requests, s.latency)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/healthz", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group(s.basePath)
	{
		products := api.Group("/products")
		{
			products.GET("", s.listProducts)
			products.GET("/:slug", s.getProduct)
		}

		cart := api.Group("/cart", s.session())
		{
			cart.GET("", s.getCart)
			cart.DELETE("", s.clearCart)
			cart.POST("/items", s.addItem)
			cart.PATCH("/items/:product_id", s.updateItem)
			cart.DELETE("/items/:product_id", s.removeItem)
			cart.PUT("/panel", s.setPanel)
			cart.POST("/coupon", s.applyCoupon)
			cart.DELETE("/coupon", s.removeCoupon)
		}

		checkout := api.Group("/checkout", s.session())
		{
			checkout.POST("/orders", s.createOrder)
			checkout.POST("/verify", s.verifyPayment)
		}
	}
	return r
}

// session resolves the shopper session and stores it on the context.
func (s *Server) session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := c.GetHeader(SessionHeader)
		if sid == "" {
			sid, _ = c.Cookie(SessionCookie) //nolint:errcheck // missing cookie leaves sid empty
		}
		if sid == "" {
			sid = s.sf.NewSessionID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sid, s.cookieMaxAge, "/", "", s.cookieSecure, true)
		}
		c.Header(SessionHeader, sid)
		c.Set(sessionKey, sid)
		c.Next()
	}
}

func sessionID(c *gin.Context) string { return c.GetString(sessionKey) }

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		if s.requests != nil {
			s.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			s.latency.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
		)
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.sf.Store().Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
