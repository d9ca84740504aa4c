package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-cleanhttp"
)

// DefaultGatewayURL is the Razorpay REST endpoint.
const DefaultGatewayURL = "https://api.razorpay.com"

// HTTPGateway talks to a Razorpay-compatible orders API.
type HTTPGateway struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
	backOff   backoff.BackOff
	maxTries  uint
	logger    *slog.Logger
}

// GatewayOption configures an HTTPGateway.
type GatewayOption func(*HTTPGateway)

// WithBaseURL points the gateway at another host, e.g. a sandbox or test server.
func WithBaseURL(u string) GatewayOption {
	return func(g *HTTPGateway) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the pooled client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *HTTPGateway) { g.client = c }
}

// WithRetry sets the retry schedule for transient failures.
func WithRetry(b backoff.BackOff, maxTries uint) GatewayOption {
	return func(g *HTTPGateway) {
		g.backOff = b
		g.maxTries = maxTries
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *HTTPGateway) { g.logger = l }
}

// NewHTTPGateway creates a gateway client authenticated with the key pair.
func NewHTTPGateway(keyID, keySecret string, opts ...GatewayOption) *HTTPGateway {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = 15 * time.Second

	g := &HTTPGateway{
		baseURL:   DefaultGatewayURL,
		keyID:     keyID,
		keySecret: keySecret,
		client:    client,
		backOff:   backoff.NewExponentialBackOff(),
		maxTries:  3,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *HTTPGateway) Name() string  { return "razorpay" }
func (g *HTTPGateway) KeyID() string { return g.keyID }

// CreateOrder posts to /v1/orders. Transport errors, 429 and 5xx replies
// are retried; other 4xx replies fail immediately.
func (g *HTTPGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("payment: encode order request: %w", err)
	}

	attempt := 0
	op := func() (*GatewayOrder, error) {
		attempt++
		return g.createOrder(ctx, body)
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(g.backOff),
		backoff.WithMaxTries(g.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.logger.Warn("gateway order request failed, retrying",
				"attempt", attempt,
				"receipt", req.Receipt,
				"next", next,
				"error", err,
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *HTTPGateway) createOrder(ctx context.Context, body []byte) (*GatewayOrder, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("payment: build request: %w", err))
	}
	httpReq.SetBasicAuth(g.keyID, g.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment: gateway request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("payment: read gateway response: %w", err)
	}

	if resp.StatusCode >= 300 {
		gerr := decodeGatewayError(resp.StatusCode, data)
		if gerr.Retryable() {
			return nil, gerr
		}
		return nil, backoff.Permanent(gerr)
	}

	var out GatewayOrder
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("payment: decode gateway order: %w", err))
	}
	if out.ID == "" {
		return nil, backoff.Permanent(fmt.Errorf("payment: gateway order without id"))
	}
	return &out, nil
}

func decodeGatewayError(status int, data []byte) *GatewayError {
	var body struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	gerr := &GatewayError{StatusCode: status}
	if json.Unmarshal(data, &body) == nil {
		gerr.Code = body.Error.Code
		gerr.Description = body.Error.Description
	}
	return gerr
}
