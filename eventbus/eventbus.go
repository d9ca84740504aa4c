// Package eventbus publishes storefront events to Kafka as JSON envelopes.
//
// Checkout events are keyed by order ID and cart events by session ID, so a
// hash balancer keeps each order's and each cart's events on one partition
// in the order they happened.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Publisher)(nil)
	_ plugin.OnShutdown        = (*Publisher)(nil)
	_ plugin.OnCartEvent       = (*Publisher)(nil)
	_ plugin.OnOrderPlaced     = (*Publisher)(nil)
	_ plugin.OnPaymentVerified = (*Publisher)(nil)
	_ plugin.OnPaymentRejected = (*Publisher)(nil)
)

// Event types carried in Envelope.Type.
const (
	TypeCartEvent       = "cart.event"
	TypeOrderPlaced     = "order.placed"
	TypePaymentVerified = "payment.verified"
	TypePaymentRejected = "payment.rejected"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	Type string          `json:"type"`
	Key  string          `json:"key"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Publisher is a plugin that forwards storefront events to a Kafka topic.
type Publisher struct {
	writer     Writer
	cartEvents bool
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithCartEvents enables publishing of per-item cart notifications. They are
// off by default since they are high volume.
func WithCartEvents(enabled bool) Option {
	return func(p *Publisher) { p.cartEvents = enabled }
}

// New creates a Publisher writing through w.
func New(w Writer, opts ...Option) *Publisher {
	p := &Publisher{
		writer: w,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewWriter builds a *kafka.Writer for the comma separated broker list.
func NewWriter(brokersCSV, topic string) *kafka.Writer {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "eventbus" }

// OnShutdown implements plugin.OnShutdown and flushes the writer.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.writer.Close()
}

// OnCartEvent implements plugin.OnCartEvent.
func (p *Publisher) OnCartEvent(ctx context.Context, snap cart.Snapshot, n cart.Notification) error {
	if !p.cartEvents {
		return nil
	}
	return p.publish(ctx, TypeCartEvent, n.SessionID, cartEvent{
		Notification: n,
		ItemCount:    snap.ItemCount,
		Total:        snap.Total.Amount,
		Currency:     snap.Total.Currency,
		Coupon:       snap.AppliedCoupon,
	})
}

// OnOrderPlaced implements plugin.OnOrderPlaced.
func (p *Publisher) OnOrderPlaced(ctx context.Context, o *order.Order, pay *payment.Payment) error {
	return p.publish(ctx, TypeOrderPlaced, o.ID.String(), checkoutEvent{Order: o, Payment: pay})
}

// OnPaymentVerified implements plugin.OnPaymentVerified.
func (p *Publisher) OnPaymentVerified(ctx context.Context, o *order.Order, pay *payment.Payment) error {
	return p.publish(ctx, TypePaymentVerified, o.ID.String(), checkoutEvent{Order: o, Payment: pay})
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (p *Publisher) OnPaymentRejected(ctx context.Context, orderID, gatewayOrderID string, reason error) error {
	return p.publish(ctx, TypePaymentRejected, orderID, rejectedEvent{
		OrderID:        orderID,
		GatewayOrderID: gatewayOrderID,
		Reason:         errString(reason),
	})
}

type cartEvent struct {
	cart.Notification
	ItemCount int             `json:"item_count"`
	Total     int64           `json:"total_minor"`
	Currency  string          `json:"currency"`
	Coupon    *coupon.Applied `json:"applied_coupon,omitempty"`
}

type checkoutEvent struct {
	Order   *order.Order     `json:"order"`
	Payment *payment.Payment `json:"payment"`
}

type rejectedEvent struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Reason         string `json:"reason,omitempty"`
}

func (p *Publisher) publish(ctx context.Context, typ, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventbus: marshal %s: %w", typ, err)
	}
	body, err := json.Marshal(Envelope{Type: typ, Key: key, At: p.now(), Data: data})
	if err != nil {
		return fmt.Errorf("eventbus: marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   body,
		Time:    p.now(),
		Headers: []kafka.Header{{Key: "type", Value: []byte(typ)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("eventbus: publish failed", "type", typ, "key", key, "error", err)
		return fmt.Errorf("eventbus: publish %s: %w", typ, err)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
