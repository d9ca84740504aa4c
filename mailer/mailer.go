// Package mailer sends order confirmation emails through SendGrid once a
// payment is verified.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/plugin"
)

var _ plugin.OnPaymentVerified = (*Mailer)(nil)

// ErrMissingAPIKey is returned by New when no SendGrid key is configured.
var ErrMissingAPIKey = errors.New("mailer: sendgrid api key is empty")

// Sender is the subset of *sendgrid.Client the mailer uses.
type Sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Config holds the sender identity.
type Config struct {
	APIKey    string `json:"api_key" yaml:"api_key"`
	FromEmail string `json:"from_email" yaml:"from_email"`
	FromName  string `json:"from_name" yaml:"from_name"`
	StoreName string `json:"store_name" yaml:"store_name"`
}

// Mailer is a plugin that emails the customer a receipt.
type Mailer struct {
	cfg    Config
	sender Sender
	logger *slog.Logger
}

// New creates a Mailer backed by the SendGrid API.
func New(cfg Config, logger *slog.Logger) (*Mailer, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewWithSender(cfg, sendgrid.NewSendClient(cfg.APIKey), logger), nil
}

// NewWithSender creates a Mailer with an explicit Sender.
func NewWithSender(cfg Config, s Sender, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StoreName == "" {
		cfg.StoreName = "Storefront"
	}
	if cfg.FromName == "" {
		cfg.FromName = cfg.StoreName
	}
	return &Mailer{cfg: cfg, sender: s, logger: logger}
}

// Name implements plugin.Plugin.
func (m *Mailer) Name() string { return "mailer" }

// OnPaymentVerified implements plugin.OnPaymentVerified. Orders without a
// customer email are skipped.
func (m *Mailer) OnPaymentVerified(ctx context.Context, o *order.Order, p *payment.Payment) error {
	if o.CustomerEmail == "" {
		return nil
	}

	subject, text := m.receipt(o, p)
	msg := mail.NewSingleEmail(
		mail.NewEmail(m.cfg.FromName, m.cfg.FromEmail),
		subject,
		mail.NewEmail("", o.CustomerEmail),
		text,
		"<pre>"+html.EscapeString(text)+"</pre>",
	)

	resp, err := m.sender.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	if resp.StatusCode >= 400 {
		m.logger.Warn("mailer: sendgrid rejected message",
			"status", resp.StatusCode,
			"order_id", o.ID.String(),
		)
		return fmt.Errorf("mailer: send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}

	m.logger.Info("mailer: receipt sent", "order_id", o.ID.String(), "status", resp.StatusCode)
	return nil
}

func (m *Mailer) receipt(o *order.Order, p *payment.Payment) (subject, body string) {
	subject = fmt.Sprintf("%s order confirmed: %s", m.cfg.StoreName, o.Receipt)

	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your order!\n\nOrder: %s\n", o.ID.String())
	for _, li := range o.Items {
		fmt.Fprintf(&b, "  %d x %s  %s\n", li.Quantity, li.Name, li.Amount.String())
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", o.Subtotal.String())
	if o.DiscountAmount.IsPositive() {
		fmt.Fprintf(&b, "Discount (%s): -%s\n", o.CouponCode, o.DiscountAmount.String())
	}
	fmt.Fprintf(&b, "Total paid: %s\nPayment reference: %s\n", o.Total.String(), p.TransactionRef)
	return subject, b.String()
}
