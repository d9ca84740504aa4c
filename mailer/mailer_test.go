package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/types"
)

type fakeSender struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, m)
	return &rest.Response{StatusCode: f.status, Body: "{}"}, nil
}

func confirmedOrder(email string) (*order.Order, *payment.Payment) {
	o := &order.Order{
		ID:            id.NewOrderID(),
		Receipt:       "rcpt_1",
		CustomerEmail: email,
		Items: []order.LineItem{
			{Name: "NFC Card", Quantity: 2, UnitPrice: types.INR(49900), Amount: types.INR(99800)},
		},
		Subtotal:       types.INR(99800),
		DiscountAmount: types.INR(19960),
		Total:          types.INR(79840),
		CouponCode:     "SAVE20",
	}
	return o, &payment.Payment{ID: id.NewPaymentID(), OrderID: o.ID, TransactionRef: "pay_abc"}
}

func TestMailerSendsReceipt(t *testing.T) {
	s := &fakeSender{status: 202}
	m := NewWithSender(Config{FromEmail: "shop@example.com", StoreName: "Tapcard"}, s, nil)

	o, p := confirmedOrder("buyer@example.com")
	if err := m.OnPaymentVerified(context.Background(), o, p); err != nil {
		t.Fatal(err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(s.sent))
	}
	msg := s.sent[0]
	if !strings.Contains(msg.Subject, "rcpt_1") {
		t.Errorf("subject = %q", msg.Subject)
	}
	if msg.From.Address != "shop@example.com" || msg.From.Name != "Tapcard" {
		t.Errorf("from = %+v", msg.From)
	}
	text := msg.Content[0].Value
	for _, want := range []string{"2 x NFC Card", "₹998.00", "Discount (SAVE20): -₹199.60", "Total paid: ₹798.40", "pay_abc"} {
		if !strings.Contains(text, want) {
			t.Errorf("body missing %q:\n%s", want, text)
		}
	}
}

func TestMailerSkipsWithoutEmail(t *testing.T) {
	s := &fakeSender{status: 202}
	o, p := confirmedOrder("")
	if err := NewWithSender(Config{}, s, nil).OnPaymentVerified(context.Background(), o, p); err != nil {
		t.Fatal(err)
	}
	if len(s.sent) != 0 {
		t.Error("sent mail without a recipient")
	}
}

func TestMailerErrors(t *testing.T) {
	o, p := confirmedOrder("buyer@example.com")
	tests := []struct {
		name   string
		sender *fakeSender
	}{
		{"transport", &fakeSender{err: errors.New("dial tcp: timeout")}},
		{"status", &fakeSender{status: 401}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewWithSender(Config{}, tt.sender, nil).OnPaymentVerified(context.Background(), o, p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}
