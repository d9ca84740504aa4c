package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/types"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func decode(t *testing.T, m kafka.Message) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestPublisherCheckoutEvents(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	p := New(w)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	o := &order.Order{ID: id.NewOrderID(), SessionID: "sess-1", Total: types.INR(49900)}
	pay := &payment.Payment{ID: id.NewPaymentID(), OrderID: o.ID, Amount: types.INR(49900)}

	if err := p.OnOrderPlaced(ctx, o, pay); err != nil {
		t.Fatal(err)
	}
	if err := p.OnPaymentVerified(ctx, o, pay); err != nil {
		t.Fatal(err)
	}
	if err := p.OnPaymentRejected(ctx, o.ID.String(), "order_gw", payment.ErrSignatureMismatch); err != nil {
		t.Fatal(err)
	}

	wantTypes := []string{TypeOrderPlaced, TypePaymentVerified, TypePaymentRejected}
	if len(w.msgs) != len(wantTypes) {
		t.Fatalf("messages = %d, want %d", len(w.msgs), len(wantTypes))
	}
	for i, m := range w.msgs {
		if string(m.Key) != o.ID.String() {
			t.Errorf("msg %d key = %q, want order id", i, m.Key)
		}
		env := decode(t, m)
		if env.Type != wantTypes[i] {
			t.Errorf("msg %d type = %q, want %q", i, env.Type, wantTypes[i])
		}
		if !env.At.Equal(fixed) {
			t.Errorf("msg %d at = %v", i, env.At)
		}
	}

	var rejected rejectedEvent
	if err := json.Unmarshal(decode(t, w.msgs[2]).Data, &rejected); err != nil {
		t.Fatal(err)
	}
	if rejected.Reason != payment.ErrSignatureMismatch.Error() {
		t.Errorf("reason = %q", rejected.Reason)
	}
}

func TestPublisherCartEventsOptIn(t *testing.T) {
	ctx := context.Background()
	n := cart.Notification{SessionID: "sess-2", Event: cart.EventItemAdded}

	off := &fakeWriter{}
	if err := New(off).OnCartEvent(ctx, cart.Snapshot{}, n); err != nil {
		t.Fatal(err)
	}
	if len(off.msgs) != 0 {
		t.Errorf("cart events published without opt-in")
	}

	on := &fakeWriter{}
	snap := cart.Snapshot{SessionID: "sess-2", ItemCount: 3, Total: types.INR(1500)}
	if err := New(on, WithCartEvents(true)).OnCartEvent(ctx, snap, n); err != nil {
		t.Fatal(err)
	}
	if len(on.msgs) != 1 || string(on.msgs[0].Key) != "sess-2" {
		t.Fatalf("msgs = %+v", on.msgs)
	}
	var ev cartEvent
	if err := json.Unmarshal(decode(t, on.msgs[0]).Data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.ItemCount != 3 || ev.Total != 1500 || ev.Event != cart.EventItemAdded {
		t.Errorf("cart event = %+v", ev)
	}
}

func TestPublisherWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	err := New(w).OnOrderPlaced(context.Background(), &order.Order{ID: id.NewOrderID()}, &payment.Payment{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPublisherShutdownClosesWriter(t *testing.T) {
	w := &fakeWriter{}
	if err := New(w).OnShutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !w.closed {
		t.Error("writer not closed")
	}
}

func TestNewWriter(t *testing.T) {
	w := NewWriter(" a:9092, ,b:9092", "storefront.events")
	if w.Topic != "storefront.events" {
		t.Errorf("topic = %q", w.Topic)
	}
	if w.Addr.String() != "a:9092,b:9092" {
		t.Errorf("addr = %q", w.Addr.String())
	}
}
