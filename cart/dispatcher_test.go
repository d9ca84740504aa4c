package cart

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	seen  []Notification
	snaps []Snapshot
	done  chan struct{}
	want  int
}

func newRecorder(want int) *recorder {
	return &recorder{done: make(chan struct{}), want: want}
}

func (r *recorder) listen(snap Snapshot, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
	r.snaps = append(r.snaps, snap)
	if len(r.seen) == r.want {
		close(r.done)
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %d notifications", r.want)
	}
}

func TestDispatcherDeliversInMutationOrder(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(16, nil)
	d.Start()
	defer d.Stop()

	s, _ := newTestStore(t, newFakeCoupons(), WithDispatcher(d))
	rec := newRecorder(4)
	s.Subscribe(rec.listen)

	card := testItem("Card", 100)
	mustAdd(t, s, card, 1)
	mustAdd(t, s, card, 1)
	s.RemoveItem(ctx, card.ProductID)
	s.ClearCart(ctx)

	rec.wait(t)

	want := []Event{EventItemAdded, EventItemUpdated, EventItemRemoved, EventCartCleared}
	for i, ev := range want {
		if rec.seen[i].Event != ev {
			t.Errorf("notification %d = %s, want %s", i, rec.seen[i].Event, ev)
		}
	}
	if rec.snaps[1].ItemCount != 2 {
		t.Errorf("listener saw pre-commit state: %+v", rec.snaps[1])
	}
}

func TestListenerMayReenterStore(t *testing.T) {
	d := NewDispatcher(16, nil)
	d.Start()
	defer d.Stop()

	s, _ := newTestStore(t, newFakeCoupons(), WithDispatcher(d))
	got := make(chan int, 1)
	s.Subscribe(func(_ Snapshot, n Notification) {
		if n.Event == EventItemAdded {
			got <- s.ItemCount()
		}
	})

	mustAdd(t, s, testItem("Card", 100), 3)

	select {
	case count := <-got:
		if count != 3 {
			t.Errorf("ItemCount from listener = %d", count)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener never ran")
	}
}

func TestDispatcherSurvivesPanickingListener(t *testing.T) {
	d := NewDispatcher(16, nil)
	d.Start()
	defer d.Stop()

	s, _ := newTestStore(t, newFakeCoupons(), WithDispatcher(d))
	s.Subscribe(func(Snapshot, Notification) { panic("boom") })
	rec := newRecorder(2)
	s.Subscribe(rec.listen)

	mustAdd(t, s, testItem("A", 1), 1)
	mustAdd(t, s, testItem("B", 1), 1)

	rec.wait(t)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	d := NewDispatcher(1, nil)
	noop := []Listener{func(Snapshot, Notification) {}}
	batch := delivery{listeners: noop, notifications: []Notification{{Event: EventCartCleared}}}

	if !d.enqueue(batch) {
		t.Fatal("first enqueue should fit")
	}
	if d.enqueue(batch) {
		t.Error("second enqueue should be dropped while the worker is not running")
	}

	d.Start()
	d.Stop()
	if len(d.queue) != 0 {
		t.Errorf("Stop left %d batches queued", len(d.queue))
	}
}

func TestStoreWithoutDispatcherDeliversInOrder(t *testing.T) {
	const adds = 40
	s, _ := newTestStore(t, newFakeCoupons())
	rec := newRecorder(adds)
	s.Subscribe(rec.listen)

	card := testItem("Card", 100)
	for range adds {
		mustAdd(t, s, card, 1)
	}
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, snap := range rec.snaps {
		if snap.ItemCount != i+1 {
			t.Fatalf("notification %d carried ItemCount %d, want %d", i, snap.ItemCount, i+1)
		}
	}
}
