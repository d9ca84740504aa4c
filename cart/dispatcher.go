package cart

import (
	"log/slog"
	"sync"
)

type delivery struct {
	listeners     []Listener
	snapshot      Snapshot
	notifications []Notification
}

// Dispatcher delivers notifications to listeners on a single background
// goroutine, in the order carts enqueued them. Enqueueing never blocks a
// cart mutation: when the buffer is full the batch is dropped and logged.
type Dispatcher struct {
	queue  chan delivery
	stop   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:  make(chan delivery, buffer),
		stop:   make(chan struct{}),
		logger: logger,
	}
}

// Start launches the delivery worker. It is safe to call more than once.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Stop delivers what is already queued and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(dl delivery) bool {
	if len(dl.listeners) == 0 || len(dl.notifications) == 0 {
		return true
	}
	select {
	case d.queue <- dl:
		return true
	default:
		d.logger.Warn("cart notification queue full, dropping batch",
			"session_id", dl.snapshot.SessionID,
			"notifications", len(dl.notifications),
		)
		return false
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stop:
			for {
				select {
				case dl := <-d.queue:
					d.deliver(dl)
				default:
					return
				}
			}
		case dl := <-d.queue:
			d.deliver(dl)
		}
	}
}

func (d *Dispatcher) deliver(dl delivery) {
	for _, n := range dl.notifications {
		for _, fn := range dl.listeners {
			d.safeCall(fn, dl.snapshot, n)
		}
	}
}

func (d *Dispatcher) safeCall(fn Listener, snap Snapshot, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("cart listener panicked",
				"session_id", n.SessionID,
				"event", string(n.Event),
				"panic", r,
			)
		}
	}()
	fn(snap, n)
}

// inbox is the per-store queue used when no Dispatcher is shared. Batches
// are delivered in push order by a worker that exits once the queue drains.
type inbox struct {
	d *Dispatcher

	mu      sync.Mutex
	pending []delivery
	running bool
}

func newInbox(logger *slog.Logger) *inbox {
	return &inbox{d: &Dispatcher{logger: logger}}
}

func (b *inbox) push(dl delivery) {
	b.mu.Lock()
	b.pending = append(b.pending, dl)
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()
	go b.drain()
}

func (b *inbox) drain() {
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.running = false
			b.mu.Unlock()
			return
		}
		dl := b.pending[0]
		b.pending[0] = delivery{}
		b.pending = b.pending[1:]
		b.mu.Unlock()

		b.d.deliver(dl)
	}
}
