package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher forwards notices to a Notifier from a background worker.
// Enqueueing is non-blocking; when the buffer is full the notice is
// dropped and counted. A nil Dispatcher is a valid no-op.
type Dispatcher struct {
	notifier Notifier
	log      *slog.Logger
	timeout  time.Duration

	ch        chan Notice
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher starts the delivery worker. bufferSize must be
// positive; deliverTimeout bounds each Notify call.
func NewDispatcher(notifier Notifier, log *slog.Logger, bufferSize int, deliverTimeout time.Duration) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if deliverTimeout <= 0 {
		deliverTimeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		notifier: notifier,
		log:      log,
		timeout:  deliverTimeout,
		ch:       make(chan Notice, bufferSize),
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.ch:
			d.deliver(n)
		case <-d.done:
			for {
				select {
				case n := <-d.ch:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.log.Warn("notify.deliver.fail", "kind", n.Kind, "principal_id", n.PrincipalID, "err", err)
	}
}

// Enqueue hands a notice to the worker without blocking the caller.
func (d *Dispatcher) Enqueue(n Notice) {
	if d == nil {
		return
	}
	select {
	case d.ch <- n:
	case <-d.done:
	default:
		d.dropped.Add(1)
		d.log.Warn("notify.queue.full", "kind", n.Kind, "principal_id", n.PrincipalID)
	}
}

// Dropped reports how many notices were discarded due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close drains the buffer and stops the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
