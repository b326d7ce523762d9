package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	err     error
	block   chan struct{}
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingNotifier) delivered() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func TestDispatcher_DeliversInBackground(t *testing.T) {
	sink := &recordingNotifier{}
	d := NewDispatcher(sink, nil, 8, time.Second)

	d.Enqueue(Notice{Kind: KindSignIn, PrincipalID: "p1", SessionID: "s1"})
	d.Close()

	got := sink.delivered()
	if len(got) != 1 {
		t.Fatalf("delivered = %d, want 1", len(got))
	}
	if got[0].Kind != KindSignIn || got[0].PrincipalID != "p1" {
		t.Fatalf("unexpected notice %+v", got[0])
	}
}

func TestDispatcher_FullBufferDropsWithoutBlocking(t *testing.T) {
	sink := &recordingNotifier{block: make(chan struct{})}
	d := NewDispatcher(sink, nil, 1, time.Second)

	// Worker is parked on the first notice, second fills the buffer,
	// third must drop immediately.
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		go func() {
			d.Enqueue(Notice{Kind: KindSignIn})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("enqueue %d blocked", i)
		}
	}

	if d.Dropped() == 0 {
		t.Fatalf("expected at least one dropped notice")
	}

	close(sink.block)
	d.Close()
}

func TestDispatcher_DeliveryErrorIsSwallowed(t *testing.T) {
	sink := &recordingNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(sink, nil, 4, time.Second)

	d.Enqueue(Notice{Kind: KindSignIn, PrincipalID: "p1"})
	d.Close()

	if got := d.Dropped(); got != 0 {
		t.Fatalf("delivery failure counted as drop: %d", got)
	}
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Enqueue(Notice{Kind: KindSignIn})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("nil dispatcher reported drops")
	}
}

func TestDispatcher_CloseDrainsBuffer(t *testing.T) {
	sink := &recordingNotifier{}
	d := NewDispatcher(sink, nil, 16, time.Second)

	for i := 0; i < 10; i++ {
		d.Enqueue(Notice{Kind: KindSignIn})
	}
	d.Close()

	if got := len(sink.delivered()); got+int(d.Dropped()) != 10 {
		t.Fatalf("delivered %d + dropped %d, want 10 total", got, d.Dropped())
	}
}
