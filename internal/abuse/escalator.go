package abuse

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"wishd/internal/metrics"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid abuse config")

// Config defines runtime configuration for the escalator.
type Config struct {
	// QueueSize bounds the dispatch channel between the rate limiter and
	// the worker. A full queue drops events.
	QueueSize int

	// LightThreshold is the count below which a record may decay.
	LightThreshold int64

	// Grace is how long a light abuser's record lingers after its latest
	// abuse before decay removes it.
	Grace time.Duration

	// UpsertTimeout bounds each store write made by the worker.
	UpsertTimeout time.Duration
}

// DefaultConfig returns production-reasonable defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:      256,
		LightThreshold: 5,
		Grace:          72 * time.Hour,
		UpsertTimeout:  5 * time.Second,
	}
}

// LoadConfigFromEnv loads escalator configuration from environment variables.
//
// Optional:
//   - WISHD_ABUSE_QUEUE_SIZE
//   - WISHD_ABUSE_LIGHT_THRESHOLD
//   - WISHD_ABUSE_GRACE
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WISHD_ABUSE_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, ErrConfig
		}
		cfg.QueueSize = n
	}

	if v := os.Getenv("WISHD_ABUSE_LIGHT_THRESHOLD"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return Config{}, ErrConfig
		}
		cfg.LightThreshold = n
	}

	if v := os.Getenv("WISHD_ABUSE_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.Grace = d
	}

	return cfg, nil
}

type event struct {
	origin string
	at     time.Time
}

// Escalator consumes rejection events and maintains the per-origin abuse
// ledger. It satisfies ratelimit.AbuseSink.
type Escalator struct {
	cfg   Config
	store Store
	log   *slog.Logger

	ch        chan event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewEscalator constructs an Escalator and starts its worker goroutine.
func NewEscalator(cfg Config, store Store, log *slog.Logger) *Escalator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.UpsertTimeout <= 0 {
		cfg.UpsertTimeout = 5 * time.Second
	}

	e := &Escalator{
		cfg:   cfg,
		store: store,
		log:   log,
		ch:    make(chan event, cfg.QueueSize),
		done:  make(chan struct{}),
	}

	e.wg.Add(1)
	go e.run()

	return e
}

func (e *Escalator) run() {
	defer e.wg.Done()

	for {
		select {
		case ev := <-e.ch:
			e.record(ev)
		case <-e.done:
			// Drain what is already queued, then stop.
			for {
				select {
				case ev := <-e.ch:
					e.record(ev)
				default:
					return
				}
			}
		}
	}
}

func (e *Escalator) record(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.UpsertTimeout)
	defer cancel()

	if err := e.store.Upsert(ctx, ev.origin, ev.at); err != nil {
		// Ledger failures are logged and forgotten; they must never reach
		// the requester.
		e.log.Error("abuse.record.fail", "err", err, "origin", ev.origin)
		return
	}
	metrics.AbuseRecorded.Inc()
}

// Record enqueues one qualifying rejection for origin. It never blocks:
// with a full queue the event is dropped and counted. Unknown origins
// (empty string) are ignored.
func (e *Escalator) Record(origin string, now time.Time) {
	if e == nil || origin == "" {
		return
	}

	select {
	case e.ch <- event{origin: origin, at: now}:
	case <-e.done:
	default:
		e.dropped.Add(1)
		metrics.AbuseDropped.Inc()
	}
}

// Decay removes aged light-abuser records. Heavy abusers are kept until
// an operator acts on them. Invoked daily by the maintenance schedule.
func (e *Escalator) Decay(ctx context.Context, now time.Time) (int64, error) {
	n, err := e.store.DecayBelow(ctx, e.cfg.LightThreshold, now.Add(-e.cfg.Grace))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.log.Info("abuse.decay", "removed", n)
	}
	return n, nil
}

// Dropped reports how many events were discarded at the dispatch boundary.
func (e *Escalator) Dropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dropped.Load()
}

// Close stops the worker after draining queued events (idempotent).
func (e *Escalator) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
}
