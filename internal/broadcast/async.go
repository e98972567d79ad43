package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrQueueFull the async queue has no room; the event is dropped
var ErrQueueFull = errors.New("broadcast queue full")

// ErrDriverClosed the async driver no longer accepts events
var ErrDriverClosed = errors.New("broadcast driver closed")

// asyncSendTimeout upper bound for one delivery on the worker
const asyncSendTimeout = 10 * time.Second

// AsyncDriver queues events and delivers them on a single worker goroutine.
// Broadcast only enqueues, so the caller keeps its synchronous contract.
type AsyncDriver struct {
	inner  Driver
	queue  chan Event
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncDriver starts the worker
func NewAsyncDriver(inner Driver, size int, logger zerolog.Logger) *AsyncDriver {
	if size <= 0 {
		size = 1024
	}
	d := &AsyncDriver{
		inner:  inner,
		queue:  make(chan Event, size),
		logger: logger.With().Str("component", "broadcast.async").Str("driver", inner.Name()).Logger(),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *AsyncDriver) Name() string { return d.inner.Name() }

// Broadcast enqueues ev without waiting for delivery
func (d *AsyncDriver) Broadcast(_ context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDriverClosed
	}

	select {
	case d.queue <- ev:
		metrics.BroadcastQueueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, ev.Name)
	}
}

func (d *AsyncDriver) run() {
	defer d.wg.Done()
	for ev := range d.queue {
		metrics.BroadcastQueueDepth.Set(float64(len(d.queue)))
		d.deliver(ev)
	}
}

func (d *AsyncDriver) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("event", ev.Name).Msg("async delivery panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), asyncSendTimeout)
	defer cancel()
	if err := d.inner.Broadcast(ctx, ev); err != nil {
		metrics.Broadcasts.WithLabelValues(d.inner.Name(), ev.Name, "async_error").Inc()
		d.logger.Warn().Err(err).Str("event", ev.Name).Msg("async delivery failed")
	}
}

// Close stops accepting events, drains the queue and closes the inner driver
func (d *AsyncDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	if c, ok := d.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
