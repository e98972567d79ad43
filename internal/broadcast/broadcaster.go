package broadcast

import (
	"context"
	"fmt"
	"io"

	"github.com/damoang/angple-messenger/internal/metrics"
	"github.com/rs/zerolog"
)

// Driver delivers an event to one realtime transport
type Driver interface {
	Name() string
	Broadcast(ctx context.Context, ev Event) error
}

// Broadcaster fans events out to the configured driver.
// Delivery is at-most-once: driver failures are logged and counted, never returned.
type Broadcaster struct {
	driver  Driver
	enabled bool
	logger  zerolog.Logger
}

// NewBroadcaster 생성자. A nil driver behaves as the null driver.
func NewBroadcaster(driver Driver, enabled bool, logger zerolog.Logger) *Broadcaster {
	if driver == nil {
		driver = NullDriver{}
	}
	return &Broadcaster{
		driver:  driver,
		enabled: enabled,
		logger:  logger.With().Str("component", "broadcaster").Str("driver", driver.Name()).Logger(),
	}
}

// Enabled reports whether events reach the driver
func (b *Broadcaster) Enabled() bool {
	return b.enabled
}

// Driver returns the underlying driver
func (b *Broadcaster) Driver() Driver {
	return b.driver
}

// Broadcast sends ev synchronously through the driver; a no-op when disabled
func (b *Broadcaster) Broadcast(ctx context.Context, ev Event) {
	if !b.enabled || len(ev.Channels) == 0 {
		return
	}

	if err := b.send(ctx, ev); err != nil {
		metrics.Broadcasts.WithLabelValues(b.driver.Name(), ev.Name, "error").Inc()
		b.logger.Warn().Err(err).Str("event", ev.Name).Int("channels", len(ev.Channels)).Msg("broadcast failed")
		return
	}
	metrics.Broadcasts.WithLabelValues(b.driver.Name(), ev.Name, "ok").Inc()
}

// send 드라이버 패닉을 에러로 변환
func (b *Broadcaster) send(ctx context.Context, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("driver panicked: %v", r)
		}
	}()
	return b.driver.Broadcast(ctx, ev)
}

// Close releases the driver's connections when it holds any
func (b *Broadcaster) Close() error {
	if c, ok := b.driver.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
