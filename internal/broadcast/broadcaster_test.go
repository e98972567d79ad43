package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingDriver struct {
	err   error
	panic bool
	calls int
}

func (d *failingDriver) Name() string { return "failing" }

func (d *failingDriver) Broadcast(context.Context, Event) error {
	d.calls++
	if d.panic {
		panic("driver exploded")
	}
	return d.err
}

func TestBroadcaster_DisabledIsNoop(t *testing.T) {
	rec := NewRecorder()
	b := NewBroadcaster(rec, false, zerolog.Nop())

	b.Broadcast(context.Background(), NewUserTyping("c1", "1"))

	assert.False(t, b.Enabled())
	assert.Empty(t, rec.Events())
}

func TestBroadcaster_DeliversSynchronously(t *testing.T) {
	rec := NewRecorder()
	b := NewBroadcaster(rec, true, zerolog.Nop())

	b.Broadcast(context.Background(), NewMessageDeleted("c1", 7, "2"))

	events := rec.Named(EventMessageDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, "7", events[0].Payload["message_id"])
}

func TestBroadcaster_SwallowsDriverErrors(t *testing.T) {
	d := &failingDriver{err: errors.New("transport down")}
	b := NewBroadcaster(d, true, zerolog.Nop())

	assert.NotPanics(t, func() {
		b.Broadcast(context.Background(), NewMessageDeleted("c1", 1, "2"))
	})
	assert.Equal(t, 1, d.calls)
}

func TestBroadcaster_RecoversDriverPanics(t *testing.T) {
	d := &failingDriver{panic: true}
	b := NewBroadcaster(d, true, zerolog.Nop())

	assert.NotPanics(t, func() {
		b.Broadcast(context.Background(), NewMessageDeleted("c1", 1, "2"))
	})
}

func TestBroadcaster_SkipsEventsWithoutChannels(t *testing.T) {
	d := &failingDriver{}
	b := NewBroadcaster(d, true, zerolog.Nop())

	b.Broadcast(context.Background(), Event{Name: "empty"})
	assert.Zero(t, d.calls)
}

func TestBroadcaster_NilDriverIsNull(t *testing.T) {
	b := NewBroadcaster(nil, true, zerolog.Nop())
	assert.Equal(t, "null", b.Driver().Name())
	assert.NoError(t, b.Close())
}
