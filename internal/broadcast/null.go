package broadcast

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// NullDriver discards every event
type NullDriver struct{}

func (NullDriver) Name() string { return "null" }

func (NullDriver) Broadcast(context.Context, Event) error { return nil }

// Recorder keeps events in memory; used by tests and local tooling
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder 생성자
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Name() string { return "recorder" }

func (r *Recorder) Broadcast(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events with the given name
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets all recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// LogDriver writes each event at debug level
type LogDriver struct {
	logger zerolog.Logger
}

// NewLogDriver 생성자
func NewLogDriver(logger zerolog.Logger) *LogDriver {
	return &LogDriver{logger: logger.With().Str("component", "broadcast.log").Logger()}
}

func (d *LogDriver) Name() string { return "log" }

func (d *LogDriver) Broadcast(_ context.Context, ev Event) error {
	names := make([]string, len(ev.Channels))
	for i, ch := range ev.Channels {
		names[i] = string(ch.Class) + ":" + ch.Name
	}
	d.logger.Debug().
		Str("event", ev.Name).
		Strs("channels", names).
		Interface("payload", ev.Payload).
		Msg("broadcast")
	return nil
}
