package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Result outcome of a callback
type Result int

const (
	// ResultNone the callback has no opinion
	ResultNone Result = iota
	// ResultContinue explicitly allow the operation
	ResultContinue
	// ResultAbort veto the operation; later callbacks do not run
	ResultAbort
)

func (r Result) String() string {
	switch r {
	case ResultContinue:
		return "continue"
	case ResultAbort:
		return "abort"
	default:
		return "none"
	}
}

// Payload data handed to every callback of one Execute call
type Payload struct {
	Point          Point
	ActorID        string
	ConversationID string
	MessageID      uint64
	Data           map[string]interface{}
}

// Get returns Data[key] or nil
func (p *Payload) Get(key string) interface{} {
	if p.Data == nil {
		return nil
	}
	return p.Data[key]
}

// Callback hook 콜백
type Callback func(ctx context.Context, p *Payload) (Result, error)

type entry struct {
	name     string
	callback Callback
}

// Registry ordered callback lists per extension point (thread-safe).
// Callbacks run synchronously on the caller's goroutine in registration order.
type Registry struct {
	hooks  map[Point][]entry
	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewRegistry 새 Registry 생성
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		hooks:  make(map[Point][]entry),
		logger: logger.With().Str("component", "hooks").Logger(),
	}
}

// Register appends a callback to point under name
func (r *Registry) Register(point Point, name string, cb Callback) {
	r.RegisterMany(point, name, cb)
}

// RegisterMany appends several callbacks to one point, keeping their order
func (r *Registry) RegisterMany(point Point, name string, cbs ...Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cb := range cbs {
		if cb == nil {
			continue
		}
		r.hooks[point] = append(r.hooks[point], entry{name: name, callback: cb})
	}
}

// RegisterAll registers a whole callback table under one name
func (r *Registry) RegisterAll(name string, table map[Point][]Callback) {
	for point, cbs := range table {
		r.RegisterMany(point, name, cbs...)
	}
}

// Unregister removes every callback registered under name
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for point, entries := range r.hooks {
		filtered := entries[:0]
		for _, e := range entries {
			if e.name != name {
				filtered = append(filtered, e)
			}
		}
		r.hooks[point] = filtered
	}
}

// Clear removes all callbacks of one point
func (r *Registry) Clear(point Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, point)
}

// ClearAll removes every callback
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = make(map[Point][]entry)
}

// Count number of callbacks on point
func (r *Registry) Count(point Point) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[point])
}

// Execute runs the callbacks of point in order.
// It returns the last non-None result. ResultAbort or an error stops the chain.
func (r *Registry) Execute(ctx context.Context, point Point, payload *Payload) (Result, error) {
	r.mu.RLock()
	entries := make([]entry, len(r.hooks[point]))
	copy(entries, r.hooks[point])
	r.mu.RUnlock()

	if payload == nil {
		payload = &Payload{}
	}
	payload.Point = point

	result := ResultNone
	for _, e := range entries {
		res, err := r.call(ctx, e, payload)
		if err != nil {
			return ResultAbort, fmt.Errorf("hook %s [%s]: %w", point, e.name, err)
		}
		if res == ResultNone {
			continue
		}
		result = res
		if res == ResultAbort {
			r.logger.Debug().Str("point", string(point)).Str("hook", e.name).Msg("operation vetoed")
			break
		}
	}
	return result, nil
}

// call 패닉을 에러로 변환
func (r *Registry) call(ctx context.Context, e entry, payload *Payload) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("point", string(payload.Point)).Str("hook", e.name).Interface("panic", p).Msg("hook panicked")
			res, err = ResultAbort, fmt.Errorf("panic: %v", p)
		}
	}()
	return e.callback(ctx, payload)
}
