package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/internal/metrics"
)

// Well-known events.
const (
	TaskChanged = "taskChanged"
	Load        = "load"
	Update      = "update"
	Remove      = "remove"
	Switch      = "switch"
	Create      = "create"
)

// Handler receives the arguments passed to Emit.
type Handler func(ctx context.Context, args ...any) error

// Bus dispatches named events to subscribed handlers. Handler failures are
// logged and counted, never returned to the emitter.
type Bus struct {
	logger  *logger.Logger
	metrics *metrics.Collector
	subs    map[string][]subscriptionEntry
	nextID  int
	mu      sync.RWMutex
}

// NewBus creates an empty bus. Both arguments may be nil.
func NewBus(log *logger.Logger, collector *metrics.Collector) *Bus {
	return &Bus{
		logger:  log,
		metrics: collector,
		subs:    make(map[string][]subscriptionEntry),
	}
}

// On subscribes handler to event. The handler stays live until the returned
// subscription is released.
func (b *Bus) On(event string, handler Handler) *Subscription {
	if b == nil || handler == nil {
		return &Subscription{}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscriptionEntry{id: id, handler: handler})
	b.mu.Unlock()

	return &Subscription{
		event: event,
		cancel: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			handlers := b.subs[event]
			for i, entry := range handlers {
				if entry.id == id {
					b.subs[event] = append(handlers[:i:i], handlers[i+1:]...)
					break
				}
			}
			if len(b.subs[event]) == 0 {
				delete(b.subs, event)
			}
		},
	}
}

// Before subscribes to "before_<event>".
func (b *Bus) Before(event string, handler Handler) *Subscription {
	return b.On("before_"+event, handler)
}

// After subscribes to "after_<event>".
func (b *Bus) After(event string, handler Handler) *Subscription {
	return b.On("after_"+event, handler)
}

// Emit calls every handler subscribed to event. Subscriptions added or
// released by a handler take effect on the next Emit.
func (b *Bus) Emit(ctx context.Context, event string, args ...any) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]subscriptionEntry(nil), b.subs[event]...)
	b.mu.RUnlock()

	for _, entry := range handlers {
		if err := b.call(ctx, entry.handler, args); err != nil {
			b.logger.WithFields(map[string]any{"event": event}).WarnErr(err, "event handler failed")
			b.metrics.HandlerFailure(event)
		}
	}
}

// EmitBefore emits "before_<event>".
func (b *Bus) EmitBefore(ctx context.Context, event string, args ...any) {
	b.Emit(ctx, "before_"+event, args...)
}

// EmitAfter emits "after_<event>".
func (b *Bus) EmitAfter(ctx context.Context, event string, args ...any) {
	b.Emit(ctx, "after_"+event, args...)
}

// Subscribers returns how many handlers are live for event.
func (b *Bus) Subscribers(event string) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

func (b *Bus) call(ctx context.Context, handler Handler, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, args...)
}

// Subscription is the handle returned by On. Releasing it twice is safe.
type Subscription struct {
	event  string
	once   sync.Once
	cancel func()
}

// Event returns the subscribed event name.
func (s *Subscription) Event() string {
	if s == nil {
		return ""
	}
	return s.event
}

// Unsubscribe releases the handler.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

type subscriptionEntry struct {
	id      int
	handler Handler
}
