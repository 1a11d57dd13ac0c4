package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("dispatcher is closed")

// Handler reacts to a committed request change
type Handler func(ctx context.Context, evt *Event) error

// Publisher is the side of the dispatcher the lifecycle manager sees
type Publisher interface {
	Publish(ctx context.Context, evt *Event)
}

type namedHandler struct {
	name    string
	handler Handler
}

// Dispatcher fans lifecycle events out to observers. Publish never blocks the caller
// and an observer failure never reaches the request that caused the event.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Type][]namedHandler
	log      *zap.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[Type][]namedHandler),
		log:      log.Named("events"),
	}
}

// Subscribe registers handler under name for each of the given event types
func (d *Dispatcher) Subscribe(name string, handler Handler, types ...Type) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range types {
		d.handlers[t] = append(d.handlers[t], namedHandler{name: name, handler: handler})
	}
	d.log.Debug("Handler registered", zap.String("handler", name), zap.Int("event_types", len(types)))
}

// Dispatch runs every handler for evt in registration order and returns the first error
func (d *Dispatcher) Dispatch(ctx context.Context, evt *Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	for _, h := range d.handlersFor(evt.Type) {
		if err := d.safeExecute(ctx, evt, h); err != nil {
			return fmt.Errorf("handler %s failed: %w", h.name, err)
		}
	}
	return nil
}

// Publish runs the handlers for evt on their own goroutines. The caller's context is
// detached from cancellation so an observer outlives the HTTP request that triggered it.
func (d *Dispatcher) Publish(ctx context.Context, evt *Event) {
	if d.closed.Load() {
		d.log.Warn("Dropping event, dispatcher is closed",
			zap.String("event_type", string(evt.Type)),
			zap.String("request_id", evt.RequestID),
		)
		return
	}

	handlers := d.handlersFor(evt.Type)
	bg := context.WithoutCancel(ctx)

	for _, h := range handlers {
		d.wg.Add(1)
		go func(h namedHandler) {
			defer d.wg.Done()
			if err := d.safeExecute(bg, evt, h); err != nil {
				d.log.Error("Event handler failed",
					zap.String("event_type", string(evt.Type)),
					zap.String("event_id", evt.ID),
					zap.String("request_id", evt.RequestID),
					zap.String("handler", h.name),
					zap.Error(err),
				)
			}
		}(h)
	}
}

// Close stops accepting events and waits for in-flight handlers
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	d.wg.Wait()
	d.log.Info("Dispatcher closed")
	return nil
}

func (d *Dispatcher) handlersFor(t Type) []namedHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]namedHandler(nil), d.handlers[t]...)
}

func (d *Dispatcher) safeExecute(ctx context.Context, evt *Event, h namedHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.handler(ctx, evt)
}
