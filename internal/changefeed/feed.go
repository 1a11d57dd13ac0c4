package changefeed

import (
	"context"
	"sync"
	"time"

	"hrportal/internal/events"
)

// Signal tells subscribers that a request changed. It carries no request data: each
// subscriber re-reads the snapshot it is allowed to see.
type Signal struct {
	RequestID string    `json:"request_id"`
	Event     string    `json:"event"`
	At        time.Time `json:"at"`
}

// Feed is the change subscription primitive behind the live request views
type Feed interface {
	Publish(ctx context.Context, sig Signal) error
	Subscribe() chan Signal
	Unsubscribe(ch chan Signal)
}

const subscriberBuffer = 64

// Local fans signals out to in-process subscribers
type Local struct {
	mu   sync.RWMutex
	subs map[chan Signal]struct{}
}

func NewLocal() *Local {
	return &Local{subs: make(map[chan Signal]struct{})}
}

// Publish never blocks. A subscriber whose buffer is full misses the signal, which is
// harmless because the next one triggers a full snapshot anyway.
func (l *Local) Publish(_ context.Context, sig Signal) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for ch := range l.subs {
		select {
		case ch <- sig:
		default:
		}
	}
	return nil
}

// Subscribe returns a buffered channel receiving every published signal
func (l *Local) Subscribe() chan Signal {
	ch := make(chan Signal, subscriberBuffer)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (l *Local) Unsubscribe(ch chan Signal) {
	l.mu.Lock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
	l.mu.Unlock()
}

// Subscribers reports the number of live subscriptions
func (l *Local) Subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Observe adapts feed into a lifecycle event handler
func Observe(feed Feed) events.Handler {
	return func(ctx context.Context, evt *events.Event) error {
		return feed.Publish(ctx, Signal{
			RequestID: evt.RequestID,
			Event:     string(evt.Type),
			At:        evt.OccurredAt,
		})
	}
}
