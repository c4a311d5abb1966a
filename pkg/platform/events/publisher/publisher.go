// Package publisher emits ledger events to a backing store, either inline or
// through a bounded async buffer.
//
// Sync mode (default) appends within the caller's context, so with the
// postgres outbox store the event commits atomically with the state change.
// Async mode trades that coupling for latency: events are buffered and
// written by a background goroutine, and a full buffer drops the event with
// an error rather than blocking the caller.
package publisher

import (
	"context"
	"errors"
	"sync"
	"time"

	id "soulledger/pkg/domain"
	events "soulledger/pkg/platform/events"
)

// ErrBufferFull is returned in async mode when the buffer cannot accept
// another event.
var ErrBufferFull = errors.New("event buffer full")

type Publisher struct {
	store events.Store

	buffer    chan events.Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission through a buffer of the given
// size. Zero or negative sizes keep the publisher synchronous.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan events.Event, size)
		}
	}
}

func NewPublisher(store events.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. A zero timestamp is stamped with the current time.
// In async mode the event is queued; a full buffer returns ErrBufferFull and
// a cancelled context returns its error.
func (p *Publisher) Emit(ctx context.Context, event events.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = event.Kind.Category()
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.buffer <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// List returns the events recorded for one soul.
func (p *Publisher) List(ctx context.Context, soulID id.SoulID) ([]events.Event, error) {
	return p.store.ListBySoul(ctx, soulID)
}

// Close stops the background writer after draining buffered events.
// Safe to call on a synchronous publisher and safe to call twice.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.buffer != nil {
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.buffer:
			// Background writes get their own context; the emitting request
			// may be long gone.
			_ = p.store.Append(context.Background(), event)
		case <-p.done:
			for {
				select {
				case event := <-p.buffer:
					_ = p.store.Append(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}
