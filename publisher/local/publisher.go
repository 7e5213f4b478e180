// Copyright (c) 2026 - The Event Horizon authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package local is an in-process EventBus. Published events are copied and
// queued per handler type, handlers run on their own goroutines so a slow
// handler never stalls the command bus.
package local

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jinzhu/copier"

	rh "github.com/looplab/ringhorizon"
)

// DefaultQueueSize is the default queue size per handler for published
// event batches.
var DefaultQueueSize = 1024

// ErrQueueFull is when a handler queue has no room for a published batch, the
// batch is dropped for that handler.
var ErrQueueFull = errors.New("handler queue full")

// EventBus is a local event bus that delegates handling of published events
// to all matching registered handlers.
type EventBus struct {
	group        *Group
	registered   map[rh.EventHandlerType]struct{}
	registeredMu sync.RWMutex
	errCh        chan error
	wg           sync.WaitGroup
}

var _ = rh.EventBus(&EventBus{})

// NewEventBus creates an EventBus, with optional settings.
func NewEventBus(options ...Option) (*EventBus, error) {
	b := &EventBus{
		registered: map[rh.EventHandlerType]struct{}{},
		errCh:      make(chan error, 100),
	}

	// Apply configuration options.
	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(b); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	if b.group == nil {
		b.group = NewGroup()
	}

	return b, nil
}

// Option is an option setter used to configure creation.
type Option func(*EventBus) error

// WithGroup uses a shared group, handlers of the same type on buses in the
// same group compete for the events.
func WithGroup(g *Group) Option {
	return func(b *EventBus) error {
		b.group = g

		return nil
	}
}

// PublishEvents implements the PublishEvents method of the rh.EventPublisher interface.
func (b *EventBus) PublishEvents(ctx context.Context, events []rh.Event) error {
	return b.group.publish(ctx, events)
}

// AddHandler implements the AddHandler method of the rh.EventBus interface.
func (b *EventBus) AddHandler(ctx context.Context, m rh.EventMatcher, h rh.EventHandler) error {
	if m == nil {
		return rh.ErrMissingMatcher
	}

	if h == nil {
		return rh.ErrMissingHandler
	}

	// Check handler existence.
	b.registeredMu.Lock()
	defer b.registeredMu.Unlock()

	if _, ok := b.registered[h.HandlerType()]; ok {
		return rh.ErrHandlerAlreadyAdded
	}

	// Get or create the channel.
	ch, err := b.group.channel(h.HandlerType())
	if err != nil {
		return err
	}

	// Register handler.
	b.registered[h.HandlerType()] = struct{}{}

	// Handle until the context is cancelled or the group is closed.
	b.wg.Add(1)

	go b.handle(ctx, m, h, ch)

	return nil
}

// RemoveHandler removes a handler type from the bus and drops its queue. The
// handler goroutine stops when its AddHandler context is cancelled.
func (b *EventBus) RemoveHandler(t rh.EventHandlerType) {
	b.registeredMu.Lock()
	defer b.registeredMu.Unlock()

	delete(b.registered, t)
	b.group.remove(t)
}

// Errors implements the Errors method of the rh.EventBus interface.
func (b *EventBus) Errors() <-chan error {
	return b.errCh
}

// Close implements the Close method of the rh.EventBus interface. It closes
// the group and waits for the handlers of this bus to finish their queues.
func (b *EventBus) Close() error {
	b.group.Close()
	b.wg.Wait()

	return nil
}

// Handles all event batches coming in on the channel.
func (b *EventBus) handle(ctx context.Context, m rh.EventMatcher, h rh.EventHandler, ch <-chan batch) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			for _, event := range msg.events {
				if !m.Match(event) {
					continue
				}

				if err := h.HandleEvent(msg.ctx, event); err != nil {
					b.sendErr(&rh.EventPublisherError{
						Err:   fmt.Errorf("could not handle event (%s): %w", h.HandlerType(), err),
						Ctx:   msg.ctx,
						Event: event,
					})
				}
			}
		}
	}
}

func (b *EventBus) sendErr(err error) {
	select {
	case b.errCh <- err:
	default:
		log.Printf("ringhorizon: missed error in local event bus: %s", err)
	}
}

// Group is a publishing group shared by multiple event buses locally, if needed.
type Group struct {
	bus    map[rh.EventHandlerType]chan batch
	busMu  sync.RWMutex
	closed bool
}

// NewGroup creates a Group.
func NewGroup() *Group {
	return &Group{
		bus: map[rh.EventHandlerType]chan batch{},
	}
}

type batch struct {
	ctx    context.Context
	events []rh.Event
}

func (g *Group) channel(t rh.EventHandlerType) (<-chan batch, error) {
	g.busMu.Lock()
	defer g.busMu.Unlock()

	if g.closed {
		return nil, rh.ErrPublisherClosed
	}

	if ch, ok := g.bus[t]; ok {
		return ch, nil
	}

	ch := make(chan batch, DefaultQueueSize)
	g.bus[t] = ch

	return ch, nil
}

func (g *Group) remove(t rh.EventHandlerType) {
	g.busMu.Lock()
	defer g.busMu.Unlock()

	delete(g.bus, t)
}

func (g *Group) publish(ctx context.Context, events []rh.Event) error {
	g.busMu.RLock()
	defer g.busMu.RUnlock()

	if g.closed {
		return rh.ErrPublisherClosed
	}

	var errs []error

	for t, ch := range g.bus {
		// Every handler type gets its own copy of the events.
		copied := make([]rh.Event, 0, len(events))

		for _, event := range events {
			e, err := copyEvent(event)
			if err != nil {
				return err
			}

			copied = append(copied, e)
		}

		select {
		case ch <- batch{ctx, copied}:
		default:
			errs = append(errs, fmt.Errorf("%w: %s", ErrQueueFull, t))
		}
	}

	return errors.Join(errs...)
}

// Close closes all the channels in the group. It is safe to call more than once.
func (g *Group) Close() {
	g.busMu.Lock()
	defer g.busMu.Unlock()

	if g.closed {
		return
	}

	for _, ch := range g.bus {
		close(ch)
	}

	g.closed = true
}

func copyEvent(event rh.Event) (rh.Event, error) {
	var data rh.EventData

	if event.Data() != nil {
		var err error

		// Unregistered data is shared as is.
		data, err = rh.CreateEventData(event.EventType())
		if errors.Is(err, rh.ErrEventDataNotRegistered) {
			data = event.Data()
		} else if err != nil {
			return nil, fmt.Errorf("could not create event data: %w", err)
		} else if err := copier.CopyWithOption(data, event.Data(), copier.Option{DeepCopy: true}); err != nil {
			return nil, fmt.Errorf("could not copy event data: %w", err)
		}
	}

	metadata := make(map[string]interface{}, len(event.Metadata()))
	for k, v := range event.Metadata() {
		metadata[k] = v
	}

	return rh.NewEvent(
		event.EventType(),
		data,
		event.Timestamp(),
		rh.ForAggregate(
			event.AggregateType(),
			event.AggregateID(),
			event.Version(),
		),
		rh.WithMetadata(metadata),
	), nil
}
