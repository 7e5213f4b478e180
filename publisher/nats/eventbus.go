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

// Package nats is an EventBus on a NATS subject. Handler types map to queue
// groups, so handlers of the same type in different processes share the work.
package nats

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/codec/json"
)

// DefaultFlushTimeout is how long a publish waits for the server to receive
// the events.
var DefaultFlushTimeout = 5 * time.Second

// EventBus is an event bus that forwards published events to a NATS subject
// and delivers them to the matching handlers of all buses on the subject.
type EventBus struct {
	appID        string
	conn         *nats.Conn
	connOpts     []nats.Option
	subject      string
	registered   map[rh.EventHandlerType]struct{}
	registeredMu sync.RWMutex
	errCh        chan error
	cctx         context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	codec        rh.EventCodec
}

var _ = rh.EventBus(&EventBus{})

// NewEventBus creates an EventBus connected to the NATS server at url.
func NewEventBus(url, appID string, options ...Option) (*EventBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	b := &EventBus{
		appID:      appID,
		subject:    appID + "_events",
		registered: map[rh.EventHandlerType]struct{}{},
		errCh:      make(chan error, 100),
		cctx:       ctx,
		cancel:     cancel,
		codec:      &json.EventCodec{},
	}

	// Apply configuration options.
	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(b); err != nil {
			cancel()

			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	// Create the NATS client.
	var err error
	if b.conn, err = nats.Connect(url, b.connOpts...); err != nil {
		cancel()

		return nil, fmt.Errorf("could not connect to NATS: %w", err)
	}

	return b, nil
}

// Option is an option setter used to configure creation.
type Option func(*EventBus) error

// WithCodec uses the specified codec for encoding events.
func WithCodec(codec rh.EventCodec) Option {
	return func(b *EventBus) error {
		b.codec = codec

		return nil
	}
}

// WithNATSOptions adds the NATS options to the underlying client.
func WithNATSOptions(opts ...nats.Option) Option {
	return func(b *EventBus) error {
		b.connOpts = opts

		return nil
	}
}

// PublishEvents implements the PublishEvents method of the rh.EventPublisher
// interface. It returns once the server has received all events.
func (b *EventBus) PublishEvents(ctx context.Context, events []rh.Event) error {
	if b.cctx.Err() != nil {
		return rh.ErrPublisherClosed
	}

	for _, event := range events {
		data, err := b.codec.MarshalEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("could not marshal event: %w", err)
		}

		if err := b.conn.Publish(b.subject, data); err != nil {
			return fmt.Errorf("could not publish event: %w", err)
		}
	}

	if err := b.conn.FlushTimeout(DefaultFlushTimeout); err != nil {
		return fmt.Errorf("could not flush events: %w", err)
	}

	return nil
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

	// Create a queue group.
	queueGroup := fmt.Sprintf("%s_%s", b.appID, h.HandlerType())

	sub, err := b.conn.QueueSubscribe(b.subject, queueGroup, b.handler(ctx, m, h))
	if err != nil {
		return fmt.Errorf("could not subscribe to queue: %w", err)
	}

	// Make sure the server knows about the subscription before returning.
	if err := b.conn.Flush(); err != nil {
		sub.Unsubscribe()

		return fmt.Errorf("could not subscribe to queue: %w", err)
	}

	// Register handler.
	b.registered[h.HandlerType()] = struct{}{}

	// Handle until context is cancelled.
	b.wg.Add(1)

	go b.handle(ctx, sub)

	return nil
}

// Errors implements the Errors method of the rh.EventBus interface.
func (b *EventBus) Errors() <-chan error {
	return b.errCh
}

// Close implements the Close method of the rh.EventBus interface.
func (b *EventBus) Close() error {
	b.cancel()
	b.wg.Wait()

	if err := b.conn.Drain(); err != nil && err != nats.ErrConnectionClosed {
		return fmt.Errorf("could not drain NATS connection: %w", err)
	}

	return nil
}

// Keeps the subscription until the context is cancelled or the bus is closed.
func (b *EventBus) handle(ctx context.Context, sub *nats.Subscription) {
	defer b.wg.Done()

	select {
	case <-ctx.Done():
	case <-b.cctx.Done():
	}

	if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
		log.Printf("ringhorizon: could not unsubscribe from NATS: %s", err)
	}
}

func (b *EventBus) handler(ctx context.Context, m rh.EventMatcher, h rh.EventHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		event, ctx, err := b.codec.UnmarshalEvent(ctx, msg.Data)
		if err != nil {
			b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not unmarshal event: %w", err)})

			return
		}

		// Ignore non-matching events.
		if !m.Match(event) {
			return
		}

		// Handle the event if it did match.
		if err := h.HandleEvent(ctx, event); err != nil {
			b.sendErr(&rh.EventPublisherError{
				Err:   fmt.Errorf("could not handle event (%s): %w", h.HandlerType(), err),
				Ctx:   ctx,
				Event: event,
			})
		}
	}
}

func (b *EventBus) sendErr(err error) {
	select {
	case b.errCh <- err:
	default:
		log.Printf("ringhorizon: missed error in NATS event bus: %s", err)
	}
}
