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

// Package gcp is an EventBus on Google Cloud Pub/Sub. Every handler type is a
// subscription on one topic per application, and messages carry the
// aggregate ID as ordering key.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/codec/json"
)

// EventBus is an event bus that forwards published events to a Pub/Sub topic
// and delivers them to the matching handlers of all buses on the topic.
type EventBus struct {
	appID        string
	client       *pubsub.Client
	clientOpts   []option.ClientOption
	topic        *pubsub.Topic
	registered   map[rh.EventHandlerType]struct{}
	registeredMu sync.RWMutex
	errCh        chan error
	cctx         context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	codec        rh.EventCodec
}

var _ = rh.EventBus(&EventBus{})

// NewEventBus creates an EventBus, creating the topic if needed.
func NewEventBus(projectID, appID string, options ...Option) (*EventBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	b := &EventBus{
		appID:      appID,
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

	// Create the GCP pubsub client.
	var err error
	if b.client, err = pubsub.NewClient(ctx, projectID, b.clientOpts...); err != nil {
		cancel()

		return nil, fmt.Errorf("could not create GCP client: %w", err)
	}

	// Get or create the topic.
	name := appID + "_events"
	b.topic = b.client.Topic(name)

	if ok, err := b.topic.Exists(ctx); err != nil {
		cancel()

		return nil, fmt.Errorf("could not check topic: %w", err)
	} else if !ok {
		if b.topic, err = b.client.CreateTopic(ctx, name); err != nil {
			cancel()

			return nil, fmt.Errorf("could not create topic: %w", err)
		}
	}

	b.topic.EnableMessageOrdering = true

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

// WithPubSubOptions adds the options to the underlying client.
func WithPubSubOptions(opts ...option.ClientOption) Option {
	return func(b *EventBus) error {
		b.clientOpts = opts

		return nil
	}
}

const (
	aggregateTypeAttribute = "aggregate_type"
	eventTypeAttribute     = "event_type"
)

// PublishEvents implements the PublishEvents method of the rh.EventPublisher interface.
func (b *EventBus) PublishEvents(ctx context.Context, events []rh.Event) error {
	if b.cctx.Err() != nil {
		return rh.ErrPublisherClosed
	}

	results := make([]*pubsub.PublishResult, 0, len(events))

	for _, event := range events {
		data, err := b.codec.MarshalEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("could not marshal event: %w", err)
		}

		results = append(results, b.topic.Publish(ctx, &pubsub.Message{
			Data:        data,
			OrderingKey: event.AggregateID(),
			Attributes: map[string]string{
				aggregateTypeAttribute: event.AggregateType().String(),
				eventTypeAttribute:     event.EventType().String(),
			},
		}))
	}

	for i, r := range results {
		if _, err := r.Get(ctx); err != nil {
			// Publishing stops for a key after an error, until resumed.
			b.topic.ResumePublish(events[i].AggregateID())

			return fmt.Errorf("could not publish event: %w", err)
		}
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

	// Get or create the subscription.
	subscriptionID := b.appID + "_" + h.HandlerType().String()
	sub := b.client.Subscription(subscriptionID)

	if ok, err := sub.Exists(ctx); err != nil {
		return fmt.Errorf("could not check existing subscription: %w", err)
	} else if !ok {
		if sub, err = b.client.CreateSubscription(ctx, subscriptionID,
			pubsub.SubscriptionConfig{
				Topic:                 b.topic,
				AckDeadline:           60 * time.Second,
				EnableMessageOrdering: true,
			},
		); err != nil {
			return fmt.Errorf("could not create subscription: %w", err)
		}
	}

	// Register handler.
	b.registered[h.HandlerType()] = struct{}{}

	// Handle until the context is cancelled or the bus is closed.
	hctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.cctx, cancel)

	b.wg.Add(1)

	go func() {
		defer stop()
		defer cancel()

		b.handle(hctx, m, h, sub)
	}()

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
	b.topic.Stop()

	return b.client.Close()
}

// Handles all events coming in on the subscription.
func (b *EventBus) handle(ctx context.Context, m rh.EventMatcher, h rh.EventHandler, sub *pubsub.Subscription) {
	defer b.wg.Done()

	for {
		if err := sub.Receive(ctx, b.handler(m, h)); err != nil && !errors.Is(err, context.Canceled) {
			b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not receive: %w", err), Ctx: ctx})

			// Retry the receive loop if there was an error.
			time.Sleep(time.Second)

			continue
		}

		return
	}
}

func (b *EventBus) handler(m rh.EventMatcher, h rh.EventHandler) func(ctx context.Context, msg *pubsub.Message) {
	return func(ctx context.Context, msg *pubsub.Message) {
		event, ctx, err := b.codec.UnmarshalEvent(ctx, msg.Data)
		if err != nil {
			b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not unmarshal event: %w", err)})

			// Undecodable messages are acked, a retry would fail the same way.
			msg.Ack()

			return
		}

		// Ignore non-matching events.
		if !m.Match(event) {
			msg.Ack()

			return
		}

		// Handle the event if it did match.
		if err := h.HandleEvent(ctx, event); err != nil {
			b.sendErr(&rh.EventPublisherError{
				Err:   fmt.Errorf("could not handle event (%s): %w", h.HandlerType(), err),
				Ctx:   ctx,
				Event: event,
			})

			msg.Nack()

			return
		}

		msg.Ack()
	}
}

func (b *EventBus) sendErr(err error) {
	select {
	case b.errCh <- err:
	default:
		log.Printf("ringhorizon: missed error in GCP event bus: %s", err)
	}
}
