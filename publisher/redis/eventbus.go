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

// Package redis is an EventBus on Redis streams. Every handler type is a
// consumer group on one stream per application, so handlers of the same type
// in different processes share the work.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/codec/json"
)

// EventBus is an event bus that forwards published events to a Redis stream
// and delivers them to the matching handlers of all buses on the stream.
type EventBus struct {
	appID        string
	clientID     string
	streamName   string
	client       *redis.Client
	clientOpts   *redis.Options
	registered   map[rh.EventHandlerType]struct{}
	registeredMu sync.RWMutex
	errCh        chan error
	cctx         context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	codec        rh.EventCodec
	blockTime    time.Duration
}

var _ = rh.EventBus(&EventBus{})

// NewEventBus creates an EventBus, with optional settings.
func NewEventBus(addr, appID, clientID string, options ...Option) (*EventBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	b := &EventBus{
		appID:      appID,
		clientID:   clientID,
		streamName: appID + "_events",
		registered: map[rh.EventHandlerType]struct{}{},
		errCh:      make(chan error, 100),
		cctx:       ctx,
		cancel:     cancel,
		codec:      &json.EventCodec{},
		blockTime:  time.Second,
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

	// Default client options.
	if b.clientOpts == nil {
		b.clientOpts = &redis.Options{
			Addr: addr,
		}
	}

	// Create client and check connection.
	b.client = redis.NewClient(b.clientOpts)
	if res, err := b.client.Ping(b.cctx).Result(); err != nil || res != "PONG" {
		cancel()

		return nil, fmt.Errorf("could not check Redis server: %w", err)
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

// WithRedisOptions uses the Redis options for the underlying client, instead of the defaults.
func WithRedisOptions(opts *redis.Options) Option {
	return func(b *EventBus) error {
		b.clientOpts = opts

		return nil
	}
}

// WithBlockTime sets how long a group read blocks before the handler checks
// for cancellation.
func WithBlockTime(d time.Duration) Option {
	return func(b *EventBus) error {
		if d <= 0 {
			return errors.New("block time must be positive")
		}

		b.blockTime = d

		return nil
	}
}

const (
	aggregateTypeKey = "aggregate_type"
	aggregateIDKey   = "aggregate_id"
	eventTypeKey     = "event_type"
	dataKey          = "data"
)

// PublishEvents implements the PublishEvents method of the rh.EventPublisher
// interface. The events of one call are added in one transaction.
func (b *EventBus) PublishEvents(ctx context.Context, events []rh.Event) error {
	if b.cctx.Err() != nil {
		return rh.ErrPublisherClosed
	}

	args := make([]*redis.XAddArgs, 0, len(events))

	for _, event := range events {
		data, err := b.codec.MarshalEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("could not marshal event: %w", err)
		}

		args = append(args, &redis.XAddArgs{
			Stream: b.streamName,
			Values: map[string]interface{}{
				aggregateTypeKey: event.AggregateType().String(),
				aggregateIDKey:   event.AggregateID(),
				eventTypeKey:     event.EventType().String(),
				dataKey:          data,
			},
		})
	}

	if _, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, a := range args {
			pipe.XAdd(ctx, a)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("could not publish events: %w", err)
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

	// Get or create the consumer group, starting at new messages.
	groupName := fmt.Sprintf("%s_%s", b.appID, h.HandlerType())

	res, err := b.client.XGroupCreateMkStream(ctx, b.streamName, groupName, "$").Result()
	if err != nil {
		// Ignore group exists non-errors.
		if !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("could not create consumer group: %w", err)
		}
	} else if res != "OK" {
		return fmt.Errorf("could not create consumer group: %s", res)
	}

	// Register handler.
	b.registered[h.HandlerType()] = struct{}{}

	// Handle until context is cancelled.
	b.wg.Add(1)

	go b.handle(ctx, m, h, groupName)

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

	return b.client.Close()
}

// Handles all events coming in on the stream.
func (b *EventBus) handle(ctx context.Context, m rh.EventMatcher, h rh.EventHandler, groupName string) {
	defer b.wg.Done()

	handler := b.handler(m, h, groupName)

	for ctx.Err() == nil {
		streams, err := b.client.XReadGroup(b.cctx, &redis.XReadGroupArgs{
			Group:    groupName,
			Consumer: groupName + "_" + b.clientID,
			Streams:  []string{b.streamName, ">"},
			Block:    b.blockTime,
		}).Result()
		if errors.Is(err, context.Canceled) || b.cctx.Err() != nil {
			break
		} else if errors.Is(err, redis.Nil) {
			// Nothing new within the block time.
			continue
		} else if err != nil {
			b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not receive: %w", err), Ctx: ctx})

			// Retry the receive loop if there was an error.
			time.Sleep(time.Second)

			continue
		}

		// Handle all messages from group read.
		for _, stream := range streams {
			if stream.Stream != b.streamName {
				continue
			}

			for i := range stream.Messages {
				handler(ctx, &stream.Messages[i])
			}
		}
	}
}

func (b *EventBus) handler(m rh.EventMatcher, h rh.EventHandler, groupName string) func(ctx context.Context, msg *redis.XMessage) {
	return func(ctx context.Context, msg *redis.XMessage) {
		data, ok := msg.Values[dataKey].(string)
		if !ok {
			b.sendErr(&rh.EventPublisherError{
				Err: fmt.Errorf("event data is of incorrect type %T", msg.Values[dataKey]),
				Ctx: ctx,
			})

			// Undecodable messages are acked, a retry would fail the same way.
			b.ack(ctx, groupName, msg.ID)

			return
		}

		event, ctx, err := b.codec.UnmarshalEvent(ctx, []byte(data))
		if err != nil {
			b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not unmarshal event: %w", err), Ctx: ctx})
			b.ack(ctx, groupName, msg.ID)

			return
		}

		// Ignore non-matching events.
		if !m.Match(event) {
			b.ack(ctx, groupName, msg.ID)

			return
		}

		// Handle the event if it did match. Failed events stay pending in
		// the group.
		if err := h.HandleEvent(ctx, event); err != nil {
			b.sendErr(&rh.EventPublisherError{
				Err:   fmt.Errorf("could not handle event (%s): %w", h.HandlerType(), err),
				Ctx:   ctx,
				Event: event,
			})

			return
		}

		b.ack(ctx, groupName, msg.ID)
	}
}

func (b *EventBus) ack(ctx context.Context, groupName, id string) {
	if _, err := b.client.XAck(b.cctx, b.streamName, groupName, id).Result(); err != nil {
		b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not ack event: %w", err), Ctx: ctx})
	}
}

func (b *EventBus) sendErr(err error) {
	select {
	case b.errCh <- err:
	default:
		log.Printf("ringhorizon: missed error in Redis event bus: %s", err)
	}
}
