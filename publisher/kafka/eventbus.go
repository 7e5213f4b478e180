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

// Package kafka is an EventBus on a Kafka topic. Messages are keyed by
// aggregate ID so the events of one aggregate stay in one partition, in order.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/codec/json"
)

// EventBus is an event bus that forwards published events to a Kafka topic
// and delivers them to the matching handlers of all buses on the topic.
type EventBus struct {
	// TODO: Support multiple brokers.
	addr         string
	appID        string
	topic        string
	partitions   int
	writer       *kafka.Writer
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
func NewEventBus(addr, appID string, options ...Option) (*EventBus, error) {
	ctx, cancel := context.WithCancel(context.Background())

	topic := appID + "_events"
	b := &EventBus{
		addr:       addr,
		appID:      appID,
		topic:      topic,
		partitions: 1,
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

	if err := b.createTopic(); err != nil {
		cancel()

		return nil, err
	}

	b.writer = &kafka.Writer{
		Addr:         kafka.TCP(addr),
		Topic:        topic,
		Balancer:     &kafka.Hash{},    // Same aggregate, same partition.
		BatchSize:    1,                // Write every event to the bus without delay.
		RequiredAcks: kafka.RequireOne, // Stronger consistency.
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

// WithTopicPartitions sets the number of partitions used when creating the
// topic. Existing topics are used as they are.
func WithTopicPartitions(n int) Option {
	return func(b *EventBus) error {
		if n < 1 {
			return errors.New("at least one partition is needed")
		}

		b.partitions = n

		return nil
	}
}

// Get or create the topic, waiting for the broker to come up.
func (b *EventBus) createTopic() error {
	client := &kafka.Client{
		Addr: kafka.TCP(b.addr),
	}

	var (
		resp *kafka.CreateTopicsResponse
		err  error
	)

	for i := 0; i < 10; i++ {
		resp, err = client.CreateTopics(b.cctx, &kafka.CreateTopicsRequest{
			Topics: []kafka.TopicConfig{{
				Topic:             b.topic,
				NumPartitions:     b.partitions,
				ReplicationFactor: 1,
			}},
		})
		if errors.Is(err, kafka.BrokerNotAvailable) {
			time.Sleep(5 * time.Second)

			continue
		} else if err != nil {
			return fmt.Errorf("error creating Kafka topic: %w", err)
		}

		break
	}

	if resp == nil {
		return fmt.Errorf("could not get/create Kafka topic in time: %w", err)
	}

	if topicErr, ok := resp.Errors[b.topic]; ok && topicErr != nil {
		if !errors.Is(topicErr, kafka.TopicAlreadyExists) {
			return fmt.Errorf("invalid Kafka topic: %w", topicErr)
		}
	}

	return nil
}

const (
	aggregateTypeHeader = "aggregate_type"
	eventTypeHeader     = "event_type"
)

// PublishEvents implements the PublishEvents method of the rh.EventPublisher interface.
func (b *EventBus) PublishEvents(ctx context.Context, events []rh.Event) error {
	if b.cctx.Err() != nil {
		return rh.ErrPublisherClosed
	}

	msgs := make([]kafka.Message, 0, len(events))

	for _, event := range events {
		data, err := b.codec.MarshalEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("could not marshal event: %w", err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.AggregateID()),
			Value: data,
			Headers: []kafka.Header{
				{
					Key:   aggregateTypeHeader,
					Value: []byte(event.AggregateType().String()),
				},
				{
					Key:   eventTypeHeader,
					Value: []byte(event.EventType().String()),
				},
			},
		})
	}

	if err := b.writer.WriteMessages(ctx, msgs...); err != nil {
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

	// Get or create the subscription.
	joined := make(chan struct{})
	joinOnce := sync.Once{}
	groupID := b.appID + "_" + h.HandlerType().String()
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:                []string{b.addr},
		Topic:                  b.topic,
		GroupID:                groupID,     // Send messages to only one subscriber per group.
		MaxBytes:               100e3,       // 100KB
		MaxWait:                time.Second, // Allow to exit readloop in max 1s.
		PartitionWatchInterval: time.Second,
		WatchPartitionChanges:  true,
		StartOffset:            kafka.LastOffset, // Don't read old messages.
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			// NOTE: Hacky way to use logger to find out when the reader is ready.
			if strings.HasPrefix(msg, "Joined group") {
				joinOnce.Do(func() { close(joined) })
			}
		}),
	})

	select {
	case <-joined:
	case <-time.After(10 * time.Second):
		r.Close()

		return fmt.Errorf("did not join group in time")
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

		b.handle(hctx, m, h, r)
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

	if err := b.writer.Close(); err != nil {
		return fmt.Errorf("could not close Kafka writer: %w", err)
	}

	return nil
}

// Handles all events coming in on the topic.
func (b *EventBus) handle(ctx context.Context, m rh.EventMatcher, h rh.EventHandler, r *kafka.Reader) {
	defer b.wg.Done()

	handler := b.handler(m, h, r)

	for {
		msg, err := r.FetchMessage(ctx)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			break
		}

		if err != nil {
			b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not receive: %w", err), Ctx: ctx})

			// Retry the receive loop if there was an error.
			time.Sleep(time.Second)

			continue
		}

		handler(ctx, msg)
	}

	if err := r.Close(); err != nil {
		log.Printf("ringhorizon: failed to close Kafka reader: %s", err)
	}
}

func (b *EventBus) handler(m rh.EventMatcher, h rh.EventHandler, r *kafka.Reader) func(ctx context.Context, msg kafka.Message) {
	return func(ctx context.Context, msg kafka.Message) {
		event, ectx, err := b.codec.UnmarshalEvent(ctx, msg.Value)
		if err != nil {
			b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not unmarshal event: %w", err), Ctx: ctx})
			b.commit(ctx, r, msg)

			return
		}

		// Ignore non-matching events.
		if !m.Match(event) {
			b.commit(ctx, r, msg)

			return
		}

		// Handle the event if it did match.
		if err := h.HandleEvent(ectx, event); err != nil {
			b.sendErr(&rh.EventPublisherError{
				Err:   fmt.Errorf("could not handle event (%s): %w", h.HandlerType(), err),
				Ctx:   ectx,
				Event: event,
			})

			return
		}

		b.commit(ctx, r, msg)
	}
}

func (b *EventBus) commit(ctx context.Context, r *kafka.Reader, msg kafka.Message) {
	if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		b.sendErr(&rh.EventPublisherError{Err: fmt.Errorf("could not commit message: %w", err), Ctx: ctx})
	}
}

func (b *EventBus) sendErr(err error) {
	select {
	case b.errCh <- err:
	default:
		log.Printf("ringhorizon: missed error in Kafka event bus: %s", err)
	}
}
