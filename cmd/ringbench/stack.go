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

package main

import (
	"context"
	"errors"
	"fmt"

	rh "github.com/looplab/ringhorizon"
	jsoncodec "github.com/looplab/ringhorizon/codec/json"
	msgpackcodec "github.com/looplab/ringhorizon/codec/msgpack"
	"github.com/looplab/ringhorizon/eventstore/badger"
	"github.com/looplab/ringhorizon/eventstore/memory"
	"github.com/looplab/ringhorizon/eventstore/mongodb"
	"github.com/looplab/ringhorizon/eventstore/postgres"
	"github.com/looplab/ringhorizon/publisher/gcp"
	"github.com/looplab/ringhorizon/publisher/kafka"
	"github.com/looplab/ringhorizon/publisher/local"
	"github.com/looplab/ringhorizon/publisher/nats"
	"github.com/looplab/ringhorizon/publisher/redis"
	"github.com/looplab/ringhorizon/uuid"
)

// stack is the store and the optional event bus of a run.
type stack struct {
	store rh.EventStore
	bus   rh.EventBus
}

func newStack(ctx context.Context, cfg Config) (*stack, error) {
	store, err := newEventStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create %s store: %w", cfg.Store, err)
	}

	bus, err := newEventBus(cfg)
	if err != nil {
		store.Close()

		return nil, fmt.Errorf("could not create %s publisher: %w", cfg.Publisher, err)
	}

	return &stack{
		store: store,
		bus:   bus,
	}, nil
}

// publisher returns the bus, or a publisher that drops the events.
func (s *stack) publisher() rh.EventPublisher {
	if s.bus == nil {
		return rh.EventPublisherFunc(func(context.Context, []rh.Event) error {
			return nil
		})
	}

	return s.bus
}

// Close closes the bus before the store.
func (s *stack) Close() error {
	var errs []error

	if s.bus != nil {
		errs = append(errs, s.bus.Close())
	}

	errs = append(errs, s.store.Close())

	return errors.Join(errs...)
}

func (c Config) codec() rh.EventCodec {
	if c.Codec == "msgpack" {
		return &msgpackcodec.EventCodec{}
	}

	return &jsoncodec.EventCodec{}
}

func newEventStore(ctx context.Context, cfg Config) (rh.EventStore, error) {
	switch cfg.Store {
	case "memory":
		return memory.NewEventStore(), nil
	case "badger":
		if cfg.StoreURI == "" {
			return badger.NewEventStore("", badger.WithInMemory(), badger.WithCodec(cfg.codec()))
		}

		return badger.NewEventStore(cfg.StoreURI, badger.WithCodec(cfg.codec()))
	case "postgres":
		return postgres.NewEventStore(ctx, cfg.StoreURI)
	case "mongodb":
		return mongodb.NewEventStore(cfg.StoreURI, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown store: %q", cfg.Store)
	}
}

func newEventBus(cfg Config) (rh.EventBus, error) {
	switch cfg.Publisher {
	case "none":
		return nil, nil
	case "local":
		return local.NewEventBus()
	case "redis":
		return redis.NewEventBus(cfg.PublisherAddr, cfg.AppID, "ringbench-"+uuid.New(), redis.WithCodec(cfg.codec()))
	case "kafka":
		return kafka.NewEventBus(cfg.PublisherAddr, cfg.AppID, kafka.WithCodec(cfg.codec()))
	case "nats":
		return nats.NewEventBus(cfg.PublisherAddr, cfg.AppID, nats.WithCodec(cfg.codec()))
	case "gcp":
		return gcp.NewEventBus(cfg.PublisherAddr, cfg.AppID, gcp.WithCodec(cfg.codec()))
	default:
		return nil, fmt.Errorf("unknown publisher: %q", cfg.Publisher)
	}
}
