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

package tracing

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	rh "github.com/looplab/ringhorizon"
)

// EventBus is an event bus wrapper that adds tracing.
type EventBus struct {
	rh.EventBus
}

var _ = rh.EventBus(&EventBus{})

// NewEventBus creates a EventBus.
func NewEventBus(eventBus rh.EventBus) *EventBus {
	if eventBus == nil {
		return nil
	}

	return &EventBus{
		EventBus: eventBus,
	}
}

// PublishEvents implements the PublishEvents method of the rh.EventPublisher interface.
func (b *EventBus) PublishEvents(ctx context.Context, events []rh.Event) error {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventBus.PublishEvents")

	err := b.EventBus.PublishEvents(ctx, events)

	if len(events) > 0 {
		setEventTags(sp, events[0])
		sp.SetTag("rh.num_events", len(events))
	}
	if err != nil {
		ext.LogError(sp, err)
	}
	sp.Finish()

	return err
}

// AddHandler implements the AddHandler method of the rh.EventBus interface.
func (b *EventBus) AddHandler(ctx context.Context, m rh.EventMatcher, h rh.EventHandler) error {
	if h == nil {
		return rh.ErrMissingHandler
	}

	return b.EventBus.AddHandler(ctx, m, NewEventHandler(h))
}
