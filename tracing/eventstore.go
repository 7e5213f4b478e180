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

// EventStore is an rh.EventStore that adds tracing with Open Tracing.
type EventStore struct {
	rh.EventStore
}

var _ = rh.EventStore(&EventStore{})

// NewEventStore creates a new EventStore.
func NewEventStore(eventStore rh.EventStore) *EventStore {
	if eventStore == nil {
		return nil
	}

	return &EventStore{
		EventStore: eventStore,
	}
}

// Save implements the Save method of the rh.EventStore interface.
func (s *EventStore) Save(ctx context.Context, events []rh.Event, originalVersion int) error {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.Save")

	err := s.EventStore.Save(ctx, events, originalVersion)

	// Use the first event for tracing metadata.
	if len(events) > 0 {
		setEventTags(sp, events[0])
	}
	if err != nil {
		ext.LogError(sp, err)
	}
	sp.Finish()

	return err
}

// Load implements the Load method of the rh.EventStore interface.
func (s *EventStore) Load(ctx context.Context, id string) ([]rh.Event, error) {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.Load")

	events, err := s.EventStore.Load(ctx, id)

	sp.SetTag("rh.aggregate_id", id)
	sp.SetTag("rh.num_events", len(events))
	if err != nil {
		ext.LogError(sp, err)
	}
	sp.Finish()

	return events, err
}

// LoadRange implements the LoadRange method of the rh.EventStore interface.
func (s *EventStore) LoadRange(ctx context.Context, id string, fromVersion, toVersion int) ([]rh.Event, error) {
	sp, ctx := opentracing.StartSpanFromContext(ctx, "EventStore.LoadRange")

	events, err := s.EventStore.LoadRange(ctx, id, fromVersion, toVersion)

	sp.SetTag("rh.aggregate_id", id)
	sp.SetTag("rh.from_version", fromVersion)
	sp.SetTag("rh.to_version", toVersion)
	sp.SetTag("rh.num_events", len(events))
	if err != nil {
		ext.LogError(sp, err)
	}
	sp.Finish()

	return events, err
}
