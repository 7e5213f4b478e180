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

package eventstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/mocks"
	"github.com/looplab/ringhorizon/uuid"
)

// AcceptanceTest is the acceptance test that all implementations of EventStore
// should pass. It should manually be called from a test case in each
// implementation:
//
//	func TestEventStore(t *testing.T) {
//	    store := NewEventStore()
//	    eventstore.AcceptanceTest(t, store, context.Background())
//	}
func AcceptanceTest(t *testing.T, store rh.EventStore, ctx context.Context) []rh.Event {
	savedEvents := []rh.Event{}

	// Save no events.
	eventStoreErr := &rh.EventStoreError{}

	err := store.Save(ctx, []rh.Event{}, 0)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, rh.ErrMissingEvents) {
		t.Error("there should be a event store error:", err)
	}

	// Save event, version 0.
	id := uuid.New()
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)
	event1 := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"}, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 0))

	err = store.Save(ctx, []rh.Event{event1}, 0)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event1)

	// Try to save same event twice.
	err = store.Save(ctx, []rh.Event{event1}, 0)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, rh.ErrIncorrectEventVersion) {
		t.Error("there should be a event store error:", err)
	}

	// Try to save with a stale original version.
	eventStale := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "stale"}, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 1))

	err = store.Save(ctx, []rh.Event{eventStale}, 2)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, rh.ErrIncorrectEventVersion) {
		t.Error("there should be a event store error:", err)
	}

	// Save event, version 1, with metadata.
	event2 := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "event2"}, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 1),
		rh.WithMetadata(map[string]interface{}{"meta": "data", "num": 42.0}),
	)

	err = store.Save(ctx, []rh.Event{event2}, 1)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event2)

	// Save event without data, version 2.
	event3 := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 2))

	err = store.Save(ctx, []rh.Event{event3}, 2)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event3)

	// Save multiple events, version 3, 4 and 5.
	event4 := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 3))
	event5 := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 4))
	event6 := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 5))

	err = store.Save(ctx, []rh.Event{event4, event5, event6}, 3)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event4, event5, event6)

	// Save event for different aggregate IDs.
	eventSameAggID := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 6))
	eventOtherAggID := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, uuid.New(), 7))

	err = store.Save(ctx, []rh.Event{eventSameAggID, eventOtherAggID}, 6)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, rh.ErrMismatchedEventAggregateIDs) {
		t.Error("there should be a event store error:", err)
	}

	// Save event of different aggregate types.
	eventSameAggType := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 6))
	eventOtherAggType := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(rh.AggregateType("OtherAggregate"), id, 7))

	err = store.Save(ctx, []rh.Event{eventSameAggType, eventOtherAggType}, 6)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, rh.ErrMismatchedEventAggregateTypes) {
		t.Error("there should be a event store error:", err)
	}

	// A batch with a gap stores nothing.
	eventGap1 := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 6))
	eventGap2 := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 8))

	err = store.Save(ctx, []rh.Event{eventGap1, eventGap2}, 6)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, rh.ErrIncorrectEventVersion) {
		t.Error("there should be a event store error:", err)
	}

	// Save event for another aggregate.
	id2 := uuid.New()
	event7 := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "event7"}, timestamp,
		rh.ForAggregate(mocks.AggregateType, id2, 0))

	err = store.Save(ctx, []rh.Event{event7}, 0)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	savedEvents = append(savedEvents, event7)

	// Load events for non-existing aggregate.
	events, err := store.Load(ctx, uuid.New())
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(events) != 0 {
		t.Error("there should be no loaded events:", eventsToString(events))
	}

	// Load events.
	events, err = store.Load(ctx, id)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	expectedEvents := []rh.Event{
		event1,                 // Version 0
		event2,                 // Version 1
		event3,                 // Version 2
		event4, event5, event6, // Version 3, 4 and 5
	}

	if len(events) != len(expectedEvents) {
		t.Errorf("incorrect number of loaded events: %s", eventsToString(events))
	}

	for i, event := range events {
		if i >= len(expectedEvents) {
			break
		}

		if err := rh.CompareEvents(event, expectedEvents[i]); err != nil {
			t.Error("the event was incorrect:", err)
		}

		if event.Version() != i {
			t.Error("the event version should be correct:", event, event.Version())
		}
	}

	// Load events for another aggregate.
	events, err = store.Load(ctx, id2)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(events) != 1 {
		t.Errorf("incorrect number of loaded events: %s", eventsToString(events))
	} else if err := rh.CompareEvents(events[0], event7); err != nil {
		t.Error("the event was incorrect:", err)
	}

	// Load a range.
	events, err = store.LoadRange(ctx, id, 1, 3)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if !rh.CompareEventSlices(events, []rh.Event{event2, event3, event4}) {
		t.Error("the range should be correct:", eventsToString(events))
	}

	// Load a range past the end.
	events, err = store.LoadRange(ctx, id, 4, 100)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	assert.Len(t, events, 2)

	// Load an inverted range.
	_, err = store.LoadRange(ctx, id, 3, 1)
	if !errors.As(err, &eventStoreErr) || !errors.Is(err, rh.ErrInvalidVersionRange) {
		t.Error("there should be a event store error:", err)
	}

	return savedEvents
}

// ConcurrencyAcceptanceTest saves the same next version of one aggregate from
// several goroutines. Exactly one save may succeed, the others must fail with
// rh.ErrIncorrectEventVersion.
func ConcurrencyAcceptanceTest(t *testing.T, store rh.EventStore, ctx context.Context) {
	id := uuid.New()
	timestamp := time.Now()

	const writers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			e := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: fmt.Sprint("writer", i)}, timestamp,
				rh.ForAggregate(mocks.AggregateType, id, 0))

			err := store.Save(ctx, []rh.Event{e}, 0)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case errors.Is(err, rh.ErrIncorrectEventVersion):
				conflicts++
			default:
				t.Error("there should be no other error:", err)
			}
		}(i)
	}

	wg.Wait()

	if successes != 1 || conflicts != writers-1 {
		t.Errorf("exactly one writer should succeed: %d successes, %d conflicts", successes, conflicts)
	}

	events, err := store.Load(ctx, id)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if len(events) != 1 || events[0].Version() != 0 {
		t.Error("there should be one stored event:", eventsToString(events))
	}
}

func eventsToString(events []rh.Event) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = fmt.Sprintf("%s:%s (%s@%d)",
			e.AggregateType(), e.EventType(),
			e.AggregateID(), e.Version())
	}

	return strings.Join(parts, ", ")
}
