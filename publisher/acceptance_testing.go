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

package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kr/pretty"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/mocks"
	"github.com/looplab/ringhorizon/uuid"
)

// AcceptanceTest is the acceptance test that all implementations of EventBus
// should pass. It should manually be called from a test case in each
// implementation:
//
//	func TestEventBus(t *testing.T) {
//	    bus1 := NewEventBus()
//	    bus2 := NewEventBus()
//	    publisher.AcceptanceTest(t, bus1, bus2, time.Second)
//	}
//
// The two buses must share their broker, handlers of the same type on both
// buses compete for the events.
func AcceptanceTest(t *testing.T, bus1, bus2 rh.EventBus, timeout time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus1.AddHandler(ctx, nil, mocks.NewEventHandler("no-matcher")); !errors.Is(err, rh.ErrMissingMatcher) {
		t.Error("there should be a missing matcher error:", err)
	}

	if err := bus1.AddHandler(ctx, rh.MatchAny{}, nil); !errors.Is(err, rh.ErrMissingHandler) {
		t.Error("there should be a missing handler error:", err)
	}

	if err := bus1.AddHandler(ctx, rh.MatchAny{}, mocks.NewEventHandler("multi")); err != nil {
		t.Error("there should be no error:", err)
	}

	if err := bus1.AddHandler(ctx, rh.MatchAny{}, mocks.NewEventHandler("multi")); !errors.Is(err, rh.ErrHandlerAlreadyAdded) {
		t.Error("there should be a handler already added error:", err)
	}

	ctx = mocks.WithContextOne(ctx, "testval")

	// Without handler.
	id := uuid.New()
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)
	event1 := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "event1"}, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 0))
	event2 := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "event2"}, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 1))

	if err := bus1.PublishEvents(ctx, []rh.Event{event1}); err != nil {
		t.Error("there should be no error:", err)
	}

	const handlerName = "handler"

	handlerBus1 := mocks.NewEventHandler(handlerName)
	handlerBus2 := mocks.NewEventHandler(handlerName)
	anotherHandlerBus2 := mocks.NewEventHandler("another_handler")

	for _, add := range []struct {
		bus rh.EventBus
		h   *mocks.EventHandler
	}{
		{bus1, handlerBus1},
		{bus2, handlerBus2},
		{bus2, anotherHandlerBus2},
	} {
		if err := add.bus.AddHandler(ctx, rh.MatchAny{}, add.h); err != nil {
			t.Fatal("there should be no error:", err)
		}
	}

	expectedEvents := []rh.Event{event1, event2}
	if err := bus1.PublishEvents(ctx, []rh.Event{event1, event2}); err != nil {
		t.Error("there should be no error:", err)
	}

	// The competing handlers together see every event once.
	received := waitForEvents(timeout, 2, handlerBus1, handlerBus2)
	if len(received) != len(expectedEvents) {
		t.Error("the competing handlers should receive each event once:", len(received))
		t.Log(pretty.Sprint(received))
	}

	for _, expected := range expectedEvents {
		n := 0
		for _, e := range received {
			if rh.CompareEvents(e, expected) == nil {
				n++
			}
		}

		if n != 1 {
			t.Errorf("the event %s should be received once, got %d", expected, n)
		}
	}

	if !hasContextOne(handlerBus1) && !hasContextOne(handlerBus2) {
		t.Error("the context should be correct")
	}

	// A single handler sees the events in order.
	received = waitForEvents(timeout, 2, anotherHandlerBus2)
	if !rh.CompareEventSlices(received, expectedEvents) {
		t.Error("the events were incorrect:")
		t.Log(pretty.Sprint(received))
	}

	if !hasContextOne(anotherHandlerBus2) {
		t.Error("the context should be correct:", anotherHandlerBus2.Context)
	}

	// Only matching events are handled.
	otherHandler := mocks.NewEventHandler("other_handler")
	if err := bus2.AddHandler(ctx, rh.MatchEvents{mocks.EventOtherType}, otherHandler); err != nil {
		t.Fatal("there should be no error:", err)
	}

	otherEvent := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 3))
	if err := bus1.PublishEvents(ctx, []rh.Event{
		rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "event3"}, timestamp,
			rh.ForAggregate(mocks.AggregateType, id, 2)),
		otherEvent,
	}); err != nil {
		t.Error("there should be no error:", err)
	}

	received = waitForEvents(timeout, 1, otherHandler)
	if !rh.CompareEventSlices(received, []rh.Event{otherEvent}) {
		t.Error("only the matching event should be handled:")
		t.Log(pretty.Sprint(received))
	}

	// Async errors from handlers.
	handlerErr := errors.New("handler error")
	errorHandler := mocks.NewEventHandler("error_handler")
	errorHandler.Err = handlerErr

	if err := bus1.AddHandler(ctx, rh.MatchAny{}, errorHandler); err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := bus1.PublishEvents(ctx, []rh.Event{event1}); err != nil {
		t.Error("there should be no error:", err)
	}

	select {
	case <-time.After(timeout + time.Second):
		t.Error("there should be an async error")
	case err := <-bus1.Errors():
		var pubErr *rh.EventPublisherError
		if !errors.As(err, &pubErr) || !errors.Is(err, handlerErr) {
			t.Error("wrong error sent on event bus:", err)
		}
	}
}

// waitForEvents polls the handlers until they have handled n events together
// or the timeout expires, and returns the handled events.
func waitForEvents(timeout time.Duration, n int, handlers ...*mocks.EventHandler) []rh.Event {
	deadline := time.Now().Add(timeout)

	for {
		var events []rh.Event

		for _, h := range handlers {
			h.Lock()
			events = append(events, h.Events...)
			h.Unlock()
		}

		if len(events) >= n || time.Now().After(deadline) {
			// Allow late duplicates to show up.
			if len(events) >= n {
				time.Sleep(10 * time.Millisecond)

				events = events[:0]
				for _, h := range handlers {
					h.Lock()
					events = append(events, h.Events...)
					h.Unlock()
				}
			}

			return events
		}

		time.Sleep(10 * time.Millisecond)
	}
}

func hasContextOne(h *mocks.EventHandler) bool {
	h.Lock()
	defer h.Unlock()

	val, ok := mocks.ContextOne(h.Context)

	return ok && val == "testval"
}
