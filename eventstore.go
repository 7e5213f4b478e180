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

package ringhorizon

import (
	"context"
	"errors"
	"fmt"
)

// EventStore is an interface for an event sourcing event store.
//
// Every aggregate has its own append-only history. The events in one history
// have contiguous versions starting at 0.
type EventStore interface {
	// Save appends all events to the history of their aggregate. All events
	// must belong to the same aggregate. The originalVersion is the number of
	// events already stored for the aggregate, the events must have versions
	// originalVersion, originalVersion+1 and so on. A mismatch returns an
	// EventStoreError wrapping ErrIncorrectEventVersion and stores nothing.
	Save(ctx context.Context, events []Event, originalVersion int) error

	// Load loads all events for the aggregate id from the store, in version
	// order. An unknown aggregate has an empty history.
	Load(ctx context.Context, id string) ([]Event, error)

	// LoadRange loads the events with versions from fromVersion up to and
	// including toVersion, in version order.
	LoadRange(ctx context.Context, id string, fromVersion, toVersion int) ([]Event, error)

	// Close closes the EventStore.
	Close() error
}

var (
	// ErrMissingEvents is when there is no events to save.
	ErrMissingEvents = errors.New("missing events")
	// ErrMismatchedEventAggregateIDs is when the events have different aggregate IDs.
	ErrMismatchedEventAggregateIDs = errors.New("mismatched event aggregate IDs")
	// ErrMismatchedEventAggregateTypes is when the events have different aggregate types.
	ErrMismatchedEventAggregateTypes = errors.New("mismatched event aggregate types")
	// ErrIncorrectEventVersion is when an event is for an other version of the
	// aggregate, signalling a conflicting write for the same aggregate.
	ErrIncorrectEventVersion = errors.New("mismatching event version")
	// ErrInvalidVersionRange is when a range load has an inverted range.
	ErrInvalidVersionRange = errors.New("invalid version range")
	// ErrCouldNotSaveEvents is when events could not be saved.
	ErrCouldNotSaveEvents = errors.New("could not save events")
	// ErrCouldNotLoadEvents is when events could not be loaded.
	ErrCouldNotLoadEvents = errors.New("could not load events")
	// ErrCouldNotUnmarshalEvent is when an event could not be unmarshaled.
	ErrCouldNotUnmarshalEvent = errors.New("could not unmarshal event")
)

// EventStoreOperation is the operation done when an error happened.
type EventStoreOperation string

const (
	// Errors during loading of events.
	EventStoreOpLoad EventStoreOperation = "load"
	// Errors during range loading of events.
	EventStoreOpLoadRange EventStoreOperation = "load range"
	// Errors during saving of events.
	EventStoreOpSave EventStoreOperation = "save"
)

// EventStoreError is an error in the event store.
type EventStoreError struct {
	// Err is the error.
	Err error
	// Op is the operation for the error.
	Op EventStoreOperation
	// AggregateType of related operation.
	AggregateType AggregateType
	// AggregateID of related operation.
	AggregateID string
	// AggregateVersion of related operation.
	AggregateVersion int
	// Events of the related operation.
	Events []Event
}

// Error implements the Error method of the errors.Error interface.
func (e *EventStoreError) Error() string {
	str := "event store: "

	if e.Op != "" {
		str += string(e.Op) + ": "
	}

	if e.Err != nil {
		str += e.Err.Error()
	} else {
		str += "unknown error"
	}

	if e.AggregateID != "" {
		at := "Aggregate"
		if e.AggregateType != "" {
			at = string(e.AggregateType)
		}

		str += fmt.Sprintf(", %s(%s, v%d)", at, e.AggregateID, e.AggregateVersion)
	}

	if len(e.Events) > 0 {
		var es []string
		for _, ev := range e.Events {
			if ev != nil {
				es = append(es, ev.String())
			} else {
				es = append(es, "nil event")
			}
		}

		str += fmt.Sprintf(" [%v]", es)
	}

	return str
}

// Unwrap implements the errors.Unwrap method.
func (e *EventStoreError) Unwrap() error {
	return e.Err
}

// Cause implements the github.com/pkg/errors Unwrap method.
func (e *EventStoreError) Cause() error {
	return e.Unwrap()
}

// CheckEventsForSave validates a batch of events before it is stored: it must
// be non-empty, belong to one aggregate and have contiguous versions starting
// at originalVersion. It is shared by the store implementations.
func CheckEventsForSave(events []Event, originalVersion int) error {
	if len(events) == 0 {
		return &EventStoreError{
			Err: ErrMissingEvents,
			Op:  EventStoreOpSave,
		}
	}

	id := events[0].AggregateID()
	at := events[0].AggregateType()

	for i, event := range events {
		storeErr := &EventStoreError{
			Op:               EventStoreOpSave,
			AggregateType:    at,
			AggregateID:      id,
			AggregateVersion: originalVersion,
			Events:           events,
		}

		switch {
		case event.AggregateID() != id:
			storeErr.Err = ErrMismatchedEventAggregateIDs
		case event.AggregateType() != at:
			storeErr.Err = ErrMismatchedEventAggregateTypes
		case event.Version() != originalVersion+i:
			storeErr.Err = ErrIncorrectEventVersion
		default:
			continue
		}

		return storeErr
	}

	return nil
}
