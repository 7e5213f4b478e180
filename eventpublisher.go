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

// EventPublisher publishes events after they have been stored. It is called
// once per successfully handled command, with the events of that command in
// version order.
//
// Implementations must not block for long, a slow subscriber would otherwise
// stall the partition of the command bus that published.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events []Event) error
}

// EventPublisherFunc is a function that can be used as an event publisher.
type EventPublisherFunc func(context.Context, []Event) error

// PublishEvents implements the PublishEvents method of the EventPublisher interface.
func (f EventPublisherFunc) PublishEvents(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

// EventPublishers is a group of publishers that all get the same events, in
// order. All publishers are tried even if one of them fails.
type EventPublishers []EventPublisher

// PublishEvents implements the PublishEvents method of the EventPublisher interface.
func (p EventPublishers) PublishEvents(ctx context.Context, events []Event) error {
	var errs []error

	for _, publisher := range p {
		if err := publisher.PublishEvents(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// EventBus is an EventPublisher that also delivers the published events to
// subscribed handlers, in this process or through a broker.
//
// Handlers are identified by their type. Handlers of the same type added on
// different buses sharing a broker compete for the events, each event batch
// is handled by one of them.
type EventBus interface {
	EventPublisher

	// AddHandler adds a handler for events matching the EventMatcher. It
	// handles events until the context is cancelled or the bus is closed.
	AddHandler(context.Context, EventMatcher, EventHandler) error

	// Errors returns an error channel where async handling errors are sent.
	Errors() <-chan error

	// Close stops all handlers and closes the bus.
	Close() error
}

// EventHandlerType is the type of an event handler, used as its unique identifier.
type EventHandlerType string

// String returns the string representation of an event handler type.
func (ht EventHandlerType) String() string {
	return string(ht)
}

// EventHandler is a handler of events, for example a projector or a read
// model updater subscribed to a publisher.
type EventHandler interface {
	// HandlerType is the type of the handler.
	HandlerType() EventHandlerType

	// HandleEvent handles an event.
	HandleEvent(context.Context, Event) error
}

// EventHandlerFunc is a function that can be used as a event handler.
type EventHandlerFunc func(context.Context, Event) error

// HandleEvent implements the HandleEvent method of the EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// HandlerType implements the HandlerType method of the EventHandler by returning
// a type unique to the function value.
func (f EventHandlerFunc) HandlerType() EventHandlerType {
	return EventHandlerType(fmt.Sprintf("handler-func-%p", f))
}

var (
	// ErrMissingMatcher is returned when calling AddHandler without a matcher.
	ErrMissingMatcher = errors.New("missing matcher")
	// ErrMissingHandler is returned when calling AddHandler with a nil handler.
	ErrMissingHandler = errors.New("missing handler")
	// ErrHandlerAlreadyAdded is returned when calling AddHandler twice for
	// the same handler type.
	ErrHandlerAlreadyAdded = errors.New("handler already added")
	// ErrPublisherClosed is when publishing on a closed publisher.
	ErrPublisherClosed = errors.New("publisher closed")
)

// EventPublisherError is an async error from a publisher or one of its
// subscribed handlers.
type EventPublisherError struct {
	// Err is the error.
	Err error
	// Ctx is the context used when the error happened.
	Ctx context.Context
	// Event is the event handeled when the error happened.
	Event Event
}

// Error implements the Error method of the errors.Error interface.
func (e *EventPublisherError) Error() string {
	str := "event publisher: "

	if e.Err != nil {
		str += e.Err.Error()
	} else {
		str += "unknown error"
	}

	if e.Event != nil {
		str += ", " + e.Event.String()
	}

	return str
}

// Unwrap implements the errors.Unwrap method.
func (e *EventPublisherError) Unwrap() error {
	return e.Err
}
