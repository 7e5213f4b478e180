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

// Package aggregate contains the event sourced aggregate contract used by the
// command bus, and a base to embed in domain aggregates.
package aggregate

import (
	"context"
	"errors"
	"fmt"

	rh "github.com/looplab/ringhorizon"
)

// Aggregate is an event sourced aggregate. Its state is the result of applying
// its history in version order, and the events raised while handling a command
// are kept as uncommitted until they have been stored.
type Aggregate interface {
	rh.Aggregate

	// AggregateVersion returns the number of events applied to the aggregate,
	// which is also the version of the next event it raises.
	AggregateVersion() int
	// SetAggregateVersion sets the version of the aggregate.
	SetAggregateVersion(int)

	// UncommittedEvents returns the events raised since the last commit.
	UncommittedEvents() []rh.Event
	// ClearUncommittedEvents clears the raised events after a commit.
	ClearUncommittedEvents()

	// ApplyEvent applies an event to the aggregate state.
	ApplyEvent(context.Context, rh.Event) error
}

var (
	// ErrNotEventSourced is when an aggregate does not implement Aggregate.
	ErrNotEventSourced = errors.New("aggregate is not event sourced")
	// ErrIncorrectAggregateVersion is when an event does not follow the
	// version of the aggregate it is applied to.
	ErrIncorrectAggregateVersion = errors.New("incorrect aggregate version")
)

// ApplyError is an error from applying an event to an aggregate.
type ApplyError struct {
	Err   error
	Event rh.Event
}

// Error implements the Error method of the errors.Error interface.
func (e *ApplyError) Error() string {
	return fmt.Sprintf("could not apply event %s: %s", e.Event, e.Err)
}

// Unwrap implements the errors.Unwrap method.
func (e *ApplyError) Unwrap() error {
	return e.Err
}

// ApplyEvents applies events in order and advances the aggregate version by
// one per event. Each event must carry the current version of the aggregate.
// It is used both when replaying history and when committing newly stored
// events, so a cached aggregate and a replayed one end in the same state.
func ApplyEvents(ctx context.Context, a Aggregate, events []rh.Event) error {
	for _, event := range events {
		if event.Version() != a.AggregateVersion() {
			return &ApplyError{
				Err:   fmt.Errorf("%w: %d (should be %d)", ErrIncorrectAggregateVersion, event.Version(), a.AggregateVersion()),
				Event: event,
			}
		}

		if err := a.ApplyEvent(ctx, event); err != nil {
			return &ApplyError{Err: err, Event: event}
		}

		a.SetAggregateVersion(a.AggregateVersion() + 1)
	}

	return nil
}

// Replay builds an aggregate from its history using the factory.
func Replay(ctx context.Context, factory rh.AggregateFactory, id string, history []rh.Event) (Aggregate, error) {
	a, ok := factory(id).(Aggregate)
	if !ok {
		return nil, ErrNotEventSourced
	}

	if err := ApplyEvents(ctx, a, history); err != nil {
		return nil, err
	}

	return a, nil
}
