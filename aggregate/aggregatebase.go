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

package aggregate

import (
	"time"

	rh "github.com/looplab/ringhorizon"
)

// AggregateBase is a event sourced aggregate base to embed in a domain aggregate.
//
// A typical example:
//
//	type UserAggregate struct {
//	    *aggregate.AggregateBase
//
//	    name string
//	}
//
// Using a new function to create aggregates and setting up the
// aggregate base is recommended, it doubles as the factory for a repository:
//
//	func NewUserAggregate(id string) rh.Aggregate {
//	    return &UserAggregate{
//	        AggregateBase: aggregate.NewAggregateBase(UserAggregateType, id),
//	    }
//	}
//
// The aggregate must return an error if the event can not be applied, or nil
// to signal success (which will increment the version).
//
//	func (a *UserAggregate) ApplyEvent(ctx context.Context, event rh.Event) error {
//	    switch event.EventType() {
//	    case UserCreatedEvent:
//	        // Apply the event data to the aggregate.
//	    }
//	}
type AggregateBase struct {
	id     string
	t      rh.AggregateType
	v      int
	events []rh.Event
}

// NewAggregateBase creates an aggregate.
func NewAggregateBase(t rh.AggregateType, id string) *AggregateBase {
	return &AggregateBase{
		id: id,
		t:  t,
	}
}

// EntityID implements the EntityID method of the rh.Entity and rh.Aggregate interface.
func (a *AggregateBase) EntityID() string {
	return a.id
}

// AggregateType implements the AggregateType method of the rh.Aggregate interface.
func (a *AggregateBase) AggregateType() rh.AggregateType {
	return a.t
}

// AggregateVersion implements the AggregateVersion method of the Aggregate interface.
func (a *AggregateBase) AggregateVersion() int {
	return a.v
}

// SetAggregateVersion implements the SetAggregateVersion method of the Aggregate interface.
func (a *AggregateBase) SetAggregateVersion(v int) {
	a.v = v
}

// UncommittedEvents implements the UncommittedEvents method of the Aggregate interface.
func (a *AggregateBase) UncommittedEvents() []rh.Event {
	return a.events
}

// ClearUncommittedEvents implements the ClearUncommittedEvents method of the
// Aggregate interface.
func (a *AggregateBase) ClearUncommittedEvents() {
	a.events = nil
}

// AppendEvent appends an event for later retrieval by UncommittedEvents. The
// event gets the next free version of the aggregate.
func (a *AggregateBase) AppendEvent(t rh.EventType, data rh.EventData, timestamp time.Time, options ...rh.EventOption) rh.Event {
	options = append(options, rh.ForAggregate(
		a.AggregateType(),
		a.EntityID(),
		a.AggregateVersion()+len(a.events)),
	)
	e := rh.NewEvent(t, data, timestamp, options...)
	a.events = append(a.events, e)

	return e
}
