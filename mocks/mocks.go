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

// Package mocks contains aggregates, commands, stores, publishers and handlers
// used by the tests of the other packages.
package mocks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/aggregate"
)

func init() {
	rh.RegisterEventData(EventType, func() rh.EventData { return &EventData{} })
}

const (
	// AggregateType is the type for Aggregate.
	AggregateType rh.AggregateType = "Aggregate"

	// EventType is a the type for Event.
	EventType rh.EventType = "Event"
	// EventOtherType is the type for EventOther.
	EventOtherType rh.EventType = "EventOther"

	// CommandType is the type for Command.
	CommandType rh.CommandType = "Command"
	// CommandOtherType is the type for CommandOther.
	CommandOtherType rh.CommandType = "CommandOther"
)

// ErrApply is returned by Aggregate.ApplyEvent for event data with the
// content "fail-apply".
var ErrApply = errors.New("could not apply event")

// Aggregate is a mocked event sourced aggregate, useful in testing. It counts
// the applied events and keeps their contents in order.
type Aggregate struct {
	*aggregate.AggregateBase

	Contents []string
	Context  context.Context
}

var _ = aggregate.Aggregate(&Aggregate{})

// NewAggregate returns a new Aggregate, it can be used as a rh.AggregateFactory.
func NewAggregate(id string) rh.Aggregate {
	return &Aggregate{
		AggregateBase: aggregate.NewAggregateBase(AggregateType, id),
	}
}

// ApplyEvent implements the ApplyEvent method of the aggregate.Aggregate interface.
func (a *Aggregate) ApplyEvent(ctx context.Context, event rh.Event) error {
	content := ""
	if data, ok := event.Data().(*EventData); ok {
		content = data.Content
	}

	if content == "fail-apply" {
		return ErrApply
	}

	a.Contents = append(a.Contents, content)
	a.Context = ctx

	return nil
}

// Count returns the number of applied events.
func (a *Aggregate) Count() int {
	return len(a.Contents)
}

// EventData is a mocked event data, useful in testing.
type EventData struct {
	Content string
}

// Command is a mocked rh.Command, useful in testing.
type Command struct {
	ID      string
	Content string
}

var _ = rh.Command(Command{})

func (t Command) AggregateID() string             { return t.ID }
func (t Command) AggregateType() rh.AggregateType { return AggregateType }
func (t Command) CommandType() rh.CommandType     { return CommandType }

// CommandOther is a mocked rh.Command, useful in testing.
type CommandOther struct {
	ID      string
	Content string
}

var _ = rh.Command(CommandOther{})

func (t CommandOther) AggregateID() string             { return t.ID }
func (t CommandOther) AggregateType() rh.AggregateType { return AggregateType }
func (t CommandOther) CommandType() rh.CommandType     { return CommandOtherType }

// CommandHandler is a mocked rh.CommandHandler, useful in testing.
type CommandHandler struct {
	sync.Mutex

	Commands []rh.Command
	Context  context.Context
	// Used to simulate errors when handling.
	Err error
}

// HandleCommand implements the HandleCommand method of the rh.CommandHandler interface.
func (h *CommandHandler) HandleCommand(ctx context.Context, cmd rh.Command) (interface{}, error) {
	h.Lock()
	defer h.Unlock()

	if h.Err != nil {
		return nil, h.Err
	}

	h.Commands = append(h.Commands, cmd)
	h.Context = ctx

	return len(h.Commands), nil
}

// EventHandler is a mocked rh.EventHandler, useful in testing.
type EventHandler struct {
	sync.Mutex

	Type    rh.EventHandlerType
	Events  []rh.Event
	Context context.Context
	Recv    chan rh.Event
	// Used to simulate errors when handling.
	Err error
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(handlerType rh.EventHandlerType) *EventHandler {
	return &EventHandler{
		Type:    handlerType,
		Context: context.Background(),
		Recv:    make(chan rh.Event, 10),
	}
}

// HandlerType implements the HandlerType method of the rh.EventHandler interface.
func (m *EventHandler) HandlerType() rh.EventHandlerType {
	return m.Type
}

// HandleEvent implements the HandleEvent method of the rh.EventHandler interface.
func (m *EventHandler) HandleEvent(ctx context.Context, event rh.Event) error {
	m.Lock()
	defer m.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Events = append(m.Events, event)
	m.Context = ctx

	select {
	case m.Recv <- event:
	default:
	}

	return nil
}

// Reset clears the handled events.
func (m *EventHandler) Reset() {
	m.Lock()
	defer m.Unlock()

	m.Events = nil
	m.Context = context.Background()
}

// Wait is a helper to wait some duration until for an event to be handled.
func (m *EventHandler) Wait(d time.Duration) bool {
	select {
	case <-m.Recv:
		return true
	case <-time.After(d):
		return false
	}
}

// WaitForEvent is a helper to wait until an event has been handled, it timeouts
// after 1 second.
func (m *EventHandler) WaitForEvent(t *testing.T) {
	t.Helper()

	if !m.Wait(time.Second) {
		t.Error("did not receive event in time")
	}
}

// EventStore is a mocked rh.EventStore, useful in testing. It keeps all saved
// events in one slice and does not check versions.
type EventStore struct {
	sync.Mutex

	Events  []rh.Event
	Loaded  string
	Saves   int
	Context context.Context
	// Used to simulate errors in the store.
	Err error
}

var _ = rh.EventStore(&EventStore{})

// Save implements the Save method of the rh.EventStore interface.
func (m *EventStore) Save(ctx context.Context, events []rh.Event, originalVersion int) error {
	m.Lock()
	defer m.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Events = append(m.Events, events...)
	m.Saves++
	m.Context = ctx

	return nil
}

// Load implements the Load method of the rh.EventStore interface.
func (m *EventStore) Load(ctx context.Context, id string) ([]rh.Event, error) {
	m.Lock()
	defer m.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	m.Loaded = id
	m.Context = ctx

	var events []rh.Event

	for _, e := range m.Events {
		if e.AggregateID() == id {
			events = append(events, e)
		}
	}

	return events, nil
}

// LoadRange implements the LoadRange method of the rh.EventStore interface.
func (m *EventStore) LoadRange(ctx context.Context, id string, fromVersion, toVersion int) ([]rh.Event, error) {
	events, err := m.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	var ranged []rh.Event

	for _, e := range events {
		if e.Version() >= fromVersion && e.Version() <= toVersion {
			ranged = append(ranged, e)
		}
	}

	return ranged, nil
}

// Close implements the Close method of the rh.EventStore interface.
func (m *EventStore) Close() error {
	return nil
}

// EventPublisher is a mocked rh.EventPublisher, useful in testing.
type EventPublisher struct {
	sync.Mutex

	Events  []rh.Event
	Calls   int
	Context context.Context
	// Used to simulate errors when publishing.
	Err error
}

var _ = rh.EventPublisher(&EventPublisher{})

// PublishEvents implements the PublishEvents method of the rh.EventPublisher interface.
func (m *EventPublisher) PublishEvents(ctx context.Context, events []rh.Event) error {
	m.Lock()
	defer m.Unlock()

	m.Calls++
	m.Context = ctx

	if m.Err != nil {
		return m.Err
	}

	m.Events = append(m.Events, events...)

	return nil
}

// Published returns a copy of the published events.
func (m *EventPublisher) Published() []rh.Event {
	m.Lock()
	defer m.Unlock()

	return append([]rh.Event(nil), m.Events...)
}

type contextKey int

const (
	contextKeyOne contextKey = iota
)

const (
	// The string key used to marshal contextKeyOne.
	contextKeyOneStr = "context_one"
)

// Register the marshalers and unmarshalers for ContextOne.
func init() {
	rh.RegisterContextMarshaler(func(ctx context.Context, vals map[string]interface{}) {
		if val, ok := ContextOne(ctx); ok {
			vals[contextKeyOneStr] = val
		}
	})
	rh.RegisterContextUnmarshaler(func(ctx context.Context, vals map[string]interface{}) context.Context {
		if val, ok := vals[contextKeyOneStr].(string); ok {
			return WithContextOne(ctx, val)
		}

		return ctx
	})
}

// WithContextOne sets a value for One one the context.
func WithContextOne(ctx context.Context, val string) context.Context {
	return context.WithValue(ctx, contextKeyOne, val)
}

// ContextOne returns a value for One from the context.
func ContextOne(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(contextKeyOne).(string)

	return val, ok
}
