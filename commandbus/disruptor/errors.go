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

package disruptor

import (
	"errors"
	"fmt"

	rh "github.com/looplab/ringhorizon"
)

var (
	// ErrMissingEventStore is when the bus is created without a store.
	ErrMissingEventStore = errors.New("missing event store")
	// ErrMissingEventPublisher is when the bus is created without a publisher.
	ErrMissingEventPublisher = errors.New("missing event publisher")
	// ErrQueueFull is when the ring is at capacity, either at once with the
	// FailFast policy or after the max wait with the Block policy.
	ErrQueueFull = errors.New("command queue is full")
	// ErrHandlerNotFound is when no handler is subscribed for a command type.
	ErrHandlerNotFound = errors.New("no handler for command")
	// ErrBusStopped is when dispatching on a stopped bus.
	ErrBusStopped = errors.New("command bus is stopped")
	// ErrNoUnitOfWork is when loading an aggregate outside of a handler
	// invoked by the bus.
	ErrNoUnitOfWork = errors.New("no unit of work in context")
	// ErrUnexpectedAggregate is when a handler loads an aggregate other than
	// the target of its command. That aggregate may be owned by another worker.
	ErrUnexpectedAggregate = errors.New("aggregate is not the command target")
	// ErrPanic is wrapped when a handler or a commit panicked.
	ErrPanic = errors.New("recovered panic")
)

// HandlerError is an error returned by, or recovered from, a command handler.
// Nothing was stored or published for the command.
type HandlerError struct {
	// Err is the error.
	Err error
	// Command is the command that failed.
	Command rh.Command
}

// Error implements the Error method of the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Command.CommandType(), e.Command.AggregateID(), e.Err)
}

// Unwrap implements the errors.Unwrap method.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Cause implements the github.com/pkg/errors Unwrap method.
func (e *HandlerError) Cause() error {
	return e.Unwrap()
}
