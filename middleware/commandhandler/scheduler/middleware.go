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

// Package scheduler delays commands to a point in time and dispatches
// recurring commands on a cron schedule, through any rh.CommandHandler such
// as the disruptor bus.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	rh "github.com/looplab/ringhorizon"
)

// NewMiddleware returns a new delayed handling middleware. Commands with an
// execution time are accepted at once and handled when the time is reached,
// errors from delayed handling are sent on the returned channel.
func NewMiddleware() (rh.CommandHandlerMiddleware, <-chan *Error) {
	errCh := make(chan *Error, 100)

	return rh.CommandHandlerMiddleware(func(h rh.CommandHandler) rh.CommandHandler {
		return rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
			c, ok := cmd.(Command)
			if !ok || c.ExecuteAt().IsZero() {
				// Immediate command execution.
				return h.HandleCommand(ctx, unwrap(cmd))
			}

			go func() {
				t := time.NewTimer(time.Until(c.ExecuteAt()))
				defer t.Stop()

				var err error

				select {
				case <-ctx.Done():
					err = ctx.Err()
				case <-t.C:
					_, err = h.HandleCommand(ctx, unwrap(cmd))
				}

				if err != nil {
					sendErr(errCh, &Error{err, ctx, cmd})
				}
			}()

			return nil, nil
		})
	}), errCh
}

// Command is a scheduled command with an execution time.
type Command interface {
	rh.Command

	// ExecuteAt returns the time when the command will execute.
	ExecuteAt() time.Time
}

// CommandWithExecuteTime returns a wrapped command with a execution time set.
// The inner handler gets the original command.
func CommandWithExecuteTime(cmd rh.Command, t time.Time) Command {
	return &command{Command: cmd, t: t}
}

// private implementation to wrap ordinary commands and add a execution time.
type command struct {
	rh.Command
	t time.Time
}

// ExecuteAt implements the ExecuteAt method of the Command interface.
func (c *command) ExecuteAt() time.Time {
	return c.t
}

func unwrap(cmd rh.Command) rh.Command {
	if c, ok := cmd.(*command); ok {
		return c.Command
	}

	return cmd
}

// Error is an async error containing the error and the command.
type Error struct {
	// Err is the error that happened when handling the command.
	Err error
	// Ctx is the context used when the error happened.
	Ctx context.Context
	// Command is the command handeled when the error happened.
	Command rh.Command
}

// Error implements the Error method of the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Command.CommandType(), e.Command.AggregateID(), e.Err.Error())
}

// Unwrap implements the errors.Unwrap method.
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause implements the github.com/pkg/errors Unwrap method.
func (e *Error) Cause() error {
	return e.Unwrap()
}

func sendErr(errCh chan<- *Error, err *Error) {
	select {
	case errCh <- err:
	default:
		log.Printf("ringhorizon: missed error in command scheduler: %s", err)
	}
}
