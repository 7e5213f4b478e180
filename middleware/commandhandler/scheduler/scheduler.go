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

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	rh "github.com/looplab/ringhorizon"
)

// Scheduler dispatches commands on regular intervals. It uses the cron syntax
// from https://github.com/gorhill/cronexpr, with an optional leading seconds
// field.
type Scheduler struct {
	ctx   context.Context
	h     rh.CommandHandler
	errCh chan *Error
	wg    sync.WaitGroup
}

// NewScheduler creates a scheduler that dispatches to h until ctx is cancelled.
func NewScheduler(ctx context.Context, h rh.CommandHandler) *Scheduler {
	return &Scheduler{
		ctx:   ctx,
		h:     h,
		errCh: make(chan *Error, 100),
	}
}

// ScheduleCommand schedules a command to be handled on regular intervals,
// using a line in the crontab format to setup the timing. The cmdFunc creates
// the command to handle given the triggered time. Cancelling the context
// stops this schedule only.
func (s *Scheduler) ScheduleCommand(ctx context.Context, cronLine string, cmdFunc func(time.Time) rh.Command) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	if cmdFunc == nil {
		return fmt.Errorf("missing command func")
	}

	expr, err := cronexpr.Parse(cronLine)
	if err != nil {
		return fmt.Errorf("could not parse cron line: %w", err)
	}

	s.wg.Add(1)

	// Schedule until either this schedule is canceled or the full scheduler is stopped.
	go func() {
		defer s.wg.Done()

		for {
			next := expr.Next(time.Now())
			if next.IsZero() {
				return
			}

			t := time.NewTimer(time.Until(next))

			select {
			case <-t.C:
				cmd := cmdFunc(next)
				if _, err := s.h.HandleCommand(ctx, cmd); err != nil {
					sendErr(s.errCh, &Error{err, ctx, cmd})
				}
			case <-ctx.Done():
				t.Stop()

				return
			case <-s.ctx.Done():
				t.Stop()

				return
			}
		}
	}()

	return nil
}

// Errors returns the errors from handling scheduled commands.
func (s *Scheduler) Errors() <-chan *Error {
	return s.errCh
}

// Wait waits for all schedules to stop after their contexts are cancelled.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
