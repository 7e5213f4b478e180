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
	"context"
	"fmt"
	"log"

	rh "github.com/looplab/ringhorizon"
)

// worker is one consumer of the ring. Every worker reads every published slot
// in sequence order, processes the slots of the partitions it owns and then
// advances its sequence, which lets producers reuse the slot.
type worker struct {
	id    int
	bus   *Bus
	seq   *sequence
	cache *aggregateCache
}

func (w *worker) run() {
	defer w.bus.wg.Done()

	ring := w.bus.ring
	next := w.seq.get() + 1
	ready := func() bool { return ring.isAvailable(next) }

	for {
		if !ready() {
			w.bus.waitStrategy.Wait(ready, w.bus.alerted.Load)

			// Producers have all finished before the alert, nothing more
			// will be published.
			if !ready() {
				return
			}
		}

		available := ring.highestPublished(next, ring.cursor.get())

		for ; next <= available; next++ {
			if s := ring.slot(next); s.owner == w.id {
				w.process(s)
			}

			w.seq.set(next)
		}
	}
}

// process runs the full pipeline for one command. It resolves the future
// exactly once and never panics.
func (w *worker) process(s *slot) {
	future := s.future

	// Withdrawn before it was started.
	if err := s.ctx.Err(); err != nil {
		future.resolve(nil, err)

		return
	}

	u := &unitOfWork{worker: w, cmd: s.cmd}
	ctx := withUnitOfWork(context.WithoutCancel(s.ctx), u)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ringhorizon: recovered panic while committing %s (%s): %v", s.cmd.CommandType(), s.cmd.AggregateID(), r)
			u.rollback()
			future.resolve(nil, fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	result, err := w.handle(ctx, s.handler, s.cmd)
	if err != nil {
		u.rollback()
		future.resolve(nil, err)

		return
	}

	if err := u.commit(ctx); err != nil {
		u.rollback()
		future.resolve(nil, err)

		return
	}

	future.resolve(result, nil)
}

// handle invokes the handler, turning errors and panics into HandlerErrors.
func (w *worker) handle(ctx context.Context, h rh.CommandHandler, cmd rh.Command) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &HandlerError{Err: fmt.Errorf("%w: %v", ErrPanic, r), Command: cmd}
		}
	}()

	result, err = h.HandleCommand(ctx, cmd)
	if err != nil {
		return nil, &HandlerError{Err: err, Command: cmd}
	}

	return result, nil
}
