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
	"github.com/looplab/ringhorizon/aggregate"
)

type unitOfWorkKey struct{}

// unitOfWork is the scope of one command on a worker. It holds the target
// aggregate once a repository has loaded it.
type unitOfWork struct {
	worker *worker
	cmd    rh.Command
	handle *AggregateHandle
}

func withUnitOfWork(ctx context.Context, u *unitOfWork) context.Context {
	return context.WithValue(ctx, unitOfWorkKey{}, u)
}

func unitOfWorkFromContext(ctx context.Context) (*unitOfWork, bool) {
	u, ok := ctx.Value(unitOfWorkKey{}).(*unitOfWork)

	return u, ok
}

// commit stores the events raised on the loaded aggregate, applies them to it
// and publishes them. Publishing errors do not fail the commit, the events
// are already durable.
func (u *unitOfWork) commit(ctx context.Context) error {
	if u.handle == nil {
		return nil
	}

	agg := u.handle.agg
	events := agg.UncommittedEvents()

	if len(events) == 0 {
		return nil
	}

	bus := u.worker.bus
	if err := bus.store.Save(ctx, events, agg.AggregateVersion()); err != nil {
		return err
	}

	agg.ClearUncommittedEvents()

	applyErr := aggregate.ApplyEvents(ctx, agg, events)
	if applyErr != nil {
		u.worker.cache.evict(u.handle.key)
	}

	if err := bus.publisher.PublishEvents(ctx, events); err != nil {
		bus.reportError(&rh.EventPublisherError{
			Err:   err,
			Ctx:   ctx,
			Event: events[0],
		})
	}

	if applyErr != nil {
		return fmt.Errorf("events stored but not applied: %w", applyErr)
	}

	return nil
}

// rollback drops the aggregate from the cache, the handler may have left it
// with raised events or half changed state.
func (u *unitOfWork) rollback() {
	if u.handle == nil {
		return
	}

	u.handle.agg.ClearUncommittedEvents()
	u.worker.cache.evict(u.handle.key)
}

func (b *Bus) reportError(err error) {
	select {
	case b.errCh <- err:
	default:
		log.Printf("ringhorizon: missed error in command bus: %s", err)
	}
}
