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

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/aggregate"
)

// Repository loads event sourced aggregates for the handlers run by a bus.
// It must only be used from within a handler invoked by the same bus: the
// aggregates live in the cache of the worker processing the command, and
// partition ownership is what makes them safe to mutate without locks.
type Repository struct {
	bus           *Bus
	aggregateType rh.AggregateType
	factory       rh.AggregateFactory
}

// NewRepository creates a repository for an aggregate type. The factory
// creates the zero state aggregate that the history is replayed into, it must
// return an aggregate.Aggregate.
func (b *Bus) NewRepository(aggregateType rh.AggregateType, factory rh.AggregateFactory) *Repository {
	return &Repository{
		bus:           b,
		aggregateType: aggregateType,
		factory:       factory,
	}
}

// AggregateType returns the type of the aggregates of the repository.
func (r *Repository) AggregateType() rh.AggregateType {
	return r.aggregateType
}

// Load returns the aggregate targeted by the command being handled. A cached
// instance is used if there is one, otherwise the history is loaded from the
// event store and replayed. Loading twice in one command returns the same
// handle.
func (r *Repository) Load(ctx context.Context, id string) (*AggregateHandle, error) {
	u, ok := unitOfWorkFromContext(ctx)
	if !ok || u.worker.bus != r.bus {
		return nil, ErrNoUnitOfWork
	}

	if id != u.cmd.AggregateID() || r.aggregateType != u.cmd.AggregateType() {
		return nil, fmt.Errorf("%w: %s(%s)", ErrUnexpectedAggregate, r.aggregateType, id)
	}

	if u.handle != nil {
		return u.handle, nil
	}

	key := cacheKey{aggregateType: r.aggregateType, id: id}

	agg, ok := u.worker.cache.get(key)
	if !ok {
		history, err := r.bus.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}

		if agg, err = aggregate.Replay(ctx, r.factory, id, history); err != nil {
			return nil, err
		}

		if agg.AggregateType() != r.aggregateType {
			return nil, fmt.Errorf("%w: factory created %s", ErrUnexpectedAggregate, agg.AggregateType())
		}

		u.worker.cache.put(key, agg)
	}

	u.handle = &AggregateHandle{key: key, agg: agg}

	return u.handle, nil
}

// AggregateHandle gives a handler access to a loaded aggregate. Events raised
// on it stay buffered until the handler has returned successfully.
type AggregateHandle struct {
	key cacheKey
	agg aggregate.Aggregate
}

// Aggregate returns the loaded aggregate.
func (h *AggregateHandle) Aggregate() aggregate.Aggregate {
	return h.agg
}

// Version returns the number of events applied to the aggregate.
func (h *AggregateHandle) Version() int {
	return h.agg.AggregateVersion()
}

// Exists is false for an aggregate without any history.
func (h *AggregateHandle) Exists() bool {
	return h.agg.AggregateVersion() > 0
}

// Execute runs a mutation on the aggregate. New events are appended to the
// aggregate's uncommitted events and are stored when the command completes.
func (h *AggregateHandle) Execute(mutation func(aggregate.Aggregate) error) error {
	return mutation(h.agg)
}
