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

// Package disruptor is a command bus that runs commands on a ring buffer.
//
// Dispatched commands are claimed into a fixed size ring by the calling
// goroutines. A pool of workers reads the ring in order, and each command is
// processed by the worker owning the partition of its aggregate ID. For one
// aggregate, commands are handled, stored and published one at a time in
// claim order. Commands for different aggregates run in parallel on different
// workers.
package disruptor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jpillora/backoff"

	rh "github.com/looplab/ringhorizon"
)

// Bus is a partitioned, ring buffer backed command bus.
type Bus struct {
	store     rh.EventStore
	publisher rh.EventPublisher

	bufferSize   int
	partitions   int
	workers      int
	backpressure Backpressure
	maxWait      time.Duration
	waitStrategy WaitStrategy
	cacheSize    int
	middleware   []rh.CommandHandlerMiddleware

	ring     *ringBuffer
	registry *registry
	pool     []*worker
	wg       sync.WaitGroup
	errCh    chan error

	producers atomic.Int64
	stopped   atomic.Bool
	alerted   atomic.Bool
	stopOnce  sync.Once
	done      chan struct{}
}

// NewBus creates a bus and starts its workers. Events are saved in the store
// and then published, once per successfully handled command.
func NewBus(store rh.EventStore, publisher rh.EventPublisher, options ...Option) (*Bus, error) {
	if store == nil {
		return nil, ErrMissingEventStore
	}

	if publisher == nil {
		return nil, ErrMissingEventPublisher
	}

	b := &Bus{
		store:      store,
		publisher:  publisher,
		bufferSize: DefaultBufferSize,
		partitions: DefaultPartitions,
		workers:    runtime.GOMAXPROCS(0),
		cacheSize:  DefaultCacheSize,
		registry:   newRegistry(),
		errCh:      make(chan error, 100),
		done:       make(chan struct{}),
	}

	for _, option := range options {
		if err := option(b); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	if b.workers > b.partitions {
		b.workers = b.partitions
	}

	if b.waitStrategy == nil {
		b.waitStrategy = NewBlockingWaitStrategy()
	}

	b.ring = newRingBuffer(b.bufferSize)

	for i := 0; i < b.workers; i++ {
		w := &worker{
			id:    i,
			bus:   b,
			seq:   newSequence(initialSequence),
			cache: newAggregateCache(b.cacheSize),
		}
		b.pool = append(b.pool, w)
		b.ring.addGatingSequences(w.seq)
	}

	b.wg.Add(len(b.pool))

	for _, w := range b.pool {
		go w.run()
	}

	return b, nil
}

// Subscribe sets the handler for a command type, replacing any previous one.
// The bus middleware is applied to the handler.
func (b *Bus) Subscribe(commandType rh.CommandType, handler rh.CommandHandler) *Registration {
	return b.registry.add(commandType, rh.UseCommandHandlerMiddleware(handler, b.middleware...))
}

// Dispatch checks the command and claims a slot for it. The returned future
// resolves when the command has been processed.
//
// Validation errors, ErrHandlerNotFound, ErrBusStopped and ErrQueueFull are
// returned directly and the command never enters the ring. A ctx cancelled
// before a worker starts the command resolves the future with ctx.Err()
// without running the handler.
func (b *Bus) Dispatch(ctx context.Context, cmd rh.Command) (*Future, error) {
	if err := rh.CheckCommand(cmd); err != nil {
		return nil, err
	}

	b.producers.Add(1)
	defer b.producers.Add(-1)

	if b.stopped.Load() {
		return nil, ErrBusStopped
	}

	handler := b.registry.lookup(cmd.CommandType())
	if handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, cmd.CommandType())
	}

	seq, err := b.claim(ctx)
	if err != nil {
		return nil, err
	}

	future := newFuture(cmd)

	s := b.ring.slot(seq)
	s.ctx = ctx
	s.cmd = cmd
	s.handler = handler
	s.future = future
	s.owner = b.owner(cmd.AggregateID())

	b.ring.publish(seq)
	b.waitStrategy.Signal()

	return future, nil
}

// HandleCommand dispatches the command and waits for it, making the bus
// usable as a rh.CommandHandler.
func (b *Bus) HandleCommand(ctx context.Context, cmd rh.Command) (interface{}, error) {
	future, err := b.Dispatch(ctx, cmd)
	if err != nil {
		return nil, err
	}

	return future.Wait(ctx)
}

func (b *Bus) claim(ctx context.Context) (int64, error) {
	if seq, ok := b.ring.tryClaim(); ok {
		return seq, nil
	}

	if b.backpressure == FailFast {
		return 0, ErrQueueFull
	}

	var deadline <-chan time.Time

	if b.maxWait > 0 {
		timer := time.NewTimer(b.maxWait)
		defer timer.Stop()

		deadline = timer.C
	}

	delay := &backoff.Backoff{
		Min:    time.Microsecond,
		Max:    time.Millisecond,
		Factor: 2,
		Jitter: true,
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-deadline:
			return 0, ErrQueueFull
		case <-time.After(delay.Duration()):
		}

		if seq, ok := b.ring.tryClaim(); ok {
			return seq, nil
		}
	}
}

// Partition returns the partition of an aggregate ID. It is stable for the
// life of the bus.
func (b *Bus) Partition(id string) int {
	return int(xxhash.Sum64String(id) & uint64(b.partitions-1))
}

func (b *Bus) owner(id string) int {
	return b.Partition(id) % b.workers
}

// Workers returns the number of workers.
func (b *Bus) Workers() int {
	return b.workers
}

// Backlog returns the number of claimed commands that not every worker has
// passed yet.
func (b *Bus) Backlog() int64 {
	return b.ring.backlog()
}

// Errors returns a channel of errors that could not be returned to a
// dispatcher, such as publishing failures after a successful store. It is
// closed when the bus has stopped.
func (b *Bus) Errors() <-chan error {
	return b.errCh
}

// Stop stops accepting commands, waits for every claimed command to be
// processed and then stops the workers. It can be called several times and
// concurrently with Dispatch. If ctx is done first the shutdown continues in
// the background and ctx.Err() is returned.
func (b *Bus) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() {
		go b.shutdown()
	})

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) shutdown() {
	b.stopped.Store(true)

	// Wait for dispatches that passed the stopped check to publish.
	delay := &backoff.Backoff{
		Min:    time.Microsecond,
		Max:    10 * time.Millisecond,
		Factor: 2,
	}
	for b.producers.Load() > 0 {
		time.Sleep(delay.Duration())
	}

	b.alerted.Store(true)
	b.waitStrategy.Signal()
	b.wg.Wait()

	close(b.errCh)
	close(b.done)
}
