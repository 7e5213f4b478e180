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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/aggregate"
	"github.com/looplab/ringhorizon/eventstore/memory"
	"github.com/looplab/ringhorizon/mocks"
	"github.com/looplab/ringhorizon/uuid"
)

var errTestHandler = errors.New("handler failed")

// appendHandler loads the target aggregate and raises one event with the
// command content. The contents "fail" and "panic" make it fail before any
// event is raised, "fail-after" fails after raising one.
func appendHandler(repo *Repository) rh.CommandHandler {
	return rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
		c, ok := cmd.(mocks.Command)
		if !ok {
			return nil, fmt.Errorf("unexpected command %T", cmd)
		}

		h, err := repo.Load(ctx, c.ID)
		if err != nil {
			return nil, err
		}

		err = h.Execute(func(a aggregate.Aggregate) error {
			agg := a.(*mocks.Aggregate)

			switch c.Content {
			case "fail":
				return errTestHandler
			case "panic":
				panic("handler panic")
			}

			agg.AppendEvent(mocks.EventType, &mocks.EventData{Content: c.Content}, time.Now())

			if c.Content == "fail-after" {
				return errTestHandler
			}

			return nil
		})
		if err != nil {
			return nil, err
		}

		return h.Version() + len(h.Aggregate().UncommittedEvents()), nil
	})
}

func newTestBus(t *testing.T, options ...Option) (*Bus, *memory.EventStore, *mocks.EventPublisher) {
	t.Helper()

	store := memory.NewEventStore()
	publisher := &mocks.EventPublisher{}

	bus, err := NewBus(store, publisher, options...)
	require.NoError(t, err)

	repo := bus.NewRepository(mocks.AggregateType, mocks.NewAggregate)
	bus.Subscribe(mocks.CommandType, appendHandler(repo))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := bus.Stop(ctx); err != nil {
			t.Error("there should be no error when stopping:", err)
		}
	})

	return bus, store, publisher
}

func stopBus(t *testing.T, bus *Bus) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := bus.Stop(ctx); err != nil {
		t.Fatal("there should be no error when stopping:", err)
	}
}

func TestNewBus(t *testing.T) {
	store := memory.NewEventStore()
	publisher := &mocks.EventPublisher{}

	_, err := NewBus(nil, publisher)
	assert.ErrorIs(t, err, ErrMissingEventStore)

	_, err = NewBus(store, nil)
	assert.ErrorIs(t, err, ErrMissingEventPublisher)

	testCases := map[string]Option{
		"buffer size":  WithBufferSize(1000),
		"partitions":   WithPartitions(3),
		"workers":      WithWorkers(0),
		"backpressure": WithBackpressure(Backpressure(7)),
		"max wait":     WithMaxWait(-time.Second),
		"strategy":     WithWaitStrategy(nil),
		"cache size":   WithCacheSize(-1),
	}

	for name, option := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := NewBus(store, publisher, option)
			assert.Error(t, err)
		})
	}

	bus, err := NewBus(store, publisher, WithPartitions(4), WithWorkers(16))
	require.NoError(t, err)

	if bus.Workers() != 4 {
		t.Error("the workers should be capped at the partitions:", bus.Workers())
	}

	stopBus(t, bus)
}

func TestBusDispatch(t *testing.T) {
	bus, store, publisher := newTestBus(t)
	ctx := mocks.WithContextOne(context.Background(), "one")
	id := uuid.New()

	future, err := bus.Dispatch(ctx, mocks.Command{ID: id, Content: "created"})
	require.NoError(t, err)

	result, err := future.Wait(context.Background())
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if result != 1 {
		t.Error("the result should be the new version:", result)
	}

	select {
	case <-future.Done():
	default:
		t.Error("the future should be done")
	}

	if future.Command().AggregateID() != id {
		t.Error("the future should have the command")
	}

	events, err := store.Load(context.Background(), id)
	require.NoError(t, err)

	if len(events) != 1 || events[0].Version() != 0 {
		t.Fatal("there should be one stored event with version 0:", pretty.Sprint(events))
	}

	published := publisher.Published()
	if len(published) != 1 || published[0].Version() != 0 {
		t.Error("there should be one published event:", pretty.Sprint(published))
	}

	if publisher.Calls != 1 {
		t.Error("the publisher should be called once:", publisher.Calls)
	}

	if val, ok := mocks.ContextOne(publisher.Context); !ok || val != "one" {
		t.Error("the context should be passed to the publisher:", val)
	}

	// The bus is itself a command handler.
	result, err = bus.HandleCommand(context.Background(), mocks.Command{ID: id, Content: "second"})
	require.NoError(t, err)

	if result != 2 {
		t.Error("the result should be the new version:", result)
	}
}

func TestBusDispatchValidation(t *testing.T) {
	bus, _, _ := newTestBus(t)
	ctx := context.Background()

	_, err := bus.Dispatch(ctx, mocks.Command{Content: "no id"})
	if !errors.Is(err, rh.ErrMissingAggregateID) {
		t.Error("there should be a missing ID error:", err)
	}

	_, err = bus.Dispatch(ctx, mocks.Command{ID: uuid.New()})
	var fieldErr *rh.CommandFieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Content" {
		t.Error("there should be a field error:", err)
	}

	_, err = bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "other"})
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Error("there should be a handler not found error:", err)
	}

	if bus.Backlog() != 0 {
		t.Error("rejected commands should not enter the ring:", bus.Backlog())
	}
}

func TestBusSameAggregateOrdering(t *testing.T) {
	strategies := map[string]func() WaitStrategy{
		"blocking":  func() WaitStrategy { return NewBlockingWaitStrategy() },
		"yielding":  func() WaitStrategy { return NewYieldingWaitStrategy() },
		"busy spin": func() WaitStrategy { return NewBusySpinWaitStrategy() },
	}

	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			bus, store, publisher := newTestBus(t,
				WithBufferSize(64),
				WithWorkers(2),
				WithBackpressure(Block),
				WithWaitStrategy(strategy()),
			)
			ctx := context.Background()
			id := uuid.New()

			if _, err := bus.HandleCommand(ctx, mocks.Command{ID: id, Content: "created"}); err != nil {
				t.Fatal("there should be no error:", err)
			}

			const (
				producers   = 4
				perProducer = 250
			)

			var wg sync.WaitGroup

			for p := 0; p < producers; p++ {
				wg.Add(1)

				go func(p int) {
					defer wg.Done()

					futures := make([]*Future, 0, perProducer)

					for i := 0; i < perProducer; i++ {
						f, err := bus.Dispatch(ctx, mocks.Command{ID: id, Content: fmt.Sprintf("%d-%04d", p, i)})
						if err != nil {
							t.Error("there should be no error:", err)

							return
						}

						futures = append(futures, f)
					}

					for _, f := range futures {
						if _, err := f.Wait(ctx); err != nil {
							t.Error("there should be no error:", err)
						}
					}
				}(p)
			}

			wg.Wait()
			stopBus(t, bus)

			events, err := store.Load(ctx, id)
			require.NoError(t, err)
			require.Len(t, events, 1+producers*perProducer)

			for i, e := range events {
				if e.Version() != i {
					t.Fatalf("event %d should have version %d: %d", i, i, e.Version())
				}
			}

			published := publisher.Published()
			require.Len(t, published, len(events))

			if !rh.CompareEventSlices(published, events) {
				t.Error("the events should be published in stored order")
			}

			// Each producer's commands are applied in its dispatch order.
			last := map[byte]string{}

			for _, e := range events[1:] {
				content := e.Data().(*mocks.EventData).Content
				if prev, ok := last[content[0]]; ok && prev >= content {
					t.Fatalf("%s should be applied after %s", content, prev)
				}

				last[content[0]] = content
			}

			agg, err := aggregate.Replay(ctx, mocks.NewAggregate, id, events)
			require.NoError(t, err)

			if agg.(*mocks.Aggregate).Count() != 1+producers*perProducer {
				t.Error("all mutations should be applied:", agg.(*mocks.Aggregate).Count())
			}
		})
	}
}

func TestBusManyAggregates(t *testing.T) {
	bus, store, publisher := newTestBus(t,
		WithBufferSize(256),
		WithWorkers(4),
		WithBackpressure(Block),
	)
	ctx := context.Background()

	const (
		aggregates = 100
		commands   = 10000
	)

	ids := make([]string, aggregates)
	for i := range ids {
		ids[i] = uuid.New()
	}

	futures := make([]*Future, 0, commands)

	for i := 0; i < commands; i++ {
		f, err := bus.Dispatch(ctx, mocks.Command{ID: ids[i%aggregates], Content: fmt.Sprint(i)})
		require.NoError(t, err)

		futures = append(futures, f)
	}

	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			t.Fatal("there should be no error:", err)
		}
	}

	total := 0

	for _, id := range ids {
		events, err := store.Load(ctx, id)
		require.NoError(t, err)

		for i, e := range events {
			if e.Version() != i {
				t.Fatalf("the versions of %s should be contiguous: %d at %d", id, e.Version(), i)
			}
		}

		total += len(events)
	}

	if total != commands {
		t.Error("all events should be stored:", total)
	}

	if len(publisher.Published()) != commands {
		t.Error("all events should be published:", len(publisher.Published()))
	}
}

func TestBusHandlerFailure(t *testing.T) {
	bus, store, publisher := newTestBus(t, WithWorkers(2))
	ctx := context.Background()
	id := uuid.New()
	otherID := uuid.New()

	_, err := bus.HandleCommand(ctx, mocks.Command{ID: id, Content: "created"})
	require.NoError(t, err)

	for _, content := range []string{"fail", "fail-after", "panic"} {
		_, err = bus.HandleCommand(ctx, mocks.Command{ID: id, Content: content})

		var handlerErr *HandlerError
		if !errors.As(err, &handlerErr) {
			t.Fatal("there should be a handler error:", err)
		}

		if handlerErr.Command.AggregateID() != id {
			t.Error("the error should have the command:", handlerErr.Command)
		}

		if content == "panic" {
			assert.ErrorIs(t, err, ErrPanic)
		} else {
			assert.ErrorIs(t, err, errTestHandler)
		}
	}

	events, err := store.Load(ctx, id)
	require.NoError(t, err)

	if len(events) != 1 {
		t.Error("failed commands should not store events:", pretty.Sprint(events))
	}

	if len(publisher.Published()) != 1 {
		t.Error("failed commands should not publish events:", len(publisher.Published()))
	}

	// Both the same and other aggregates continue.
	result, err := bus.HandleCommand(ctx, mocks.Command{ID: id, Content: "after"})
	require.NoError(t, err)
	assert.Equal(t, 2, result)

	result, err = bus.HandleCommand(ctx, mocks.Command{ID: otherID, Content: "other"})
	require.NoError(t, err)
	assert.Equal(t, 1, result)

	events, err = store.Load(ctx, id)
	require.NoError(t, err)

	if len(events) != 2 || events[1].Version() != 1 || events[1].Data().(*mocks.EventData).Content != "after" {
		t.Error("the history should continue after the failures:", pretty.Sprint(events))
	}
}

func TestBusConcurrencyError(t *testing.T) {
	bus, store, _ := newTestBus(t, WithWorkers(1))
	ctx := context.Background()
	id := uuid.New()

	_, err := bus.HandleCommand(ctx, mocks.Command{ID: id, Content: "created"})
	require.NoError(t, err)

	// A write behind the back of the bus makes the cached aggregate stale.
	external := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "external"}, time.Now(),
		rh.ForAggregate(mocks.AggregateType, id, 1))
	require.NoError(t, store.Save(ctx, []rh.Event{external}, 1))

	_, err = bus.HandleCommand(ctx, mocks.Command{ID: id, Content: "stale"})
	if !errors.Is(err, rh.ErrIncorrectEventVersion) {
		t.Fatal("there should be a concurrency error:", err)
	}

	// The cache was invalidated, the next command replays the history.
	result, err := bus.HandleCommand(ctx, mocks.Command{ID: id, Content: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, 3, result)

	events, err := store.Load(ctx, id)
	require.NoError(t, err)

	contents := []string{}
	for _, e := range events {
		contents = append(contents, e.Data().(*mocks.EventData).Content)
	}

	assert.Equal(t, []string{"created", "external", "fresh"}, contents)
}

func TestBusApplyFailureAfterStore(t *testing.T) {
	bus, store, publisher := newTestBus(t, WithWorkers(1))
	ctx := context.Background()
	id := uuid.New()

	_, err := bus.HandleCommand(ctx, mocks.Command{ID: id, Content: "fail-apply"})
	if !errors.Is(err, mocks.ErrApply) {
		t.Error("there should be an apply error:", err)
	}

	events, err := store.Load(ctx, id)
	require.NoError(t, err)

	if len(events) != 1 || len(publisher.Published()) != 1 {
		t.Error("the stored event should be published")
	}
}

func TestBusReplayEquivalence(t *testing.T) {
	bus, store, _ := newTestBus(t, WithWorkers(2))
	ctx := context.Background()
	ids := []string{uuid.New(), uuid.New(), uuid.New()}

	for i := 0; i < 30; i++ {
		content := fmt.Sprint("content", i)
		if i%7 == 3 {
			content = "fail"
		}

		_, _ = bus.HandleCommand(ctx, mocks.Command{ID: ids[i%len(ids)], Content: content})
	}

	stopBus(t, bus)

	for _, id := range ids {
		cached, ok := bus.pool[bus.owner(id)].cache.get(cacheKey{mocks.AggregateType, id})
		if !ok {
			t.Fatal("the aggregate should be cached:", id)
		}

		events, err := store.Load(ctx, id)
		require.NoError(t, err)

		replayed, err := aggregate.Replay(ctx, mocks.NewAggregate, id, events)
		require.NoError(t, err)

		assert.Equal(t, replayed.AggregateVersion(), cached.AggregateVersion())
		assert.Equal(t, replayed.(*mocks.Aggregate).Contents, cached.(*mocks.Aggregate).Contents)
		assert.Empty(t, cached.UncommittedEvents())
	}
}

func TestBusPublishError(t *testing.T) {
	bus, store, publisher := newTestBus(t)
	ctx := context.Background()
	id := uuid.New()

	errPublish := errors.New("publish failed")
	publisher.Lock()
	publisher.Err = errPublish
	publisher.Unlock()

	_, err := bus.HandleCommand(ctx, mocks.Command{ID: id, Content: "created"})
	if err != nil {
		t.Error("a publish error should not fail the command:", err)
	}

	events, _ := store.Load(ctx, id)
	if len(events) != 1 {
		t.Error("the event should be stored:", len(events))
	}

	select {
	case err := <-bus.Errors():
		var pubErr *rh.EventPublisherError
		if !errors.As(err, &pubErr) || !errors.Is(err, errPublish) {
			t.Error("there should be a publisher error:", err)
		}

		if pubErr.Event.AggregateID() != id {
			t.Error("the error should have the event:", pubErr.Event)
		}
	case <-time.After(time.Second):
		t.Error("there should be an error on the channel")
	}
}

func TestBusBackpressure(t *testing.T) {
	release := make(chan struct{})

	var handled atomic.Int64

	blocking := rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
		<-release
		handled.Add(1)

		return nil, nil
	})

	t.Run("block", func(t *testing.T) {
		bus, _, _ := newTestBus(t, WithBufferSize(16), WithWorkers(1), WithBackpressure(Block))
		bus.Subscribe(mocks.CommandOtherType, blocking)
		ctx := context.Background()

		futures := []*Future{}

		for i := 0; i < 16; i++ {
			f, err := bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "block"})
			require.NoError(t, err)

			futures = append(futures, f)
		}

		dispatched := make(chan *Future)

		go func() {
			f, err := bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "17th"})
			if err != nil {
				t.Error("there should be no error:", err)
			}
			dispatched <- f
		}()

		select {
		case <-dispatched:
			t.Fatal("the 17th dispatch should block")
		case <-time.After(100 * time.Millisecond):
		}

		if bus.Backlog() != 16 {
			t.Error("the ring should be full:", bus.Backlog())
		}

		close(release)

		select {
		case f := <-dispatched:
			futures = append(futures, f)
		case <-time.After(5 * time.Second):
			t.Fatal("the 17th dispatch should be unblocked")
		}

		for _, f := range futures {
			if _, err := f.Wait(ctx); err != nil {
				t.Error("there should be no error:", err)
			}
		}

		if handled.Load() != 17 {
			t.Error("all commands should be handled:", handled.Load())
		}
	})

	t.Run("fail fast", func(t *testing.T) {
		release := make(chan struct{})
		bus, _, _ := newTestBus(t, WithBufferSize(16), WithWorkers(1))
		bus.Subscribe(mocks.CommandOtherType, rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
			<-release

			return nil, nil
		}))
		defer close(release)

		ctx := context.Background()

		for i := 0; i < 16; i++ {
			_, err := bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "block"})
			require.NoError(t, err)
		}

		_, err := bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "17th"})
		if !errors.Is(err, ErrQueueFull) {
			t.Error("there should be a queue full error:", err)
		}
	})

	t.Run("max wait", func(t *testing.T) {
		release := make(chan struct{})
		bus, _, _ := newTestBus(t, WithBufferSize(16), WithWorkers(1),
			WithBackpressure(Block), WithMaxWait(50*time.Millisecond))
		bus.Subscribe(mocks.CommandOtherType, rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
			<-release

			return nil, nil
		}))
		defer close(release)

		ctx := context.Background()

		for i := 0; i < 16; i++ {
			_, err := bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "block"})
			require.NoError(t, err)
		}

		start := time.Now()

		_, err := bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "17th"})
		if !errors.Is(err, ErrQueueFull) {
			t.Error("there should be a queue full error:", err)
		}

		if time.Since(start) < 50*time.Millisecond {
			t.Error("the dispatch should wait before failing")
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err = bus.Dispatch(cancelled, mocks.CommandOther{ID: uuid.New(), Content: "cancelled"})
		if !errors.Is(err, context.Canceled) {
			t.Error("there should be a context error:", err)
		}
	})
}

func TestBusWithdrawnCommand(t *testing.T) {
	release := make(chan struct{})

	var handled atomic.Int64

	bus, _, _ := newTestBus(t, WithWorkers(1))
	bus.Subscribe(mocks.CommandOtherType, rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
		<-release
		handled.Add(1)

		if ctx.Err() != nil {
			t.Error("the handler context should not be cancelled:", ctx.Err())
		}

		return nil, nil
	}))

	ctx := context.Background()

	first, err := bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "first"})
	require.NoError(t, err)

	withdrawnCtx, cancel := context.WithCancel(ctx)

	withdrawn, err := bus.Dispatch(withdrawnCtx, mocks.CommandOther{ID: uuid.New(), Content: "withdrawn"})
	require.NoError(t, err)

	cancel()
	close(release)

	if _, err := first.Wait(ctx); err != nil {
		t.Error("there should be no error:", err)
	}

	if _, err := withdrawn.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Error("the withdrawn command should be cancelled:", err)
	}

	if handled.Load() != 1 {
		t.Error("the withdrawn command should not be handled:", handled.Load())
	}
}

func TestBusStop(t *testing.T) {
	bus, store, _ := newTestBus(t, WithWorkers(2))
	ctx := context.Background()
	id := uuid.New()

	futures := []*Future{}

	for i := 0; i < 100; i++ {
		f, err := bus.Dispatch(ctx, mocks.Command{ID: id, Content: fmt.Sprint(i)})
		require.NoError(t, err)

		futures = append(futures, f)
	}

	stopBus(t, bus)

	for _, f := range futures {
		select {
		case <-f.Done():
		default:
			t.Fatal("all claimed commands should be processed before stop returns")
		}
	}

	events, _ := store.Load(ctx, id)
	if len(events) != 100 {
		t.Error("all events should be stored:", len(events))
	}

	// Idempotent.
	stopBus(t, bus)

	_, err := bus.Dispatch(ctx, mocks.Command{ID: id, Content: "late"})
	if !errors.Is(err, ErrBusStopped) {
		t.Error("there should be a bus stopped error:", err)
	}

	if _, ok := <-bus.Errors(); ok {
		t.Error("the error channel should be closed")
	}
}

func TestBusStopWhileDispatching(t *testing.T) {
	bus, _, _ := newTestBus(t, WithBufferSize(32), WithWorkers(2), WithBackpressure(Block))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
		rejected atomic.Int64
	)

	for p := 0; p < 4; p++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id := uuid.New()

			for {
				f, err := bus.Dispatch(ctx, mocks.Command{ID: id, Content: "content"})
				if errors.Is(err, ErrBusStopped) {
					rejected.Add(1)

					return
				} else if err != nil {
					t.Error("there should be no other error:", err)

					return
				}

				accepted.Add(1)

				if _, err := f.Wait(ctx); err != nil {
					t.Error("accepted commands should succeed:", err)
				}
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)

	var stops sync.WaitGroup

	for i := 0; i < 3; i++ {
		stops.Add(1)

		go func() {
			defer stops.Done()

			if err := bus.Stop(ctx); err != nil {
				t.Error("there should be no error when stopping:", err)
			}
		}()
	}

	stops.Wait()
	wg.Wait()

	if rejected.Load() != 4 {
		t.Error("every producer should be rejected once:", rejected.Load())
	}

	if accepted.Load() == 0 {
		t.Error("some commands should be accepted")
	}
}

func TestBusStopTimeout(t *testing.T) {
	release := make(chan struct{})
	bus, _, _ := newTestBus(t, WithWorkers(1))
	bus.Subscribe(mocks.CommandOtherType, rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
		<-release

		return nil, nil
	}))

	_, err := bus.Dispatch(context.Background(), mocks.CommandOther{ID: uuid.New(), Content: "block"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := bus.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Error("there should be a deadline error:", err)
	}

	close(release)
}

func TestBusRepositoryMisuse(t *testing.T) {
	bus, _, _ := newTestBus(t)
	repo := bus.NewRepository(mocks.AggregateType, mocks.NewAggregate)
	ctx := context.Background()

	if repo.AggregateType() != mocks.AggregateType {
		t.Error("the aggregate type should be correct:", repo.AggregateType())
	}

	_, err := repo.Load(ctx, uuid.New())
	if !errors.Is(err, ErrNoUnitOfWork) {
		t.Error("there should be a no unit of work error:", err)
	}

	bus.Subscribe(mocks.CommandOtherType, rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
		return repo.Load(ctx, uuid.New())
	}))

	_, err = bus.HandleCommand(ctx, mocks.CommandOther{ID: uuid.New(), Content: "other"})
	if !errors.Is(err, ErrUnexpectedAggregate) {
		t.Error("there should be an unexpected aggregate error:", err)
	}
}

func TestBusSubscribe(t *testing.T) {
	bus, _, _ := newTestBus(t)
	ctx := context.Background()

	h1 := &mocks.CommandHandler{}
	h2 := &mocks.CommandHandler{}

	reg1 := bus.Subscribe(mocks.CommandOtherType, h1)
	reg2 := bus.Subscribe(mocks.CommandOtherType, h2)

	if reg2.CommandType() != mocks.CommandOtherType {
		t.Error("the registration should have the command type")
	}

	_, err := bus.HandleCommand(ctx, mocks.CommandOther{ID: uuid.New(), Content: "c"})
	require.NoError(t, err)

	if len(h1.Commands) != 0 || len(h2.Commands) != 1 {
		t.Error("the last subscribed handler should be used")
	}

	if reg1.Cancel() {
		t.Error("a replaced registration should not cancel")
	}

	if !reg2.Cancel() {
		t.Error("the current registration should cancel")
	}

	_, err = bus.Dispatch(ctx, mocks.CommandOther{ID: uuid.New(), Content: "c"})
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Error("there should be a handler not found error:", err)
	}
}

func TestBusMiddleware(t *testing.T) {
	var calls atomic.Int64

	counter := func(h rh.CommandHandler) rh.CommandHandler {
		return rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
			calls.Add(1)

			return h.HandleCommand(ctx, cmd)
		})
	}

	bus, _, _ := newTestBus(t, WithCommandHandlerMiddleware(counter))

	_, err := bus.HandleCommand(context.Background(), mocks.Command{ID: uuid.New(), Content: "c"})
	require.NoError(t, err)

	if calls.Load() != 1 {
		t.Error("the middleware should be called:", calls.Load())
	}
}

func TestBusPartition(t *testing.T) {
	bus, _, _ := newTestBus(t, WithPartitions(16), WithWorkers(3))

	seen := map[int]bool{}

	for i := 0; i < 1000; i++ {
		id := fmt.Sprint("id", i)
		p := bus.Partition(id)

		if p < 0 || p >= 16 {
			t.Fatal("the partition should be in range:", p)
		}

		if bus.Partition(id) != p {
			t.Fatal("the partition should be stable")
		}

		if bus.owner(id) != p%3 {
			t.Fatal("the owner should be the partition modulo the workers")
		}

		seen[p] = true
	}

	if len(seen) != 16 {
		t.Error("all partitions should be used:", len(seen))
	}
}

func TestBusCacheDisabled(t *testing.T) {
	bus, store, _ := newTestBus(t, WithCacheSize(0), WithWorkers(1))
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := bus.HandleCommand(ctx, mocks.Command{ID: id, Content: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	events, _ := store.Load(ctx, id)
	assert.Len(t, events, 5)
	assert.Equal(t, 0, bus.pool[0].cache.len())
}

func BenchmarkBus(b *testing.B) {
	store := memory.NewEventStore()

	bus, err := NewBus(store, rh.EventPublishers{}, WithBackpressure(Block))
	if err != nil {
		b.Fatal(err)
	}

	repo := bus.NewRepository(mocks.AggregateType, mocks.NewAggregate)
	bus.Subscribe(mocks.CommandType, appendHandler(repo))

	ctx := context.Background()
	ids := make([]string, 64)

	for i := range ids {
		ids[i] = uuid.New()
	}

	b.ResetTimer()

	futures := make([]*Future, 0, b.N)

	for n := 0; n < b.N; n++ {
		f, err := bus.Dispatch(ctx, mocks.Command{ID: ids[n%len(ids)], Content: "bench"})
		if err != nil {
			b.Fatal(err)
		}

		futures = append(futures, f)
	}

	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			b.Fatal(err)
		}
	}

	b.StopTimer()

	if err := bus.Stop(ctx); err != nil {
		b.Fatal(err)
	}
}
