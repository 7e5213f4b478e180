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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/commandbus/disruptor"
	"github.com/looplab/ringhorizon/httputils"
	"github.com/looplab/ringhorizon/metrics"
	"github.com/looplab/ringhorizon/tracing"
)

// Result is the outcome of a run.
type Result struct {
	Commands  int
	Stored    int64
	Published int64
	Elapsed   time.Duration
}

// PerSecond is the command throughput.
func (r Result) PerSecond() int64 {
	if r.Elapsed <= 0 {
		return 0
	}

	return int64(float64(r.Commands) / r.Elapsed.Seconds())
}

// counter closes done when the count reaches its target.
type counter struct {
	n      atomic.Int64
	target int64
	done   chan struct{}
	once   sync.Once
}

func newCounter(target int) *counter {
	return &counter{
		target: int64(target),
		done:   make(chan struct{}),
	}
}

func (c *counter) add(d int) {
	if c.n.Add(int64(d)) >= c.target {
		c.once.Do(func() { close(c.done) })
	}
}

// countingStore counts the events saved by the bus.
type countingStore struct {
	rh.EventStore
	c *counter
}

// Save implements the Save method of the rh.EventStore interface.
func (s *countingStore) Save(ctx context.Context, events []rh.Event, originalVersion int) error {
	if err := s.EventStore.Save(ctx, events, originalVersion); err != nil {
		return err
	}

	s.c.add(len(events))

	return nil
}

// run seeds the aggregate, dispatches all commands and waits until every
// command has been stored and published.
func run(ctx context.Context, cfg Config, out io.Writer) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options, err := cfg.busOptions()
	if err != nil {
		return nil, err
	}

	if cfg.TracingAddr != "" {
		closer, err := newTracer("ringbench", cfg.TracingAddr)
		if err != nil {
			return nil, err
		}
		defer closer.Close()

		tracing.RegisterContext()
	}

	s, err := newStack(ctx, cfg)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("ringhorizon: could not close stack: %s", err)
		}
	}()

	if err := seed(ctx, s.store, cfg.AggregateID); err != nil {
		return nil, err
	}

	stored := newCounter(cfg.Commands)
	published := newCounter(cfg.Commands)

	var store rh.EventStore = &countingStore{EventStore: s.store, c: stored}

	var publisher rh.EventPublisher = rh.EventPublisherFunc(func(ctx context.Context, events []rh.Event) error {
		if err := s.publisher().PublishEvents(ctx, events); err != nil {
			return err
		}

		published.add(1)

		return nil
	})

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	store = m.NewEventStore(store)
	publisher = m.NewEventPublisher(publisher)
	options = append(options, disruptor.WithCommandHandlerMiddleware(m.CommandHandlerMiddleware()))

	if cfg.TracingAddr != "" {
		store = tracing.NewEventStore(store)
		options = append(options, disruptor.WithCommandHandlerMiddleware(tracing.NewCommandHandlerMiddleware()))
	}

	bus, err := disruptor.NewBus(store, publisher, options...)
	if err != nil {
		return nil, err
	}

	m.WatchBacklog(bus)

	repo := bus.NewRepository(StubAggregateType, NewStubAggregate)
	bus.Subscribe(DoSomethingCommand, doSomethingHandler(repo))

	go func() {
		for err := range bus.Errors() {
			log.Printf("ringhorizon: bus error: %s", err)
		}
	}()

	if cfg.HTTPAddr != "" {
		srv, err := serveHTTP(cfg.HTTPAddr, m, s)
		if err != nil {
			return nil, err
		}
		defer srv.Close()
	}

	cmd := DoSomething{ID: cfg.AggregateID}
	start := time.Now()

	for i := 0; i < cfg.Commands; i++ {
		if _, err := bus.Dispatch(ctx, cmd); err != nil {
			return nil, fmt.Errorf("could not dispatch command %d: %w", i, err)
		}
	}

	fmt.Fprintln(out, "Finished dispatching!")

	wait := time.NewTimer(cfg.Timeout)
	defer wait.Stop()

	for _, done := range []chan struct{}{stored.done, published.done} {
		select {
		case <-done:
		case <-wait.C:
		case <-ctx.Done():
		}
	}

	res := &Result{
		Commands:  cfg.Commands,
		Stored:    stored.n.Load(),
		Published: published.n.Load(),
		Elapsed:   time.Since(start),
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := bus.Stop(stopCtx); err != nil {
		return res, fmt.Errorf("could not stop bus: %w", err)
	}

	if res.Stored < int64(cfg.Commands) {
		return res, fmt.Errorf("seems that some events are not stored: %d of %d", res.Stored, cfg.Commands)
	}

	if res.Published < int64(cfg.Commands) {
		return res, fmt.Errorf("seems that some events are not published: %d of %d", res.Published, cfg.Commands)
	}

	fmt.Fprintf(out, "Did %d commands per second\n", res.PerSecond())

	return res, nil
}

// seed stores the first event of the aggregate unless it already has a
// history, as a reused database does.
func seed(ctx context.Context, store rh.EventStore, id string) error {
	events, err := store.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("could not load history: %w", err)
	}

	if len(events) > 0 {
		return nil
	}

	e := rh.NewEvent(SomethingDoneEvent, &SomethingDone{}, time.Now(),
		rh.ForAggregate(StubAggregateType, id, 0))

	if err := store.Save(ctx, []rh.Event{e}, 0); err != nil {
		return fmt.Errorf("could not seed history: %w", err)
	}

	return nil
}

// serveHTTP serves the metrics, the stored histories and, with an event bus,
// the live event stream.
func serveHTTP(addr string, m *metrics.Metrics, s *stack) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/events/", httputils.HistoryHandler(s.store))

	if s.bus != nil {
		mux.Handle("/stream", httputils.EventStreamHandler(s.bus, rh.MatchAny{}))
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not listen: %w", err)
	}

	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ringhorizon: http server: %s", err)
		}
	}()

	return srv, nil
}
