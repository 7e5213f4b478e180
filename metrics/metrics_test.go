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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/commandbus/disruptor"
	"github.com/looplab/ringhorizon/eventstore/memory"
	"github.com/looplab/ringhorizon/mocks"
	"github.com/looplab/ringhorizon/uuid"
)

func TestNew(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	assert.Len(t, m.Collectors(), 10)

	_, err = New(WithNamespace(""))
	assert.Error(t, err)

	m, err = New(WithNamespace("test"), WithSubsystem("bus"))
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))
	assert.Error(t, m.Register(registry), "registering twice should fail")
}

func TestCommandHandlerMiddleware(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	inner := &mocks.CommandHandler{}
	h := rh.UseCommandHandlerMiddleware(inner, m.CommandHandlerMiddleware())
	cmd := mocks.Command{ID: uuid.New(), Content: "content"}

	result, err := h.HandleCommand(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 1, result)

	inner.Err = fmt.Errorf("could not handle: %w", disruptor.ErrUnexpectedAggregate)
	_, err = h.HandleCommand(context.Background(), cmd)
	assert.ErrorIs(t, err, disruptor.ErrUnexpectedAggregate)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("Command", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("Command", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("unexpected_aggregate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.commandsInFlight))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commandDuration))
}

func TestEventStore(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	store := m.NewEventStore(memory.NewEventStore())
	require.NotNil(t, store)
	assert.Nil(t, m.NewEventStore(nil))

	ctx := context.Background()
	id := uuid.New()
	e := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "event"}, time.Now(),
		rh.ForAggregate(mocks.AggregateType, id, 0))

	require.NoError(t, store.Save(ctx, []rh.Event{e}, 0))
	assert.ErrorIs(t, store.Save(ctx, []rh.Event{e}, 0), rh.ErrIncorrectEventVersion)

	events, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = store.LoadRange(ctx, id, 1, 0)
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOpsTotal.WithLabelValues(OperationSave, StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOpsTotal.WithLabelValues(OperationSave, StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOpsTotal.WithLabelValues(OperationLoad, StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOpsTotal.WithLabelValues(OperationLoadRange, StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsSavedTotal.WithLabelValues(string(mocks.EventType))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("concurrency_conflict")))
}

func TestEventPublisher(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	inner := &mocks.EventPublisher{}
	p := m.NewEventPublisher(inner)

	e := rh.NewEvent(mocks.EventType, nil, time.Now(), rh.ForAggregate(mocks.AggregateType, uuid.New(), 0))
	require.NoError(t, p.PublishEvents(context.Background(), []rh.Event{e, e}))

	inner.Err = errors.New("publish error")
	assert.Error(t, p.PublishEvents(context.Background(), []rh.Event{e}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.publishedTotal.WithLabelValues(string(mocks.EventType))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishErrorTotal))
}

type backlog int64

func (b backlog) Backlog() int64 { return int64(b) }

func TestWatchBacklog(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.backlogGauge))

	m.WatchBacklog(backlog(7))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.backlogGauge))

	m.WatchBacklog(nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.backlogGauge))
}

func TestErrorType(t *testing.T) {
	cmd := mocks.Command{ID: uuid.New()}

	cases := []struct {
		err      error
		expected string
	}{
		{nil, "none"},
		{&rh.EventStoreError{Err: rh.ErrIncorrectEventVersion}, "concurrency_conflict"},
		{disruptor.ErrQueueFull, "queue_full"},
		{disruptor.ErrHandlerNotFound, "handler_not_found"},
		{disruptor.ErrBusStopped, "bus_stopped"},
		{&disruptor.HandlerError{Err: disruptor.ErrPanic, Command: cmd}, "panic"},
		{&disruptor.HandlerError{Err: errors.New("failed"), Command: cmd}, "handler"},
		{&rh.EventStoreError{Err: rh.ErrCouldNotSaveEvents}, "save_failed"},
		{&rh.EventStoreError{Err: rh.ErrCouldNotUnmarshalEvent}, "load_failed"},
		{errors.New("other"), "unknown"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, errorType(tc.err), tc.err)
	}
}
