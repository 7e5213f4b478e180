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
	"time"

	rh "github.com/looplab/ringhorizon"
)

// Store operation label values.
const (
	OperationSave      = "save"
	OperationLoad      = "load"
	OperationLoadRange = "load_range"
)

// EventStore is an rh.EventStore that records operation metrics.
type EventStore struct {
	rh.EventStore
	m *Metrics
}

var _ = rh.EventStore(&EventStore{})

// NewEventStore wraps a store with metrics.
func (m *Metrics) NewEventStore(store rh.EventStore) *EventStore {
	if store == nil {
		return nil
	}

	return &EventStore{
		EventStore: store,
		m:          m,
	}
}

// Save implements the Save method of the rh.EventStore interface.
func (s *EventStore) Save(ctx context.Context, events []rh.Event, originalVersion int) error {
	start := time.Now()
	err := s.EventStore.Save(ctx, events, originalVersion)
	s.observe(OperationSave, start, err)

	if err == nil {
		for _, e := range events {
			s.m.eventsSavedTotal.WithLabelValues(string(e.EventType())).Inc()
		}
	}

	return err
}

// Load implements the Load method of the rh.EventStore interface.
func (s *EventStore) Load(ctx context.Context, id string) ([]rh.Event, error) {
	start := time.Now()
	events, err := s.EventStore.Load(ctx, id)
	s.observe(OperationLoad, start, err)

	return events, err
}

// LoadRange implements the LoadRange method of the rh.EventStore interface.
func (s *EventStore) LoadRange(ctx context.Context, id string, fromVersion, toVersion int) ([]rh.Event, error) {
	start := time.Now()
	events, err := s.EventStore.LoadRange(ctx, id, fromVersion, toVersion)
	s.observe(OperationLoadRange, start, err)

	return events, err
}

func (s *EventStore) observe(op string, start time.Time, err error) {
	s.m.storeOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	status := StatusSuccess
	if err != nil {
		status = StatusError
		s.m.recordError(err)
	}

	s.m.storeOpsTotal.WithLabelValues(op, status).Inc()
}
