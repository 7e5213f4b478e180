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

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jinzhu/copier"

	rh "github.com/looplab/ringhorizon"
)

// EventStore is an in memory rh.EventStore. It is safe for concurrent use and
// keeps its own copies of the saved events.
type EventStore struct {
	// The outer map is with aggregate ID as key.
	db   map[string][]rh.Event
	dbMu sync.RWMutex
}

var _ = rh.EventStore(&EventStore{})

// NewEventStore creates a new EventStore using memory as storage.
func NewEventStore() *EventStore {
	return &EventStore{
		db: map[string][]rh.Event{},
	}
}

// Save implements the Save method of the rh.EventStore interface.
func (s *EventStore) Save(ctx context.Context, events []rh.Event, originalVersion int) error {
	if err := rh.CheckEventsForSave(events, originalVersion); err != nil {
		return err
	}

	id := events[0].AggregateID()

	dbEvents := make([]rh.Event, 0, len(events))

	for _, event := range events {
		e, err := copyEvent(event)
		if err != nil {
			return &rh.EventStoreError{
				Err:              fmt.Errorf("%w: %s", rh.ErrCouldNotSaveEvents, err),
				Op:               rh.EventStoreOpSave,
				AggregateType:    event.AggregateType(),
				AggregateID:      id,
				AggregateVersion: originalVersion,
				Events:           events,
			}
		}

		dbEvents = append(dbEvents, e)
	}

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	// The stored count is the version the new events must continue from.
	if len(s.db[id]) != originalVersion {
		return &rh.EventStoreError{
			Err:              rh.ErrIncorrectEventVersion,
			Op:               rh.EventStoreOpSave,
			AggregateType:    events[0].AggregateType(),
			AggregateID:      id,
			AggregateVersion: originalVersion,
			Events:           events,
		}
	}

	s.db[id] = append(s.db[id], dbEvents...)

	return nil
}

// Load implements the Load method of the rh.EventStore interface.
func (s *EventStore) Load(ctx context.Context, id string) ([]rh.Event, error) {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()

	return copyEvents(s.db[id])
}

// LoadRange implements the LoadRange method of the rh.EventStore interface.
func (s *EventStore) LoadRange(ctx context.Context, id string, fromVersion, toVersion int) ([]rh.Event, error) {
	if fromVersion < 0 || fromVersion > toVersion {
		return nil, &rh.EventStoreError{
			Err:         rh.ErrInvalidVersionRange,
			Op:          rh.EventStoreOpLoadRange,
			AggregateID: id,
		}
	}

	s.dbMu.RLock()
	defer s.dbMu.RUnlock()

	events := s.db[id]
	if fromVersion >= len(events) {
		return []rh.Event{}, nil
	}

	if toVersion >= len(events) {
		toVersion = len(events) - 1
	}

	// Versions are contiguous from 0, so they double as indexes.
	return copyEvents(events[fromVersion : toVersion+1])
}

// Close implements the Close method of the rh.EventStore interface.
func (s *EventStore) Close() error {
	return nil
}

func copyEvents(events []rh.Event) ([]rh.Event, error) {
	copied := make([]rh.Event, 0, len(events))

	for _, e := range events {
		c, err := copyEvent(e)
		if err != nil {
			return nil, &rh.EventStoreError{
				Err:              fmt.Errorf("%w: %s", rh.ErrCouldNotLoadEvents, err),
				Op:               rh.EventStoreOpLoad,
				AggregateType:    e.AggregateType(),
				AggregateID:      e.AggregateID(),
				AggregateVersion: e.Version(),
			}
		}

		copied = append(copied, c)
	}

	return copied, nil
}

// copyEvent duplicates an event, deep copying its data when the data type is
// registered and its metadata.
func copyEvent(event rh.Event) (rh.Event, error) {
	data := event.Data()

	if data != nil {
		if newData, err := rh.CreateEventData(event.EventType()); err == nil {
			if err := copier.CopyWithOption(newData, data, copier.Option{DeepCopy: true}); err != nil {
				return nil, fmt.Errorf("could not copy event data: %w", err)
			}

			data = newData
		}
	}

	metadata := make(map[string]interface{}, len(event.Metadata()))
	for k, v := range event.Metadata() {
		metadata[k] = v
	}

	return rh.NewEvent(
		event.EventType(),
		data,
		event.Timestamp(),
		rh.ForAggregate(
			event.AggregateType(),
			event.AggregateID(),
			event.Version(),
		),
		rh.WithMetadata(metadata),
	), nil
}
