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

// Package badger is an embedded, durable event store on BadgerDB. Each event
// is a key under its aggregate's prefix, ordered by version, and a head key
// per aggregate holds the stored count. Concurrent appends to one aggregate
// conflict on the head key in Badger's optimistic transactions.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/codec/json"
)

var (
	eventPrefix = []byte("e/")
	headPrefix  = []byte("h/")
)

// EventStore is an rh.EventStore backed by a BadgerDB database.
type EventStore struct {
	db       *badger.DB
	codec    rh.EventCodec
	inMemory bool
	logger   badger.Logger
}

var _ = rh.EventStore(&EventStore{})

// NewEventStore opens (or creates) a database in the directory at path. An
// empty path requires WithInMemory.
func NewEventStore(path string, options ...Option) (*EventStore, error) {
	s := &EventStore{
		codec: &json.EventCodec{},
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	if path == "" && !s.inMemory {
		return nil, fmt.Errorf("missing database path")
	}

	opts := badger.DefaultOptions(path).WithLogger(s.logger)
	if s.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(s.logger)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("could not open badger db: %w", err)
	}

	s.db = db

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*EventStore) error

// WithInMemory keeps the database in memory only.
func WithInMemory() Option {
	return func(s *EventStore) error {
		s.inMemory = true

		return nil
	}
}

// WithCodec uses the specified codec for the stored events, JSON by default.
func WithCodec(codec rh.EventCodec) Option {
	return func(s *EventStore) error {
		if codec == nil {
			return fmt.Errorf("missing codec")
		}

		s.codec = codec

		return nil
	}
}

// WithLogger sets the logger Badger reports to. Badger is silent by default.
func WithLogger(logger badger.Logger) Option {
	return func(s *EventStore) error {
		s.logger = logger

		return nil
	}
}

// Save implements the Save method of the rh.EventStore interface.
func (s *EventStore) Save(ctx context.Context, events []rh.Event, originalVersion int) error {
	if err := rh.CheckEventsForSave(events, originalVersion); err != nil {
		return err
	}

	id := events[0].AggregateID()

	storeErr := func(err error) error {
		return &rh.EventStoreError{
			Err:              err,
			Op:               rh.EventStoreOpSave,
			AggregateType:    events[0].AggregateType(),
			AggregateID:      id,
			AggregateVersion: originalVersion,
			Events:           events,
		}
	}

	values := make([][]byte, len(events))

	for i, event := range events {
		b, err := s.codec.MarshalEvent(ctx, event)
		if err != nil {
			return storeErr(fmt.Errorf("%w: %s", rh.ErrCouldNotSaveEvents, err))
		}

		values[i] = b
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		stored, err := head(txn, id)
		if err != nil {
			return err
		}

		if stored != originalVersion {
			return rh.ErrIncorrectEventVersion
		}

		for i, v := range values {
			if err := txn.Set(eventKey(id, originalVersion+i), v); err != nil {
				return err
			}
		}

		return txn.Set(headKey(id), encodeVersion(originalVersion+len(events)))
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, rh.ErrIncorrectEventVersion), errors.Is(err, badger.ErrConflict):
		// A concurrent writer committed to the same head key first.
		return storeErr(rh.ErrIncorrectEventVersion)
	default:
		return storeErr(fmt.Errorf("%w: %s", rh.ErrCouldNotSaveEvents, err))
	}
}

// Load implements the Load method of the rh.EventStore interface.
func (s *EventStore) Load(ctx context.Context, id string) ([]rh.Event, error) {
	return s.load(ctx, rh.EventStoreOpLoad, id, 0, -1)
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

	return s.load(ctx, rh.EventStoreOpLoadRange, id, fromVersion, toVersion)
}

// load reads the events from fromVersion, up to toVersion unless it is negative.
func (s *EventStore) load(ctx context.Context, op rh.EventStoreOperation, id string, fromVersion, toVersion int) ([]rh.Event, error) {
	events := []rh.Event{}
	prefix := aggregatePrefix(id)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(eventKey(id, fromVersion)); it.Valid(); it.Next() {
			item := it.Item()
			if !bytes.HasPrefix(item.Key(), prefix) {
				break
			}

			if toVersion >= 0 && decodeVersion(item.Key()[len(prefix):]) > toVersion {
				break
			}

			b, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("%w: %s", rh.ErrCouldNotLoadEvents, err)
			}

			event, _, err := s.codec.UnmarshalEvent(ctx, b)
			if err != nil {
				return fmt.Errorf("%w: %s", rh.ErrCouldNotUnmarshalEvent, err)
			}

			events = append(events, event)
		}

		return nil
	})
	if err != nil {
		return nil, &rh.EventStoreError{
			Err:         err,
			Op:          op,
			AggregateID: id,
			Events:      events,
		}
	}

	return events, nil
}

// Close closes the database.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// head reads the stored event count of an aggregate. The read is tracked by
// the transaction even when the key is missing.
func head(txn *badger.Txn, id string) (int, error) {
	item, err := txn.Get(headKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("could not read aggregate head: %w", err)
	}

	var version int
	err = item.Value(func(val []byte) error {
		version = decodeVersion(val)

		return nil
	})

	return version, err
}

func aggregatePrefix(id string) []byte {
	p := make([]byte, 0, len(eventPrefix)+len(id)+1)
	p = append(p, eventPrefix...)
	p = append(p, id...)

	return append(p, 0)
}

// eventKey sorts the events of an aggregate by version.
func eventKey(id string, version int) []byte {
	return append(aggregatePrefix(id), encodeVersion(version)...)
}

func headKey(id string) []byte {
	return append(append([]byte{}, headPrefix...), id...)
}

func encodeVersion(v int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}

func decodeVersion(b []byte) int {
	if len(b) < 8 {
		return 0
	}

	return int(binary.BigEndian.Uint64(b))
}
