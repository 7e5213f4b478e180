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

// Package mongodb is an event store on MongoDB. Events are documents in one
// collection with a unique (aggregate_id, version) index, a second collection
// keeps the stored version per aggregate. Saves run in a transaction and need
// a replica set.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/mongoutils"
)

// EventStore is an rh.EventStore for MongoDB, using one collection for all
// events and another to keep track of all aggregates/streams.
type EventStore struct {
	client          *mongo.Client
	clientOwnership clientOwnership
	events          *mongo.Collection
	streams         *mongo.Collection
}

var _ = rh.EventStore(&EventStore{})

type clientOwnership int

const (
	internalClient clientOwnership = iota
	externalClient
)

// NewEventStore creates a new EventStore with a MongoDB URI: `mongodb://hostname`.
func NewEventStore(uri, dbName string, options ...Option) (*EventStore, error) {
	client, err := mongo.Connect(clientOptions(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to DB: %w", err)
	}

	return newEventStoreWithClient(client, internalClient, dbName, options...)
}

func clientOptions(uri string) *mongoOptions.ClientOptions {
	return mongoOptions.Client().
		ApplyURI(uri).
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Majority()).
		SetReadPreference(readpref.Primary())
}

// NewEventStoreWithClient creates a new EventStore with a client.
func NewEventStoreWithClient(client *mongo.Client, dbName string, options ...Option) (*EventStore, error) {
	return newEventStoreWithClient(client, externalClient, dbName, options...)
}

func newEventStoreWithClient(client *mongo.Client, clientOwnership clientOwnership, dbName string, options ...Option) (*EventStore, error) {
	if client == nil {
		return nil, fmt.Errorf("missing DB client")
	}

	db := client.Database(dbName)
	s := &EventStore{
		client:          client,
		clientOwnership: clientOwnership,
		events:          db.Collection("events"),
		streams:         db.Collection("streams"),
	}

	for _, option := range options {
		if option == nil {
			continue
		}

		if err := option(s); err != nil {
			return nil, fmt.Errorf("error while applying option: %w", err)
		}
	}

	ctx := context.Background()

	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not connect to MongoDB: %w", err)
	}

	if _, err := s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "aggregate_id", Value: 1}, {Key: "version", Value: 1}},
		Options: mongoOptions.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("could not ensure events index: %w", err)
	}

	return s, nil
}

// Option is an option setter used to configure creation.
type Option func(*EventStore) error

// WithCollectionNames uses different collections from the default "events" and "streams" collections.
// Will return an error if provided parameters are equal.
func WithCollectionNames(eventsColl, streamsColl string) Option {
	return func(s *EventStore) error {
		if err := mongoutils.CheckCollectionName(eventsColl); err != nil {
			return fmt.Errorf("events collection: %w", err)
		} else if err := mongoutils.CheckCollectionName(streamsColl); err != nil {
			return fmt.Errorf("streams collection: %w", err)
		} else if eventsColl == streamsColl {
			return fmt.Errorf("custom collection names are equal")
		}

		db := s.events.Database()
		s.events = db.Collection(eventsColl)
		s.streams = db.Collection(streamsColl)

		return nil
	}
}

// Save implements the Save method of the rh.EventStore interface.
func (s *EventStore) Save(ctx context.Context, events []rh.Event, originalVersion int) error {
	if err := rh.CheckEventsForSave(events, originalVersion); err != nil {
		return err
	}

	id := events[0].AggregateID()
	at := events[0].AggregateType()

	storeErr := func(err error) error {
		return &rh.EventStoreError{
			Err:              err,
			Op:               rh.EventStoreOpSave,
			AggregateType:    at,
			AggregateID:      id,
			AggregateVersion: originalVersion,
			Events:           events,
		}
	}

	dbEvents := make([]interface{}, len(events))

	for i, event := range events {
		e, err := newEvt(event)
		if err != nil {
			return storeErr(fmt.Errorf("%w: %s", rh.ErrCouldNotSaveEvents, err))
		}

		dbEvents[i] = e
	}

	last := events[len(events)-1]

	sess, err := s.client.StartSession()
	if err != nil {
		return storeErr(fmt.Errorf("could not start transaction: %w", err))
	}

	defer sess.EndSession(ctx)

	if _, err := sess.WithTransaction(ctx, func(txCtx context.Context) (interface{}, error) {
		// Move the stream version, guarded by the version read by the caller.
		if originalVersion == 0 {
			if _, err := s.streams.InsertOne(txCtx, &stream{
				ID:            id,
				AggregateType: at,
				Version:       len(events),
				UpdatedAt:     last.Timestamp(),
			}); mongo.IsDuplicateKeyError(err) {
				return nil, rh.ErrIncorrectEventVersion
			} else if err != nil {
				return nil, fmt.Errorf("could not insert stream: %w", err)
			}
		} else {
			r, err := s.streams.UpdateOne(txCtx,
				bson.M{
					"_id":     id,
					"version": originalVersion,
				},
				bson.M{
					"$set": bson.M{"updated_at": last.Timestamp()},
					"$inc": bson.M{"version": len(events)},
				},
			)
			if err != nil {
				return nil, fmt.Errorf("could not update stream: %w", err)
			} else if r.MatchedCount == 0 {
				return nil, rh.ErrIncorrectEventVersion
			}
		}

		if _, err := s.events.InsertMany(txCtx, dbEvents); mongo.IsDuplicateKeyError(err) {
			return nil, rh.ErrIncorrectEventVersion
		} else if err != nil {
			return nil, fmt.Errorf("could not insert events: %w", err)
		}

		return nil, nil
	}); errors.Is(err, rh.ErrIncorrectEventVersion) {
		return storeErr(rh.ErrIncorrectEventVersion)
	} else if err != nil {
		return storeErr(fmt.Errorf("%w: %s", rh.ErrCouldNotSaveEvents, err))
	}

	return nil
}

// Load implements the Load method of the rh.EventStore interface.
func (s *EventStore) Load(ctx context.Context, id string) ([]rh.Event, error) {
	return s.find(ctx, rh.EventStoreOpLoad, id, bson.M{"aggregate_id": id})
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

	return s.find(ctx, rh.EventStoreOpLoadRange, id, bson.M{
		"aggregate_id": id,
		"version":      bson.M{"$gte": fromVersion, "$lte": toVersion},
	})
}

func (s *EventStore) find(ctx context.Context, op rh.EventStoreOperation, id string, filter bson.M) ([]rh.Event, error) {
	opts := mongoOptions.Find().SetSort(bson.D{{Key: "version", Value: 1}})

	cursor, err := s.events.Find(ctx, filter, opts)
	if err != nil {
		return nil, &rh.EventStoreError{
			Err:         fmt.Errorf("%w: %s", rh.ErrCouldNotLoadEvents, err),
			Op:          op,
			AggregateID: id,
		}
	}
	defer cursor.Close(ctx)

	events := []rh.Event{}

	for cursor.Next(ctx) {
		var e evt
		if err := cursor.Decode(&e); err != nil {
			return nil, &rh.EventStoreError{
				Err:         fmt.Errorf("%w: %s", rh.ErrCouldNotUnmarshalEvent, err),
				Op:          op,
				AggregateID: id,
				Events:      events,
			}
		}

		event, err := e.event()
		if err != nil {
			return nil, &rh.EventStoreError{
				Err:              fmt.Errorf("%w: %s", rh.ErrCouldNotUnmarshalEvent, err),
				Op:               op,
				AggregateType:    e.AggregateType,
				AggregateID:      id,
				AggregateVersion: e.Version,
				Events:           events,
			}
		}

		events = append(events, event)
	}

	if err := cursor.Err(); err != nil {
		return nil, &rh.EventStoreError{
			Err:         fmt.Errorf("%w: %s", rh.ErrCouldNotLoadEvents, err),
			Op:          op,
			AggregateID: id,
			Events:      events,
		}
	}

	return events, nil
}

// Close implements the Close method of the rh.EventStore interface.
func (s *EventStore) Close() error {
	if s.clientOwnership == externalClient {
		// Don't close a client we don't own.
		return nil
	}

	return s.client.Disconnect(context.Background())
}

// stream is a stream of events, the stored version of one aggregate.
type stream struct {
	ID            string           `bson:"_id"`
	AggregateType rh.AggregateType `bson:"aggregate_type"`
	Version       int              `bson:"version"`
	UpdatedAt     time.Time        `bson:"updated_at"`
}

// evt is the internal event record for the MongoDB event store used
// to save and load events from the DB.
type evt struct {
	EventType     rh.EventType           `bson:"event_type"`
	RawData       bson.Raw               `bson:"data,omitempty"`
	Timestamp     time.Time              `bson:"timestamp"`
	AggregateType rh.AggregateType       `bson:"aggregate_type"`
	AggregateID   string                 `bson:"aggregate_id"`
	Version       int                    `bson:"version"`
	Metadata      map[string]interface{} `bson:"metadata"`
}

// newEvt returns a new evt for an event.
func newEvt(event rh.Event) (*evt, error) {
	e := &evt{
		EventType:     event.EventType(),
		Timestamp:     event.Timestamp(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Version:       event.Version(),
		Metadata:      event.Metadata(),
	}

	// Marshal event data if there is any.
	if event.Data() != nil {
		var err error
		if e.RawData, err = bson.Marshal(event.Data()); err != nil {
			return nil, fmt.Errorf("could not marshal event data: %w", err)
		}
	}

	return e, nil
}

func (e *evt) event() (rh.Event, error) {
	var data rh.EventData

	// Create an event of the correct type and decode from raw BSON.
	if len(e.RawData) > 0 {
		var err error
		if data, err = rh.CreateEventData(e.EventType); err != nil {
			return nil, fmt.Errorf("could not create event data: %w", err)
		}

		if err := bson.Unmarshal(e.RawData, data); err != nil {
			return nil, fmt.Errorf("could not unmarshal event data: %w", err)
		}
	}

	return rh.NewEvent(
		e.EventType,
		data,
		e.Timestamp,
		rh.ForAggregate(
			e.AggregateType,
			e.AggregateID,
			e.Version,
		),
		rh.WithMetadata(e.Metadata),
	), nil
}
