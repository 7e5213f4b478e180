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

// Package msgpack encodes events as MessagePack, a compact binary alternative
// to the JSON codec for high volume brokers.
package msgpack

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	rh "github.com/looplab/ringhorizon"
)

// EventCodec is a codec for marshaling and unmarshaling events
// to and from bytes in MessagePack format.
type EventCodec struct{}

var _ = rh.EventCodec(&EventCodec{})

// MarshalEvent marshals an event into bytes in MessagePack format.
func (c *EventCodec) MarshalEvent(ctx context.Context, event rh.Event) ([]byte, error) {
	e := evt{
		EventType:     event.EventType(),
		Timestamp:     event.Timestamp(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Version:       event.Version(),
		Metadata:      event.Metadata(),
		Context:       rh.MarshalContext(ctx),
	}

	if event.Data() != nil {
		var err error
		if e.RawData, err = msgpack.Marshal(event.Data()); err != nil {
			return nil, fmt.Errorf("could not marshal event data: %w", err)
		}
	}

	b, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("could not marshal event: %w", err)
	}

	return b, nil
}

// UnmarshalEvent unmarshals an event from bytes in MessagePack format.
func (c *EventCodec) UnmarshalEvent(ctx context.Context, b []byte) (rh.Event, context.Context, error) {
	var e evt
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return nil, nil, fmt.Errorf("could not unmarshal event: %w", err)
	}

	var data rh.EventData
	if len(e.RawData) > 0 {
		var err error
		if data, err = rh.CreateEventData(e.EventType); err != nil {
			return nil, nil, fmt.Errorf("could not create event data: %w", err)
		}

		if err := msgpack.Unmarshal(e.RawData, data); err != nil {
			return nil, nil, fmt.Errorf("could not unmarshal event data: %w", err)
		}
	}

	event := rh.NewEvent(
		e.EventType,
		data,
		e.Timestamp.UTC(),
		rh.ForAggregate(
			e.AggregateType,
			e.AggregateID,
			e.Version,
		),
		rh.WithMetadata(e.Metadata),
	)

	return event, rh.UnmarshalContext(ctx, e.Context), nil
}

// evt is the internal event used on the wire only.
type evt struct {
	EventType     rh.EventType           `msgpack:"event_type"`
	RawData       msgpack.RawMessage     `msgpack:"data,omitempty"`
	Timestamp     time.Time              `msgpack:"timestamp"`
	AggregateType rh.AggregateType       `msgpack:"aggregate_type"`
	AggregateID   string                 `msgpack:"aggregate_id"`
	Version       int                    `msgpack:"version"`
	Metadata      map[string]interface{} `msgpack:"metadata"`
	Context       map[string]interface{} `msgpack:"context"`
}
