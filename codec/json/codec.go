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

// Package json encodes events as JSON, the default wire format of the broker
// publishers.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rh "github.com/looplab/ringhorizon"
)

// EventCodec is a codec for marshaling and unmarshaling events
// to and from bytes in JSON format.
type EventCodec struct{}

var _ = rh.EventCodec(&EventCodec{})

// MarshalEvent marshals an event into bytes in JSON format.
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

	// Marshal event data if there is any.
	if event.Data() != nil {
		var err error
		if e.RawData, err = json.Marshal(event.Data()); err != nil {
			return nil, fmt.Errorf("could not marshal event data: %w", err)
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("could not marshal event: %w", err)
	}

	return b, nil
}

// UnmarshalEvent unmarshals an event from bytes in JSON format.
func (c *EventCodec) UnmarshalEvent(ctx context.Context, b []byte) (rh.Event, context.Context, error) {
	var e evt
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, nil, fmt.Errorf("could not unmarshal event: %w", err)
	}

	// Create an event of the correct type and decode from raw JSON.
	var data rh.EventData
	if len(e.RawData) > 0 && string(e.RawData) != "null" {
		var err error
		if data, err = rh.CreateEventData(e.EventType); err != nil {
			return nil, nil, fmt.Errorf("could not create event data: %w", err)
		}

		if err := json.Unmarshal(e.RawData, data); err != nil {
			return nil, nil, fmt.Errorf("could not unmarshal event data: %w", err)
		}
	}

	event := rh.NewEvent(
		e.EventType,
		data,
		e.Timestamp,
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
	EventType     rh.EventType           `json:"event_type"`
	RawData       json.RawMessage        `json:"data,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	AggregateType rh.AggregateType       `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	Version       int                    `json:"version"`
	Metadata      map[string]interface{} `json:"metadata"`
	Context       map[string]interface{} `json:"context"`
}
