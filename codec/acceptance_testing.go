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

package codec

import (
	"context"
	"testing"
	"time"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/mocks"
)

func init() {
	rh.RegisterEventData(EventType, func() rh.EventData { return &EventData{} })
}

// EventType is a the type for the codec test event.
const EventType rh.EventType = "CodecEvent"

// EventCodecAcceptanceTest is the acceptance test that all implementations of
// EventCodec should pass. It should manually be called from a test case in each
// implementation:
//
//	func TestEventCodec(t *testing.T) {
//	    c := EventCodec{}
//	    expectedBytes = []byte("")
//	    codec.EventCodecAcceptanceTest(t, c, expectedBytes)
//	}
//
// A nil expectedBytes skips the check of the encoded form.
func EventCodecAcceptanceTest(t *testing.T, c rh.EventCodec, expectedBytes []byte) {
	// Marshaling.
	ctx := mocks.WithContextOne(context.Background(), "testval")
	id := "10a7ec0f-7f2b-46f5-bca1-877b6e33c9fd"
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)
	eventData := EventData{
		Bool:   true,
		String: "string",
		Number: 42.0,
		Slice:  []string{"a", "b"},
		Map:    map[string]interface{}{"key": "value"}, // NOTE: Just one key to avoid compare issues.
		Struct: Nested{
			Bool:   true,
			String: "string",
			Number: 42.0,
		},
		StructRef: &Nested{
			Bool:   true,
			String: "string",
			Number: 42.0,
		},
	}
	event := rh.NewEvent(EventType, &eventData, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 1),
		rh.WithMetadata(map[string]interface{}{"num": 42.0}), // NOTE: Just one key to avoid compare issues.
	)

	b, err := c.MarshalEvent(ctx, event)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if expectedBytes != nil && string(b) != string(expectedBytes) {
		t.Error("the encoded bytes should be correct:", string(b))
	}

	// Unmarshaling.
	decodedEvent, decodedContext, err := c.UnmarshalEvent(context.Background(), b)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := rh.CompareEvents(decodedEvent, event); err != nil {
		t.Error("the decoded event was incorrect:", err)
	}

	if val, ok := mocks.ContextOne(decodedContext); !ok || val != "testval" {
		t.Error("the decoded context was incorrect:", decodedContext)
	}

	// An event without data.
	empty := rh.NewEvent(mocks.EventOtherType, nil, timestamp,
		rh.ForAggregate(mocks.AggregateType, id, 2))

	if b, err = c.MarshalEvent(context.Background(), empty); err != nil {
		t.Error("there should be no error:", err)
	}

	decodedEvent, _, err = c.UnmarshalEvent(context.Background(), b)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if decodedEvent.Data() != nil {
		t.Error("there should be no event data:", decodedEvent.Data())
	}

	if decodedEvent.Version() != 2 {
		t.Error("the version should be correct:", decodedEvent.Version())
	}

	// Garbage input.
	if _, _, err := c.UnmarshalEvent(context.Background(), []byte("not an event")); err == nil {
		t.Error("there should be an error")
	}
}

// EventData is a mocked event data, useful in testing.
type EventData struct {
	Bool       bool
	String     string
	Number     float64
	Slice      []string
	Map        map[string]interface{}
	Struct     Nested
	StructRef  *Nested
	NullStruct *Nested
}

// Nested is nested event data.
type Nested struct {
	Bool   bool
	String string
	Number float64
}
