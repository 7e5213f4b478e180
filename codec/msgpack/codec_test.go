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

package msgpack

import (
	"context"
	"testing"
	"time"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/codec"
	"github.com/looplab/ringhorizon/mocks"
)

func TestEventCodec(t *testing.T) {
	c := &EventCodec{}

	// The binary form is not stable across map orderings, only round trips
	// are checked.
	codec.EventCodecAcceptanceTest(t, c, nil)
}

func TestEventCodecEncoding(t *testing.T) {
	c := &EventCodec{}

	event := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: "content"},
		time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC),
		rh.ForAggregate(mocks.AggregateType, "id", 0))

	b, err := c.MarshalEvent(context.Background(), event)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if len(b) == 0 || b[0]&0xf0 != 0x80 {
		t.Errorf("the event should be encoded as a msgpack map: % x", b[:1])
	}

	decoded, _, err := c.UnmarshalEvent(context.Background(), b)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if err := rh.CompareEvents(decoded, event); err != nil {
		t.Error("the decoded event was incorrect:", err)
	}
}
