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

package ringhorizon

import (
	"errors"
	"testing"
	"time"

	"github.com/kr/pretty"
)

func TestNewEvent(t *testing.T) {
	timestamp := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
	e := NewEvent(testEventType, &testEventData{"event1"}, timestamp)

	if e.EventType() != testEventType {
		t.Error("the event type should be correct:", e.EventType())
	}

	if e.Data().(*testEventData).Content != "event1" {
		t.Error("the data should be correct:", pretty.Sprint(e.Data()))
	}

	if !e.Timestamp().Equal(timestamp) {
		t.Error("the timestamp should not be zero:", e.Timestamp())
	}

	if e.Version() != 0 {
		t.Error("the version should be zero:", e.Version())
	}

	if e.String() != "TestEvent" {
		t.Error("the string representation should be correct:", e.String())
	}

	e = NewEvent(testEventType, &testEventData{"event1"}, timestamp,
		ForAggregate(testAggregateType, "id1", 3),
		WithMetadata(map[string]interface{}{"num": 1}),
		nil,
	)

	if e.AggregateType() != testAggregateType {
		t.Error("the aggregate type should be correct:", e.AggregateType())
	}

	if e.AggregateID() != "id1" {
		t.Error("the aggregate ID should be correct:", e.AggregateID())
	}

	if e.Version() != 3 {
		t.Error("the version should be correct:", e.Version())
	}

	if e.Metadata()["num"] != 1 {
		t.Error("the metadata should be correct:", e.Metadata())
	}

	if e.String() != "TestEvent(id1, v3)" {
		t.Error("the string representation should be correct:", e.String())
	}
}

func TestWithMetadataMerges(t *testing.T) {
	e := NewEvent(testEventType, nil, time.Now(),
		WithMetadata(map[string]interface{}{"a": 1}),
		WithMetadata(map[string]interface{}{"b": 2}),
	)

	if len(e.Metadata()) != 2 {
		t.Error("the metadata should be merged:", e.Metadata())
	}
}

func TestCreateEventData(t *testing.T) {
	data, err := CreateEventData("UnregisteredEvent")
	if !errors.Is(err, ErrEventDataNotRegistered) {
		t.Error("there should be a event data not registered error:", err)
	}

	if data != nil {
		t.Error("there should be no data:", data)
	}

	RegisterEventData(testEventRegisterType, func() EventData {
		return &testEventRegisterData{}
	})
	defer UnregisterEventData(testEventRegisterType)

	data, err = CreateEventData(testEventRegisterType)
	if err != nil {
		t.Error("there should be no error:", err)
	}

	if _, ok := data.(*testEventRegisterData); !ok {
		t.Errorf("the event type should be correct: %T", data)
	}
}

func TestRegisterEventDataEmptyName(t *testing.T) {
	defer func() {
		if r := recover(); r == nil || r != "ringhorizon: attempt to register empty event type" {
			t.Error("there should have been a panic:", r)
		}
	}()

	RegisterEventData("", func() EventData { return &testEventData{} })
}

func TestRegisterEventDataTwice(t *testing.T) {
	defer func() {
		if r := recover(); r == nil || r != `ringhorizon: registering duplicate types for "TestEventRegisterTwice"` {
			t.Error("there should have been a panic:", r)
		}
	}()

	RegisterEventData(testEventRegisterTwiceType, func() EventData { return &testEventData{} })
	RegisterEventData(testEventRegisterTwiceType, func() EventData { return &testEventData{} })
}

func TestUnregisterEventDataNotRegistered(t *testing.T) {
	defer func() {
		if r := recover(); r == nil || r != `ringhorizon: unregister of non-registered type "TestEventUnregister"` {
			t.Error("there should have been a panic:", r)
		}
	}()

	UnregisterEventData("TestEventUnregister")
}

const (
	testEventType              = EventType("TestEvent")
	testEventRegisterType      = EventType("TestEventRegister")
	testEventRegisterTwiceType = EventType("TestEventRegisterTwice")
)

type testEventData struct {
	Content string
}

type testEventRegisterData struct{}
