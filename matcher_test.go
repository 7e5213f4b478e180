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
	"testing"
	"time"
)

func TestMatchAny(t *testing.T) {
	m := MatchAny{}

	if !m.Match(nil) {
		t.Error("match any should always match")
	}

	e := NewEvent("test", nil, time.Now())
	if !m.Match(e) {
		t.Error("match any should always match")
	}
}

func TestMatchEvents(t *testing.T) {
	et1 := EventType("et1")
	et2 := EventType("et2")
	m := MatchEvents{et1, et2}

	if m.Match(nil) {
		t.Error("match event should not match nil event")
	}

	if !m.Match(NewEvent(et1, nil, time.Now())) {
		t.Error("match event should match the event")
	}

	if !m.Match(NewEvent(et2, nil, time.Now())) {
		t.Error("match event should match the event")
	}

	if m.Match(NewEvent("other", nil, time.Now())) {
		t.Error("match event should not match the event")
	}
}

func TestMatchAggregates(t *testing.T) {
	at := AggregateType("at")
	m := MatchAggregates{at}

	if m.Match(nil) {
		t.Error("match aggregate should not match nil event")
	}

	e := NewEvent("test", nil, time.Now(), ForAggregate(at, "id", 0))
	if !m.Match(e) {
		t.Error("match aggregate should match the event")
	}

	e = NewEvent("test", nil, time.Now(), ForAggregate("other", "id", 0))
	if m.Match(e) {
		t.Error("match aggregate should not match the event")
	}
}

func TestMatchAnyOf(t *testing.T) {
	et := EventType("et")
	at := AggregateType("at")
	m := MatchAnyOf{
		MatchEvents{et},
		MatchAggregates{at},
	}

	if !m.Match(NewEvent(et, nil, time.Now())) {
		t.Error("match any of should match the event type")
	}

	if !m.Match(NewEvent("other", nil, time.Now(), ForAggregate(at, "id", 0))) {
		t.Error("match any of should match the aggregate type")
	}

	if m.Match(NewEvent("other", nil, time.Now(), ForAggregate("other", "id", 0))) {
		t.Error("match any of should not match the event")
	}
}

func TestMatchAll(t *testing.T) {
	et := EventType("et")
	at := AggregateType("at")
	m := MatchAll{
		MatchEvents{et},
		MatchAggregates{at},
	}

	if !m.Match(NewEvent(et, nil, time.Now(), ForAggregate(at, "id", 0))) {
		t.Error("match all should match the event")
	}

	if m.Match(NewEvent(et, nil, time.Now(), ForAggregate("other", "id", 0))) {
		t.Error("match all should not match the event")
	}
}
