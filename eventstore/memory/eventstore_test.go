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
	"testing"
	"time"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/eventstore"
	"github.com/looplab/ringhorizon/mocks"
	"github.com/looplab/ringhorizon/uuid"
)

func TestEventStore(t *testing.T) {
	store := NewEventStore()
	if store == nil {
		t.Fatal("there should be a store")
	}

	eventstore.AcceptanceTest(t, store, context.Background())
	eventstore.ConcurrencyAcceptanceTest(t, store, context.Background())

	if err := store.Close(); err != nil {
		t.Error("there should be no error:", err)
	}
}

func TestEventStoreCopiesEvents(t *testing.T) {
	store := NewEventStore()
	ctx := context.Background()
	id := uuid.New()

	data := &mocks.EventData{Content: "original"}
	e := rh.NewEvent(mocks.EventType, data, time.Now(), rh.ForAggregate(mocks.AggregateType, id, 0))

	if err := store.Save(ctx, []rh.Event{e}, 0); err != nil {
		t.Fatal("there should be no error:", err)
	}

	data.Content = "changed"

	events, err := store.Load(ctx, id)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if events[0].Data().(*mocks.EventData).Content != "original" {
		t.Error("the stored data should not change with the saved event")
	}

	events[0].Data().(*mocks.EventData).Content = "loaded"

	events, err = store.Load(ctx, id)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	if events[0].Data().(*mocks.EventData).Content != "original" {
		t.Error("the stored data should not change with a loaded event")
	}
}

func BenchmarkEventStore(b *testing.B) {
	eventstore.Benchmark(b, NewEventStore())
}
