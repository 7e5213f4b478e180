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

package redis

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/looplab/ringhorizon/codec/msgpack"
	"github.com/looplab/ringhorizon/publisher"
)

func TestEventBusIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	bus1, bus2 := newTestEventBuses(t)

	publisher.AcceptanceTest(t, bus1, bus2, time.Second)
}

func TestEventBusMsgpackIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	bus1, bus2 := newTestEventBuses(t, WithCodec(&msgpack.EventCodec{}))

	publisher.AcceptanceTest(t, bus1, bus2, time.Second)
}

func TestEventBusOptions(t *testing.T) {
	if _, err := NewEventBus("localhost:0", "app", "client", WithBlockTime(0)); err == nil {
		t.Error("there should be an error for a zero block time")
	}
}

func newTestEventBuses(t *testing.T, options ...Option) (*EventBus, *EventBus) {
	t.Helper()

	// Connect to localhost if not running inside docker
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	// Get a random app ID.
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}

	appID := "app-" + hex.EncodeToString(b)

	bus1, err := NewEventBus(addr, appID, "client1", options...)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	bus2, err := NewEventBus(addr, appID, "client2", options...)
	if err != nil {
		t.Fatal("there should be no error:", err)
	}

	t.Cleanup(func() {
		bus1.Close()
		bus2.Close()
	})

	return bus1, bus2
}
