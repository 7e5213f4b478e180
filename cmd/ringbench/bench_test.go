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

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/eventstore/memory"
)

func TestRun(t *testing.T) {
	testCases := map[string]func(*Config){
		"memory": func(c *Config) {},
		"memory with local publisher": func(c *Config) {
			c.Publisher = "local"
		},
		"in-memory badger": func(c *Config) {
			c.Store = "badger"
			c.Codec = "msgpack"
		},
		"small ring yielding": func(c *Config) {
			c.BufferSize = 64
			c.Partitions = 4
			c.Workers = 2
			c.WaitStrategy = "yielding"
		},
	}

	for name, change := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Commands = 1000
			change(&cfg)

			var out bytes.Buffer

			res, err := run(context.Background(), cfg, &out)
			require.NoError(t, err)

			assert.Equal(t, 1000, res.Commands)
			assert.EqualValues(t, 1000, res.Stored)
			assert.EqualValues(t, 1000, res.Published)
			assert.Contains(t, out.String(), "Finished dispatching!")
			assert.Contains(t, out.String(), "commands per second")
		})
	}
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Commands = 0

	_, err := run(context.Background(), cfg, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewEventStore()

	require.NoError(t, seed(ctx, store, "id"))
	require.NoError(t, seed(ctx, store, "id"))

	events, err := store.Load(ctx, "id")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, SomethingDoneEvent, events[0].EventType())
	assert.Equal(t, 0, events[0].Version())
}

func TestStubAggregate(t *testing.T) {
	a := NewStubAggregate("id").(*StubAggregate)
	e := rh.NewEvent(SomethingDoneEvent, &SomethingDone{}, time.Now(),
		rh.ForAggregate(StubAggregateType, "id", 0))

	require.NoError(t, a.ApplyEvent(context.Background(), e))
	assert.Equal(t, 1, a.done)
	assert.Equal(t, StubAggregateType, a.AggregateType())
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--commands", "0"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "commands must be positive") {
		t.Error("there should be a validation error:", err)
	}
}
