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
	"context"
	"time"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/aggregate"
	"github.com/looplab/ringhorizon/commandbus/disruptor"
)

const (
	// StubAggregateType is the type of the benchmarked aggregate.
	StubAggregateType rh.AggregateType = "StubAggregate"
	// SomethingDoneEvent is raised once per command.
	SomethingDoneEvent rh.EventType = "SomethingDone"
	// DoSomethingCommand is the dispatched command.
	DoSomethingCommand rh.CommandType = "DoSomething"
)

func init() {
	rh.RegisterEventData(SomethingDoneEvent, func() rh.EventData { return &SomethingDone{} })
}

// SomethingDone is the event data of SomethingDoneEvent.
type SomethingDone struct{}

// DoSomething is the dispatched command.
type DoSomething struct {
	ID string
}

var _ = rh.Command(DoSomething{})

func (c DoSomething) AggregateID() string             { return c.ID }
func (c DoSomething) AggregateType() rh.AggregateType { return StubAggregateType }
func (c DoSomething) CommandType() rh.CommandType     { return DoSomethingCommand }

// StubAggregate counts the applied events.
type StubAggregate struct {
	*aggregate.AggregateBase

	done int
}

var _ = aggregate.Aggregate(&StubAggregate{})

// NewStubAggregate is the factory of the repository.
func NewStubAggregate(id string) rh.Aggregate {
	return &StubAggregate{
		AggregateBase: aggregate.NewAggregateBase(StubAggregateType, id),
	}
}

// ApplyEvent implements the ApplyEvent method of the aggregate.Aggregate interface.
func (a *StubAggregate) ApplyEvent(ctx context.Context, event rh.Event) error {
	a.done++

	return nil
}

// doSomethingHandler raises one event on the target aggregate.
func doSomethingHandler(repo *disruptor.Repository) rh.CommandHandler {
	return rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
		h, err := repo.Load(ctx, cmd.AggregateID())
		if err != nil {
			return nil, err
		}

		return nil, h.Execute(func(a aggregate.Aggregate) error {
			a.(*StubAggregate).AppendEvent(SomethingDoneEvent, &SomethingDone{}, time.Now())

			return nil
		})
	})
}
