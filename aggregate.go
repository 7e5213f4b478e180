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

// AggregateType is the type of an aggregate.
type AggregateType string

// String returns the string representation of an aggregate type.
func (at AggregateType) String() string {
	return string(at)
}

// Entity is an item which is identified by an ID.
type Entity interface {
	// EntityID returns the ID of the entity.
	EntityID() string
}

// Aggregate is an interface representing a versioned data entity created from
// events. It is loaded by a repository, mutated by exactly one command at a
// time and its new events are stored and published by the command bus.
//
// See the aggregate package for an event sourced base to embed.
type Aggregate interface {
	// Entity provides the ID of the aggregate.
	Entity

	// AggregateType returns the type name of the aggregate.
	AggregateType() AggregateType
}

// AggregateFactory creates a new zero state aggregate for an ID, ready to have
// its history applied.
type AggregateFactory func(id string) Aggregate
