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

// Package ringhorizon is a high throughput command dispatch toolkit for event
// sourced aggregates.
//
// Commands are dispatched on a ring buffer backed bus (see
// commandbus/disruptor), partitioned by aggregate ID. Each partition runs the
// handler, appends the produced events to an EventStore and publishes them on
// an EventPublisher, strictly in order for a single aggregate and in parallel
// for different aggregates.
package ringhorizon
