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

// EventMatcher matches, for example on event types, aggregate types etc.
type EventMatcher interface {
	// Match returns true if the matcher matches an event.
	Match(Event) bool
}

// MatchEvents matches any of the event types, nil events never match.
type MatchEvents []EventType

// Match implements the Match method of the EventMatcher interface.
func (types MatchEvents) Match(e Event) bool {
	if e == nil {
		return false
	}

	for _, t := range types {
		if e.EventType() == t {
			return true
		}
	}

	return false
}

// MatchAggregates matches any of the aggregate types, nil events never match.
type MatchAggregates []AggregateType

// Match implements the Match method of the EventMatcher interface.
func (types MatchAggregates) Match(e Event) bool {
	if e == nil {
		return false
	}

	for _, t := range types {
		if e.AggregateType() == t {
			return true
		}
	}

	return false
}

// MatchAny matches any event.
type MatchAny struct{}

// Match implements the Match method of the EventMatcher interface.
func (MatchAny) Match(e Event) bool {
	return true
}

// MatchAnyOf matches if any of several matchers matches.
type MatchAnyOf []EventMatcher

// Match implements the Match method of the EventMatcher interface.
func (matchers MatchAnyOf) Match(e Event) bool {
	for _, m := range matchers {
		if m.Match(e) {
			return true
		}
	}

	return false
}

// MatchAll matches if all of several matchers matches.
type MatchAll []EventMatcher

// Match implements the Match method of the EventMatcher interface.
func (matchers MatchAll) Match(e Event) bool {
	for _, m := range matchers {
		if !m.Match(e) {
			return false
		}
	}

	return true
}
