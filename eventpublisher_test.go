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
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEventPublishers(t *testing.T) {
	var calls []string

	errFailed := errors.New("failed")
	p := EventPublishers{
		EventPublisherFunc(func(ctx context.Context, events []Event) error {
			calls = append(calls, "first")

			return errFailed
		}),
		EventPublisherFunc(func(ctx context.Context, events []Event) error {
			calls = append(calls, "second")

			return nil
		}),
	}

	events := []Event{NewEvent(testEventType, nil, time.Now())}

	err := p.PublishEvents(context.Background(), events)
	if !errors.Is(err, errFailed) {
		t.Error("the error should be returned:", err)
	}

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Error("all publishers should be called in order:", calls)
	}
}

func TestEventHandlerFuncType(t *testing.T) {
	h1 := EventHandlerFunc(func(ctx context.Context, e Event) error { return nil })
	h2 := EventHandlerFunc(func(ctx context.Context, e Event) error { return nil })

	if !strings.HasPrefix(h1.HandlerType().String(), "handler-func-") {
		t.Error("the handler type should be correct:", h1.HandlerType())
	}

	if h1.HandlerType() == h2.HandlerType() {
		t.Error("the handler types should differ:", h1.HandlerType())
	}
}

func TestEventPublisherError(t *testing.T) {
	errFailed := errors.New("failed")
	err := &EventPublisherError{
		Err:   errFailed,
		Event: NewEvent(testEventType, nil, time.Now(), ForAggregate(testAggregateType, "id", 1)),
	}

	if err.Error() != "event publisher: failed, TestEvent(id, v1)" {
		t.Error("the error string should be correct:", err.Error())
	}

	if !errors.Is(err, errFailed) {
		t.Error("the error should unwrap")
	}

	if (&EventPublisherError{}).Error() != "event publisher: unknown error" {
		t.Error("the error string should be correct")
	}
}
