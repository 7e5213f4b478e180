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

package tracing

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	rh "github.com/looplab/ringhorizon"
)

// NewEventHandler wraps an event handler with a span per handled event. The
// handler type is kept, so the wrapped handler competes with unwrapped ones
// of the same type.
func NewEventHandler(h rh.EventHandler) rh.EventHandler {
	if h == nil {
		return nil
	}

	return &eventHandler{h}
}

type eventHandler struct {
	rh.EventHandler
}

// InnerHandler returns the wrapped handler.
func (h *eventHandler) InnerHandler() rh.EventHandler {
	return h.EventHandler
}

// HandleEvent implements the HandleEvent method of the EventHandler.
func (h *eventHandler) HandleEvent(ctx context.Context, event rh.Event) error {
	opName := fmt.Sprintf("%s.Event(%s)", h.HandlerType(), event.EventType())
	sp, ctx := opentracing.StartSpanFromContext(ctx, opName)

	err := h.EventHandler.HandleEvent(ctx, event)
	if err != nil {
		ext.LogError(sp, err)
	}

	setEventTags(sp, event)
	sp.Finish()

	return err
}

func setEventTags(sp opentracing.Span, event rh.Event) {
	sp.SetTag("rh.event_type", event.EventType())
	sp.SetTag("rh.aggregate_type", event.AggregateType())
	sp.SetTag("rh.aggregate_id", event.AggregateID())
	sp.SetTag("rh.version", event.Version())
}
