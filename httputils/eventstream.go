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

// Package httputils exposes the command bus side of the system over HTTP: a
// websocket stream of published events and a read-only history endpoint.
package httputils

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	rh "github.com/looplab/ringhorizon"
	jsoncodec "github.com/looplab/ringhorizon/codec/json"
	"github.com/looplab/ringhorizon/uuid"
)

var upgrader = websocket.Upgrader{} // use default options

var codec = &jsoncodec.EventCodec{}

// StreamBufferSize is the number of events buffered per connection. Events
// published while the buffer is full are reported as handler errors on the
// bus and never reach the client.
var StreamBufferSize = 64

// handlerRemover is implemented by buses that can drop the queue of a
// handler, such as the local event bus.
type handlerRemover interface {
	RemoveHandler(rh.EventHandlerType)
}

// handler forwards events to one websocket connection.
type handler struct {
	t  rh.EventHandlerType
	ch chan rh.Event
}

// HandlerType implements the HandlerType method of the rh.EventHandler interface.
func (h *handler) HandlerType() rh.EventHandlerType {
	return h.t
}

// HandleEvent implements the HandleEvent method of the rh.EventHandler interface.
func (h *handler) HandleEvent(ctx context.Context, event rh.Event) error {
	select {
	case h.ch <- event:
	default:
		return fmt.Errorf("missed event: %s", event)
	}

	return nil
}

// EventStreamHandler is a websocket handler for published events. Every
// upgraded request subscribes its own handler to the bus and gets the
// matching events as JSON text messages until the client disconnects.
func EventStreamHandler(bus rh.EventBus, m rh.EventMatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		h := &handler{
			t:  rh.EventHandlerType("websocket_" + uuid.New()),
			ch: make(chan rh.Event, StreamBufferSize),
		}

		// Subscribe before the handshake completes, the client gets every
		// event published after it is connected.
		if err := bus.AddHandler(ctx, m, h); err != nil {
			http.Error(w, "could not subscribe: "+err.Error(), http.StatusInternalServerError)

			return
		}

		if rm, ok := bus.(handlerRemover); ok {
			defer rm.RemoveHandler(h.t)
		}

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ringhorizon: could not upgrade event stream: %s", err)

			return
		}
		defer c.Close()

		// The read loop notices when the client goes away.
		go func() {
			defer cancel()

			for {
				if _, _, err := c.NextReader(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-h.ch:
				b, err := codec.MarshalEvent(ctx, event)
				if err != nil {
					log.Printf("ringhorizon: could not encode event for stream: %s", err)

					continue
				}

				if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	})
}
