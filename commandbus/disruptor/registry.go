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

package disruptor

import (
	"sync"
	"sync/atomic"

	rh "github.com/looplab/ringhorizon"
)

// Registration is returned by Subscribe and removes the handler again.
type Registration struct {
	registry    *registry
	commandType rh.CommandType
	handler     rh.CommandHandler
}

// CommandType returns the subscribed command type.
func (r *Registration) CommandType() rh.CommandType {
	return r.commandType
}

// Cancel removes the handler, unless it has since been replaced by another
// subscription. It returns false if nothing was removed.
func (r *Registration) Cancel() bool {
	return r.registry.remove(r)
}

// registry maps command types to handlers. Reads are lock free on the
// dispatch path, writes copy the map.
type registry struct {
	handlers atomic.Pointer[map[rh.CommandType]*Registration]
	mu       sync.Mutex
}

func newRegistry() *registry {
	r := &registry{}
	r.handlers.Store(&map[rh.CommandType]*Registration{})

	return r
}

func (r *registry) lookup(t rh.CommandType) rh.CommandHandler {
	if reg, ok := (*r.handlers.Load())[t]; ok {
		return reg.handler
	}

	return nil
}

func (r *registry) add(t rh.CommandType, h rh.CommandHandler) *Registration {
	reg := &Registration{
		registry:    r,
		commandType: t,
		handler:     h,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.copyHandlers()
	next[t] = reg
	r.handlers.Store(&next)

	return reg
}

func (r *registry) remove(reg *Registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if (*r.handlers.Load())[reg.commandType] != reg {
		return false
	}

	next := r.copyHandlers()
	delete(next, reg.commandType)
	r.handlers.Store(&next)

	return true
}

func (r *registry) copyHandlers() map[rh.CommandType]*Registration {
	current := *r.handlers.Load()
	next := make(map[rh.CommandType]*Registration, len(current)+1)

	for t, reg := range current {
		next[t] = reg
	}

	return next
}
