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
	"context"

	rh "github.com/looplab/ringhorizon"
)

// Future is the handle of a dispatched command. It resolves once the command
// has been handled, stored and published, or has failed.
type Future struct {
	cmd    rh.Command
	done   chan struct{}
	result interface{}
	err    error
}

func newFuture(cmd rh.Command) *Future {
	return &Future{
		cmd:  cmd,
		done: make(chan struct{}),
	}
}

// Command returns the dispatched command.
func (f *Future) Command() rh.Command {
	return f.cmd
}

// Done is closed when the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait waits for the result of the handler, or the error of the command. A
// cancelled ctx only stops the waiting, the command is still processed.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve is only called once, by the worker owning the command.
func (f *Future) resolve(result interface{}, err error) {
	f.result = result
	f.err = err
	close(f.done)
}
