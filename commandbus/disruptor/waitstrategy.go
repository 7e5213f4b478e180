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
	"runtime"
	"sync"
	"sync/atomic"
)

// WaitStrategy decides how an idle worker waits for new commands.
type WaitStrategy interface {
	// Wait returns when ready or alerted returns true.
	Wait(ready, alerted func() bool)
	// Signal is called after every publish and on stop.
	Signal()
}

// BlockingWaitStrategy parks idle workers on a condition variable. It uses the
// least CPU and adds some wake up latency. It is the default.
type BlockingWaitStrategy struct {
	mu      sync.Mutex
	cond    *sync.Cond
	waiters atomic.Int32
}

// NewBlockingWaitStrategy creates a BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	s := &BlockingWaitStrategy{}
	s.cond = sync.NewCond(&s.mu)

	return s
}

// Wait implements the Wait method of the WaitStrategy interface.
func (s *BlockingWaitStrategy) Wait(ready, alerted func() bool) {
	if ready() || alerted() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Registered before the last check, so a publish after the check sees
	// the waiter and signals.
	s.waiters.Add(1)
	defer s.waiters.Add(-1)

	for !ready() && !alerted() {
		s.cond.Wait()
	}
}

// Signal implements the Signal method of the WaitStrategy interface.
func (s *BlockingWaitStrategy) Signal() {
	if s.waiters.Load() == 0 {
		return
	}

	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// YieldingWaitStrategy spins for a while and then yields the processor
// between checks. Low latency without pinning a core at 100%.
type YieldingWaitStrategy struct {
	// Spins is the number of busy checks before yielding.
	Spins int
}

// NewYieldingWaitStrategy creates a YieldingWaitStrategy.
func NewYieldingWaitStrategy() *YieldingWaitStrategy {
	return &YieldingWaitStrategy{Spins: 100}
}

// Wait implements the Wait method of the WaitStrategy interface.
func (s *YieldingWaitStrategy) Wait(ready, alerted func() bool) {
	for i := 0; !ready() && !alerted(); i++ {
		if i >= s.Spins {
			runtime.Gosched()
		}
	}
}

// Signal implements the Signal method of the WaitStrategy interface.
func (s *YieldingWaitStrategy) Signal() {}

// BusySpinWaitStrategy checks in a tight loop. Lowest latency, one core per
// worker. Only use it with fewer workers than cores.
type BusySpinWaitStrategy struct{}

// NewBusySpinWaitStrategy creates a BusySpinWaitStrategy.
func NewBusySpinWaitStrategy() *BusySpinWaitStrategy {
	return &BusySpinWaitStrategy{}
}

// Wait implements the Wait method of the WaitStrategy interface.
func (s *BusySpinWaitStrategy) Wait(ready, alerted func() bool) {
	for !ready() && !alerted() {
	}
}

// Signal implements the Signal method of the WaitStrategy interface.
func (s *BusySpinWaitStrategy) Signal() {}
