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
	"fmt"
	"time"

	rh "github.com/looplab/ringhorizon"
)

// Default sizes of a bus.
const (
	DefaultBufferSize = 1024
	DefaultPartitions = 64
	DefaultCacheSize  = 4096
)

// Backpressure is the policy of Dispatch when the ring is full.
type Backpressure int

const (
	// FailFast returns ErrQueueFull at once.
	FailFast Backpressure = iota
	// Block waits for a free slot, up to the max wait if one is set.
	Block
)

// String returns the name of the policy.
func (b Backpressure) String() string {
	switch b {
	case FailFast:
		return "fail-fast"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("Backpressure(%d)", int(b))
	}
}

// Option is an option setter used to configure creation.
type Option func(*Bus) error

// WithBufferSize sets the number of slots in the ring, a power of two.
func WithBufferSize(size int) Option {
	return func(b *Bus) error {
		if !isPowerOfTwo(size) {
			return fmt.Errorf("buffer size must be a power of two: %d", size)
		}

		b.bufferSize = size

		return nil
	}
}

// WithPartitions sets the number of partitions, a power of two. Commands for
// one aggregate always use the same partition.
func WithPartitions(n int) Option {
	return func(b *Bus) error {
		if !isPowerOfTwo(n) {
			return fmt.Errorf("partitions must be a power of two: %d", n)
		}

		b.partitions = n

		return nil
	}
}

// WithWorkers sets the number of worker goroutines. It is capped at the
// number of partitions.
func WithWorkers(n int) Option {
	return func(b *Bus) error {
		if n < 1 {
			return fmt.Errorf("workers must be at least 1: %d", n)
		}

		b.workers = n

		return nil
	}
}

// WithBackpressure sets the policy used when the ring is full.
func WithBackpressure(p Backpressure) Option {
	return func(b *Bus) error {
		if p != FailFast && p != Block {
			return fmt.Errorf("unknown backpressure policy: %s", p)
		}

		b.backpressure = p

		return nil
	}
}

// WithMaxWait bounds how long a blocked Dispatch waits for a free slot
// before returning ErrQueueFull. Zero waits until the dispatch context is done.
func WithMaxWait(d time.Duration) Option {
	return func(b *Bus) error {
		if d < 0 {
			return fmt.Errorf("max wait must not be negative: %s", d)
		}

		b.maxWait = d

		return nil
	}
}

// WithWaitStrategy sets how idle workers wait.
func WithWaitStrategy(s WaitStrategy) Option {
	return func(b *Bus) error {
		if s == nil {
			return fmt.Errorf("missing wait strategy")
		}

		b.waitStrategy = s

		return nil
	}
}

// WithCacheSize sets the number of aggregates each worker keeps in memory.
// Zero disables caching, every command replays its aggregate.
func WithCacheSize(n int) Option {
	return func(b *Bus) error {
		if n < 0 {
			return fmt.Errorf("cache size must not be negative: %d", n)
		}

		b.cacheSize = n

		return nil
	}
}

// WithCommandHandlerMiddleware adds middleware that wraps every subscribed
// handler. The first middleware is the outermost.
func WithCommandHandlerMiddleware(m ...rh.CommandHandlerMiddleware) Option {
	return func(b *Bus) error {
		b.middleware = append(b.middleware, m...)

		return nil
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
