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
	"sync/atomic"

	rh "github.com/looplab/ringhorizon"
)

// slot is one entry of the ring. It is written by the producer that claimed
// its sequence and read by the workers after it has been published.
type slot struct {
	ctx     context.Context
	cmd     rh.Command
	handler rh.CommandHandler
	future  *Future
	owner   int
}

// ringBuffer is a fixed size array of slots addressed by an ever increasing
// sequence. Producers claim sequences with a CAS on the cursor and publish them
// by marking the slot available. A sequence can only be claimed once every
// worker has passed the sequence that used the same slot one lap earlier.
type ringBuffer struct {
	size  int64
	mask  int64
	slots []slot

	// available holds, per slot, the last sequence published into it.
	available []atomic.Int64

	cursor *sequence
	gating []*sequence
	// gatingCache is the last computed minimum of gating, it saves producers
	// from reading every worker sequence on each claim.
	gatingCache *sequence
}

func newRingBuffer(size int) *ringBuffer {
	r := &ringBuffer{
		size:        int64(size),
		mask:        int64(size - 1),
		slots:       make([]slot, size),
		available:   make([]atomic.Int64, size),
		cursor:      newSequence(initialSequence),
		gatingCache: newSequence(initialSequence),
	}

	for i := range r.available {
		r.available[i].Store(initialSequence)
	}

	return r
}

// addGatingSequences must be called before any claim.
func (r *ringBuffer) addGatingSequences(seqs ...*sequence) {
	r.gating = append(r.gating, seqs...)
}

// tryClaim reserves the next sequence, or returns false if the ring is full.
func (r *ringBuffer) tryClaim() (int64, bool) {
	for {
		current := r.cursor.get()
		next := current + 1
		wrapPoint := next - r.size

		if wrapPoint > r.gatingCache.get() {
			min := minimumSequence(r.gating, current)
			r.gatingCache.set(min)

			if wrapPoint > min {
				return 0, false
			}
		}

		if r.cursor.compareAndSwap(current, next) {
			return next, true
		}
	}
}

func (r *ringBuffer) slot(seq int64) *slot {
	return &r.slots[seq&r.mask]
}

func (r *ringBuffer) publish(seq int64) {
	r.available[seq&r.mask].Store(seq)
}

func (r *ringBuffer) isAvailable(seq int64) bool {
	return r.available[seq&r.mask].Load() == seq
}

// highestPublished returns the highest sequence from lo up to hi such that
// every sequence before it is published. With several producers a later
// sequence can be published before an earlier one.
func (r *ringBuffer) highestPublished(lo, hi int64) int64 {
	for seq := lo; seq <= hi; seq++ {
		if !r.isAvailable(seq) {
			return seq - 1
		}
	}

	return hi
}

// backlog is the number of claimed sequences not yet passed by all workers.
func (r *ringBuffer) backlog() int64 {
	cursor := r.cursor.get()

	return cursor - minimumSequence(r.gating, cursor)
}
