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
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// initialSequence is the value of a sequence before anything is claimed.
const initialSequence = int64(-1)

// sequence is a counter on its own cache line. The claim cursor and every
// worker's progress are sequences, and they are written from different cores.
type sequence struct {
	_     cpu.CacheLinePad
	value atomic.Int64
	_     cpu.CacheLinePad
}

func newSequence(v int64) *sequence {
	s := &sequence{}
	s.value.Store(v)

	return s
}

func (s *sequence) get() int64 {
	return s.value.Load()
}

func (s *sequence) set(v int64) {
	s.value.Store(v)
}

func (s *sequence) compareAndSwap(old, new int64) bool {
	return s.value.CompareAndSwap(old, new)
}

// minimumSequence returns the lowest value of the sequences, or def if there
// are none.
func minimumSequence(seqs []*sequence, def int64) int64 {
	min := def

	for i, s := range seqs {
		if v := s.get(); i == 0 || v < min {
			min = v
		}
	}

	return min
}
