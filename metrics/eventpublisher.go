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

package metrics

import (
	"context"

	rh "github.com/looplab/ringhorizon"
)

// NewEventPublisher wraps a publisher, counting published events and failed
// publications.
func (m *Metrics) NewEventPublisher(p rh.EventPublisher) rh.EventPublisher {
	if p == nil {
		return nil
	}

	return rh.EventPublisherFunc(func(ctx context.Context, events []rh.Event) error {
		if err := p.PublishEvents(ctx, events); err != nil {
			m.publishErrorTotal.Inc()

			return err
		}

		for _, e := range events {
			m.publishedTotal.WithLabelValues(string(e.EventType())).Inc()
		}

		return nil
	})
}
