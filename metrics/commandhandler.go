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
	"time"

	rh "github.com/looplab/ringhorizon"
)

// CommandHandlerMiddleware returns a middleware that counts and times the
// handled commands.
func (m *Metrics) CommandHandlerMiddleware() rh.CommandHandlerMiddleware {
	return func(h rh.CommandHandler) rh.CommandHandler {
		return rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
			t := string(cmd.CommandType())

			m.commandsInFlight.Inc()
			defer m.commandsInFlight.Dec()

			start := time.Now()
			result, err := h.HandleCommand(ctx, cmd)
			m.commandDuration.WithLabelValues(t).Observe(time.Since(start).Seconds())

			status := StatusSuccess
			if err != nil {
				status = StatusError
				m.recordError(err)
			}

			m.commandsTotal.WithLabelValues(t, status).Inc()

			return result, err
		})
	}
}
