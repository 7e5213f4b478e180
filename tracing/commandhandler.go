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

// NewCommandHandlerMiddleware returns a new command handler middleware that adds tracing spans.
func NewCommandHandlerMiddleware() rh.CommandHandlerMiddleware {
	return rh.CommandHandlerMiddleware(func(h rh.CommandHandler) rh.CommandHandler {
		return rh.CommandHandlerFunc(func(ctx context.Context, cmd rh.Command) (interface{}, error) {
			opName := fmt.Sprintf("Command(%s)", cmd.CommandType())
			sp, ctx := opentracing.StartSpanFromContext(ctx, opName)

			result, err := h.HandleCommand(ctx, cmd)

			sp.SetTag("rh.command_type", cmd.CommandType())
			sp.SetTag("rh.aggregate_type", cmd.AggregateType())
			sp.SetTag("rh.aggregate_id", cmd.AggregateID())
			if err != nil {
				ext.LogError(sp, err)
			}
			sp.Finish()

			return result, err
		})
	})
}
