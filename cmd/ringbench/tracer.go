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

package main

import (
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	jaeger "github.com/uber/jaeger-client-go"
)

// newTracer creates a new global tracer reporting to a Jaeger agent. It must
// be closed on exit using the returned io.Closer.
func newTracer(serviceName, agentAddr string) (io.Closer, error) {
	transport, err := jaeger.NewUDPTransport(agentAddr, 0)
	if err != nil {
		return nil, fmt.Errorf("could not init Jaeger UDP transport: %w", err)
	}

	tracer, closer := jaeger.NewTracer(
		serviceName,
		jaeger.NewConstSampler(true), // Trace everything.
		jaeger.NewRemoteReporter(transport),
	)
	opentracing.SetGlobalTracer(tracer)

	return closer, nil
}
