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

// Package tracing adds OpenTracing spans to command handlers, event stores,
// event buses and event handlers, and propagates spans through the codecs
// of the broker publishers.
package tracing

import (
	"context"
	"encoding/json"
	"log"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"

	rh "github.com/looplab/ringhorizon"
)

// The string keys to marshal the context.
const (
	tracingSpanKeyStr = "rh_tracing_span"
)

// RegisterContext registers the tracing span to be marshaled/unmarshaled on the
// context. This enables propagation of the tracing spans through the broker
// publishers for backends that supports it (like Jaeger).
func RegisterContext() {
	rh.RegisterContextMarshaler(func(ctx context.Context, vals map[string]interface{}) {
		if span := opentracing.SpanFromContext(ctx); span != nil {
			tracer := opentracing.GlobalTracer()

			carrier := opentracing.TextMapCarrier{}
			if err := tracer.Inject(span.Context(), opentracing.TextMap, carrier); err != nil {
				log.Printf("ringhorizon: could not inject tracing span: %s", err)

				return
			}

			js, err := json.Marshal(carrier)
			if err != nil {
				log.Printf("ringhorizon: could not marshal tracing span: %s", err)

				return
			}

			vals[tracingSpanKeyStr] = string(js)
		}
	})
	rh.RegisterContextUnmarshaler(func(ctx context.Context, vals map[string]interface{}) context.Context {
		if js, ok := vals[tracingSpanKeyStr].(string); ok {
			tracer := opentracing.GlobalTracer()

			carrier := opentracing.TextMapCarrier{}
			if err := json.Unmarshal([]byte(js), &carrier); err != nil {
				log.Printf("ringhorizon: could not unmarshal tracing span: %s", err)

				return ctx
			}

			parentSpanContext, err := tracer.Extract(opentracing.TextMap, carrier)
			if err != nil && err != opentracing.ErrSpanContextNotFound {
				log.Printf("ringhorizon: could not extract tracing span: %s", err)

				return ctx
			}

			span := tracer.StartSpan("eventbus", ext.RPCServerOption(parentSpanContext))
			ctx = opentracing.ContextWithSpan(ctx, span)
		}

		return ctx
	})
}
