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

package ringhorizon

import (
	"context"
	"testing"
)

type testContextKey int

const testContextValueKey testContextKey = iota

func init() {
	RegisterContextMarshaler(func(ctx context.Context, vals map[string]interface{}) {
		if v, ok := ctx.Value(testContextValueKey).(string); ok {
			vals["test_value"] = v
		}
	})
	RegisterContextUnmarshaler(func(ctx context.Context, vals map[string]interface{}) context.Context {
		if v, ok := vals["test_value"].(string); ok {
			return context.WithValue(ctx, testContextValueKey, v)
		}

		return ctx
	})
}

func TestMarshalContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), testContextValueKey, "value")

	vals := MarshalContext(ctx)
	if vals["test_value"] != "value" {
		t.Error("the marshaled value should be correct:", vals)
	}

	if len(MarshalContext(context.Background())) != 0 {
		t.Error("there should be no marshaled values")
	}
}

func TestUnmarshalContext(t *testing.T) {
	ctx := UnmarshalContext(context.Background(), map[string]interface{}{
		"test_value": "value",
	})
	if v, _ := ctx.Value(testContextValueKey).(string); v != "value" {
		t.Error("the unmarshaled value should be correct:", v)
	}

	ctx = UnmarshalContext(context.Background(), nil)
	if ctx.Value(testContextValueKey) != nil {
		t.Error("there should be no value")
	}
}
