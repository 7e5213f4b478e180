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

package httputils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	rh "github.com/looplab/ringhorizon"
	"github.com/looplab/ringhorizon/eventstore/memory"
	"github.com/looplab/ringhorizon/mocks"
	"github.com/looplab/ringhorizon/uuid"
)

func TestHistoryHandler(t *testing.T) {
	store := memory.NewEventStore()
	ctx := context.Background()
	id := uuid.New()
	timestamp := time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

	var saved []rh.Event

	for i, content := range []string{"a", "b", "c"} {
		e := rh.NewEvent(mocks.EventType, &mocks.EventData{Content: content}, timestamp,
			rh.ForAggregate(mocks.AggregateType, id, i))
		if err := store.Save(ctx, []rh.Event{e}, i); err != nil {
			t.Fatal("there should be no error:", err)
		}

		saved = append(saved, e)
	}

	h := HistoryHandler(store)

	cases := map[string]struct {
		url      string
		method   string
		status   int
		expected []rh.Event
	}{
		"all":          {"/events/" + id, http.MethodGet, http.StatusOK, saved},
		"range":        {"/events/" + id + "?from=1&to=1", http.MethodGet, http.StatusOK, saved[1:2]},
		"open end":     {"/events/" + id + "?from=1", http.MethodGet, http.StatusOK, saved[1:]},
		"unknown":      {"/events/" + uuid.New(), http.MethodGet, http.StatusOK, []rh.Event{}},
		"inverted":     {"/events/" + id + "?from=2&to=1", http.MethodGet, http.StatusBadRequest, nil},
		"bad range":    {"/events/" + id + "?from=x", http.MethodGet, http.StatusBadRequest, nil},
		"missing id":   {"/events/", http.MethodGet, http.StatusBadRequest, nil},
		"wrong method": {"/events/" + id, http.MethodPost, http.StatusMethodNotAllowed, nil},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, tc.url, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if w.Code != tc.status {
				t.Fatal("the status should be correct:", w.Code, w.Body.String())
			}

			if tc.expected == nil {
				return
			}

			var items []json.RawMessage
			if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
				t.Fatal("there should be no error:", err)
			}

			events := make([]rh.Event, 0, len(items))

			for _, b := range items {
				e, _, err := codec.UnmarshalEvent(ctx, b)
				if err != nil {
					t.Fatal("there should be no error:", err)
				}

				events = append(events, e)
			}

			if !rh.CompareEventSlices(events, tc.expected) {
				t.Error("the events should be correct:", events)
			}
		})
	}
}
