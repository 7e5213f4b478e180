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
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"

	rh "github.com/looplab/ringhorizon"
)

// HistoryHandler returns the stored events of one aggregate as a JSON array.
// The last part of the path is the aggregate ID. The optional query
// parameters "from" and "to" select a version range.
func HistoryHandler(store rh.EventStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "unsuported method: "+r.Method, http.StatusMethodNotAllowed)

			return
		}

		_, id := path.Split(r.URL.Path)
		if id == "" {
			http.Error(w, "missing aggregate ID", http.StatusBadRequest)

			return
		}

		var (
			events []rh.Event
			err    error
		)

		q := r.URL.Query()
		if q.Has("from") || q.Has("to") {
			from, to, perr := versionRange(q.Get("from"), q.Get("to"))
			if perr != nil {
				http.Error(w, "could not parse version range: "+perr.Error(), http.StatusBadRequest)

				return
			}

			events, err = store.LoadRange(r.Context(), id, from, to)
		} else {
			events, err = store.Load(r.Context(), id)
		}

		if errors.Is(err, rh.ErrInvalidVersionRange) {
			http.Error(w, "invalid version range", http.StatusBadRequest)

			return
		} else if err != nil {
			http.Error(w, "could not load events: "+err.Error(), http.StatusInternalServerError)

			return
		}

		items := make([]json.RawMessage, 0, len(events))

		for _, event := range events {
			b, err := codec.MarshalEvent(r.Context(), event)
			if err != nil {
				http.Error(w, "could not encode event: "+err.Error(), http.StatusInternalServerError)

				return
			}

			items = append(items, b)
		}

		b, err := json.Marshal(items)
		if err != nil {
			http.Error(w, "could not encode result: "+err.Error(), http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	})
}

// versionRange parses an optional range, an open end loads to the latest
// version.
func versionRange(from, to string) (int, int, error) {
	var (
		f   int
		t   = int(^uint(0) >> 1)
		err error
	)

	if from != "" {
		if f, err = strconv.Atoi(from); err != nil {
			return 0, 0, err
		}
	}

	if to != "" {
		if t, err = strconv.Atoi(to); err != nil {
			return 0, 0, err
		}
	}

	return f, t, nil
}
