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

// Package uuid generates the string identities used for aggregates, commands
// and schedules. IDs are canonical lowercase UUID strings.
package uuid

import (
	"github.com/google/uuid"
)

// Nil is the empty ID.
const Nil = ""

// New creates a new random ID.
func New() string {
	return uuid.New().String()
}

// NewOrdered creates a new ID that sorts after all IDs created before it,
// which keeps keys of ordered stores such as badger local.
func NewOrdered() string {
	id, err := uuid.NewV7()
	if err != nil {
		return New()
	}

	return id.String()
}

// Parse parses an ID into its canonical form, or returns an error.
func Parse(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Nil, err
	}

	return id.String(), nil
}

// MustParse parses an ID into its canonical form, or panics.
func MustParse(s string) string {
	return uuid.MustParse(s).String()
}
