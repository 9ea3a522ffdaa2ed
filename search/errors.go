// Copyright 2025 Poiesic Systems
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


package search

import "errors"

var (
	// ErrRepositoryRequired is returned when an index repository is not provided.
	ErrRepositoryRequired = errors.New("index repository required")

	// ErrInvalidCursor is returned when a search is called with a malformed cursor.
	ErrInvalidCursor = errors.New("invalid search cursor")

	// ErrInvalidConcurrency is returned when the group fan-out limit is not positive.
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
)
