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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidIndexRecord indicates an IndexRecord failed validation.
	ErrInvalidIndexRecord = errors.New("invalid index record")

	// ErrEmptyOwner indicates the Owner field is empty.
	ErrEmptyOwner = errors.New("owner cannot be empty")

	// ErrInvalidEntityType indicates an unknown EntityType value.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrInvalidField indicates an unknown Field value.
	ErrInvalidField = errors.New("invalid field")

	// ErrInvalidScope indicates a Scope references unknown values.
	ErrInvalidScope = errors.New("invalid scope")
)
