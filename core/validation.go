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

import (
	"fmt"
)

// ValidateIndexRecord validates an IndexRecord according to domain rules.
//
// Validation rules:
//   - Owner must not be empty
//   - Type and Field must be known values
//
// NOT validated:
//   - Terms (an empty set is representable, callers decide whether to store it)
//   - ID (0 means not yet assigned by the sequence)
//   - UltimateOwner (optional for top-level entities)
func ValidateIndexRecord(record *IndexRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidIndexRecord)
	}

	if record.Owner == "" {
		return fmt.Errorf("%w: %w", ErrInvalidIndexRecord, ErrEmptyOwner)
	}

	if err := ValidateEntityType(record.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndexRecord, err)
	}

	if err := ValidateField(record.Field); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIndexRecord, err)
	}

	return nil
}

// ValidateEntityType validates that an EntityType has a known value.
func ValidateEntityType(entityType EntityType) error {
	if !entityType.Valid() {
		return fmt.Errorf("%w: value %q", ErrInvalidEntityType, entityType)
	}
	return nil
}

// ValidateField validates that a Field has a known value.
func ValidateField(field Field) error {
	if !field.Valid() {
		return fmt.Errorf("%w: value %q", ErrInvalidField, field)
	}
	return nil
}

// ValidateScope validates the optional parts of a Scope.
// Empty Type and Field are valid and mean "any".
func ValidateScope(scope Scope) error {
	if scope.Type != "" && !scope.Type.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidScope, ValidateEntityType(scope.Type))
	}
	if scope.Field != "" && !scope.Field.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidScope, ValidateField(scope.Field))
	}
	return nil
}

// Validate is shorthand for ValidateScope(s).
func (s Scope) Validate() error {
	return ValidateScope(s)
}
