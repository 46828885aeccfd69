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


package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStoreClosed indicates that the store has been closed.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidRecord indicates a record failed pre-write validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrFieldMissing indicates a required field is empty.
	ErrFieldMissing = errors.New("required field is empty")

	// ErrFieldTooLong indicates a field exceeds its declared ceiling.
	ErrFieldTooLong = errors.New("field exceeds maximum length")
)

// FieldError reports which field violated which ceiling. It wraps either
// ErrFieldMissing or ErrFieldTooLong so callers can classify with errors.Is.
type FieldError struct {
	Field string
	Len   int
	Max   int

	reason error
}

func (e *FieldError) Error() string {
	if errors.Is(e.reason, ErrFieldMissing) {
		return fmt.Sprintf("field %s: %s", e.Field, e.reason)
	}
	return fmt.Sprintf("field %s: %s (%d > %d)", e.Field, e.reason, e.Len, e.Max)
}

func (e *FieldError) Unwrap() error {
	return e.reason
}

func missingField(field string) error {
	return &FieldError{Field: field, reason: ErrFieldMissing}
}

func tooLongField(field string, length, max int) error {
	return &FieldError{Field: field, Len: length, Max: max, reason: ErrFieldTooLong}
}
