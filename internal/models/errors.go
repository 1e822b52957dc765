package models

import (
	"errors"
	"fmt"

	"github.com/diewo77/medcrm/validation"
)

// ErrNotFound is matched by every NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// InvalidEntityError reports a construction-time invariant violation.
type InvalidEntityError struct {
	Entity string // "deal", "customer", ...
	ID     string // may be empty for records that were never saved
	Field  string // json name of the offending field
	Rule   string // failed rule, e.g. "gte", "enum", "max"

	// Violations holds every failed rule when the error came from a
	// validation pass; Field and Rule repeat the first one.
	Violations validation.Violations
}

// FromViolations returns nil when v is empty, otherwise an
// *InvalidEntityError reporting the first violation and carrying all of them.
func FromViolations(entity, id string, v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	first := v.First()
	return &InvalidEntityError{Entity: entity, ID: id, Field: first.Field, Rule: first.Rule, Violations: v}
}

func (e *InvalidEntityError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid %s %s: field %s failed %s", e.Entity, e.ID, e.Field, e.Rule)
	}
	return fmt.Sprintf("invalid %s: field %s failed %s", e.Entity, e.Field, e.Rule)
}

// NotFoundError is a lookup miss on a referenced record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is (or wraps) a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
