package tenant

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a tenant or domain lookup matches no row.
var ErrNotFound = errors.New("tenant not found")

// ErrIntegrityViolation wraps storage-layer uniqueness failures, e.g. a
// duplicate schema name or domain.
var ErrIntegrityViolation = errors.New("integrity violation")

// ErrSchemaAlreadyExists is returned when creating a schema that is already
// present and the caller did not ask for the existence short-circuit.
var ErrSchemaAlreadyExists = errors.New("schema already exists")

// ContextViolationError reports a tenant mutation attempted while the
// connection is switched to the wrong schema. The operation is rejected
// before any row or schema is touched.
type ContextViolationError struct {
	Op            string
	CurrentSchema string
	Allowed       []string
}

func (e *ContextViolationError) Error() string {
	return fmt.Sprintf("cannot %s tenant from schema context %q (allowed: %v)",
		e.Op, e.CurrentSchema, e.Allowed)
}

// MigrationError wraps a failure from the migration collaborator during
// schema creation. The schema and tenant row created in the same operation
// are rolled back before this surfaces.
type MigrationError struct {
	SchemaName string
	Err        error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("failed to migrate schema %q: %v", e.SchemaName, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
