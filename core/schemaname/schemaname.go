// Package schemaname validates PostgreSQL schema identifiers and builds the
// DDL statements that embed them.
//
// Schema names cannot be bound as statement parameters, so every place that
// splices one into SQL text must funnel through this package. Validate is the
// single injection guard; the SQL builders below refuse to produce a
// statement for a name that does not pass it.
package schemaname

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// PublicSchema is the default shared schema that holds cross-tenant metadata.
const PublicSchema = "public"

// MaxLength is the PostgreSQL identifier length limit in bytes.
const MaxLength = 63

// reservedNames are schema names that may never be used for a tenant.
var reservedNames = map[string]struct{}{
	PublicSchema:         {},
	"information_schema": {},
}

// reservedPrefixes are identifier prefixes PostgreSQL reserves for itself.
var reservedPrefixes = []string{"pg_"}

// InvalidNameError reports a schema name that failed validation.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid schema name %q: %s", e.Name, e.Reason)
}

// Normalize lowercases a candidate schema name. Validation is
// case-insensitive, but names are always stored and used in lowercase form.
func Normalize(name string) string {
	return strings.ToLower(name)
}

// Validate checks a candidate schema name against PostgreSQL identifier
// rules and the reserved-name list. It must be called before the name is
// spliced into any SQL text.
func Validate(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name, Reason: "name is empty"}
	}
	if len(name) > MaxLength {
		return &InvalidNameError{Name: name, Reason: fmt.Sprintf("name exceeds %d bytes", MaxLength)}
	}

	lower := Normalize(name)
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return &InvalidNameError{Name: name, Reason: fmt.Sprintf("disallowed character %q", c)}
	}

	if _, ok := reservedNames[lower]; ok {
		return &InvalidNameError{Name: name, Reason: "name is reserved"}
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return &InvalidNameError{Name: name, Reason: fmt.Sprintf("prefix %q is reserved", prefix)}
		}
	}

	return nil
}

// CreateSchemaSQL builds a CREATE SCHEMA statement for the given name.
func CreateSchemaSQL(name string) (string, error) {
	if err := Validate(name); err != nil {
		return "", err
	}
	return "CREATE SCHEMA " + pq.QuoteIdentifier(Normalize(name)), nil
}

// DropSchemaSQL builds a DROP SCHEMA ... CASCADE statement for the given
// name. The cascade removes every object contained in the schema.
func DropSchemaSQL(name string) (string, error) {
	if err := Validate(name); err != nil {
		return "", err
	}
	return "DROP SCHEMA " + pq.QuoteIdentifier(Normalize(name)) + " CASCADE", nil
}

// SearchPathSQL builds a SET search_path statement placing the given schema
// first with the public schema as fallback, so shared tables stay visible.
// When name is the public schema itself the search path is public alone.
func SearchPathSQL(name string) (string, error) {
	if err := ValidateOrPublic(name); err != nil {
		return "", err
	}
	lower := Normalize(name)
	if lower == PublicSchema {
		return "SET search_path TO " + pq.QuoteIdentifier(PublicSchema), nil
	}
	return "SET search_path TO " + pq.QuoteIdentifier(lower) + ", " + pq.QuoteIdentifier(PublicSchema), nil
}

// ValidateOrPublic accepts the public schema name in addition to any name
// that passes Validate. The public schema is reserved for tenants but is a
// legitimate search-path target.
func ValidateOrPublic(name string) error {
	if Normalize(name) == PublicSchema {
		return nil
	}
	return Validate(name)
}

// QuoteLiteral quotes a validated schema name for use as a string literal in
// catalog queries that cannot bind it as a parameter.
func QuoteLiteral(name string) string {
	return pq.QuoteLiteral(Normalize(name))
}
