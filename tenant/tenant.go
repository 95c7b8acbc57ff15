// Package tenant implements schema-per-tenant lifecycle management: the
// tenant and domain data model stored in the public schema, and the
// orchestration that couples tenant rows to physical PostgreSQL schemas.
package tenant

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Tenant maps one customer to its isolated schema. The row itself always
// lives in the public schema.
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	SchemaName string    `json:"schema_name"`
	Name       string    `json:"name"`
	CreatedOn  time.Time `json:"created_on"` // immutable after first save

	// AutoCreateSchema makes saving a new tenant create its physical
	// schema and migrate it. Enabled by default.
	AutoCreateSchema bool `json:"auto_create_schema"`

	// AutoDropSchema makes deleting the tenant row drop its physical
	// schema with everything in it. Use with caution.
	AutoDropSchema bool `json:"auto_drop_schema"`
}

// New returns a tenant with the default lifecycle flags.
func New(schemaName, name string) *Tenant {
	return &Tenant{
		SchemaName:       schemaName,
		Name:             name,
		AutoCreateSchema: true,
	}
}

// Domain maps a hostname to its owning tenant. Domains are unique across
// the whole system regardless of case.
type Domain struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Domain   string    `json:"domain"`
}

// NormalizeDomain canonicalizes a domain string for storage and lookup:
// Unicode NFC normalization followed by lowercasing, so equality is
// case-insensitive and stable across composed/decomposed input.
func NormalizeDomain(domain string) string {
	return strings.ToLower(norm.NFC.String(domain))
}
