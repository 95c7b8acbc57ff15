package schemaname_test

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/fatboystring/tenantkit/core/schemaname"
)

func TestValidate(t *testing.T) {
	valid := []string{
		"tenant1",
		"a",
		"customer_42",
		"Tenant1", // lowercased before the character check
		strings.Repeat("a", 63),
	}

	for _, name := range valid {
		t.Run("valid/"+name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(schemaname.Validate(name), qt.IsNil)
		})
	}

	invalid := []struct {
		name   string
		value  string
		reason string
	}{
		{name: "empty", value: "", reason: "empty"},
		{name: "too long", value: strings.Repeat("a", 64), reason: "exceeds 63 bytes"},
		{name: "pg prefix", value: "pg_temp", reason: "reserved"},
		{name: "injection", value: "DROP TABLE x", reason: "disallowed character"},
		{name: "public", value: "public", reason: "reserved"},
		{name: "information schema", value: "information_schema", reason: "reserved"},
		{name: "hyphen", value: "tenant-1", reason: "disallowed character"},
		{name: "quote", value: `x"; DROP SCHEMA public`, reason: "disallowed character"},
	}

	for _, tt := range invalid {
		t.Run("invalid/"+tt.name, func(t *testing.T) {
			c := qt.New(t)
			err := schemaname.Validate(tt.value)
			c.Assert(err, qt.IsNotNil)
			var nameErr *schemaname.InvalidNameError
			c.Assert(err, qt.ErrorAs, &nameErr)
			c.Assert(err.Error(), qt.Contains, tt.reason)
		})
	}
}

func TestCreateSchemaSQL(t *testing.T) {
	c := qt.New(t)

	sql, err := schemaname.CreateSchemaSQL("tenant1")
	c.Assert(err, qt.IsNil)
	c.Assert(sql, qt.Equals, `CREATE SCHEMA "tenant1"`)

	_, err = schemaname.CreateSchemaSQL("pg_catalog")
	c.Assert(err, qt.IsNotNil)
}

func TestDropSchemaSQL(t *testing.T) {
	c := qt.New(t)

	sql, err := schemaname.DropSchemaSQL("tenant1")
	c.Assert(err, qt.IsNil)
	c.Assert(sql, qt.Equals, `DROP SCHEMA "tenant1" CASCADE`)

	_, err = schemaname.DropSchemaSQL("")
	c.Assert(err, qt.IsNotNil)
}

func TestSearchPathSQL(t *testing.T) {
	tests := []struct {
		name     string
		schema   string
		expected string
	}{
		{
			name:     "tenant schema keeps public as fallback",
			schema:   "tenant1",
			expected: `SET search_path TO "tenant1", "public"`,
		},
		{
			name:     "public schema stands alone",
			schema:   "public",
			expected: `SET search_path TO "public"`,
		},
		{
			name:     "mixed case is normalized",
			schema:   "Tenant1",
			expected: `SET search_path TO "tenant1", "public"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			sql, err := schemaname.SearchPathSQL(tt.schema)
			c.Assert(err, qt.IsNil)
			c.Assert(sql, qt.Equals, tt.expected)
		})
	}

	c := qt.New(t)
	_, err := schemaname.SearchPathSQL("bad name")
	c.Assert(err, qt.IsNotNil)
}

func TestQuoteLiteral(t *testing.T) {
	c := qt.New(t)
	c.Assert(schemaname.QuoteLiteral("tenant1"), qt.Equals, "'tenant1'")
}
