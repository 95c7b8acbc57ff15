package postgres

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/fatboystring/tenantkit/dbschema/types"
)

func TestSplitReference(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *types.ForeignKeyRef
	}{
		{
			name:     "simple table.column",
			input:    "users.id",
			expected: &types.ForeignKeyRef{Table: "users", Column: "id"},
		},
		{
			name:     "splits on the first dot only",
			input:    "users.some.dotted.column",
			expected: &types.ForeignKeyRef{Table: "users", Column: "some.dotted.column"},
		},
		{
			name:     "empty reference",
			input:    "",
			expected: nil,
		},
		{
			name:     "no dot",
			input:    "users",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(splitReference(tt.input), qt.DeepEquals, tt.expected)
		})
	}
}

func TestParseIndexColumns(t *testing.T) {
	c := qt.New(t)

	c.Assert(parseIndexColumns("id"), qt.DeepEquals, []string{"id"})
	c.Assert(parseIndexColumns("tenant_id,created_on"), qt.DeepEquals, []string{"tenant_id", "created_on"})
	c.Assert(parseIndexColumns(""), qt.IsNil)
}

func TestConstraintSet_KeyColumns(t *testing.T) {
	c := qt.New(t)
	set := newConstraintSet()

	// Multi-column primary key arrives one row per column, in order.
	set.addKeyColumn("orders_pkey", "tenant_id", "PRIMARY KEY", "")
	set.addKeyColumn("orders_pkey", "order_id", "PRIMARY KEY", "")
	set.addKeyColumn("orders_customer_fk", "customer_id", "FOREIGN KEY", "customers.id")
	set.addKeyColumn("orders_ref_unique", "ref", "UNIQUE", "")

	c.Assert(set.entries, qt.HasLen, 3)

	pk := set.entries["orders_pkey"]
	c.Assert(pk.Columns, qt.DeepEquals, []string{"tenant_id", "order_id"})
	c.Assert(pk.PrimaryKey, qt.IsTrue)
	c.Assert(pk.Unique, qt.IsTrue)
	c.Assert(pk.ForeignKey, qt.IsNil)

	fk := set.entries["orders_customer_fk"]
	c.Assert(fk.PrimaryKey, qt.IsFalse)
	c.Assert(fk.Unique, qt.IsFalse)
	c.Assert(fk.ForeignKey, qt.DeepEquals, &types.ForeignKeyRef{Table: "customers", Column: "id"})

	uq := set.entries["orders_ref_unique"]
	c.Assert(uq.Unique, qt.IsTrue)
	c.Assert(uq.PrimaryKey, qt.IsFalse)
}

func TestConstraintSet_ChecksDoNotPolluteKeyColumns(t *testing.T) {
	c := qt.New(t)
	set := newConstraintSet()

	set.addCheck("price_positive", "price")
	set.addCheck("price_positive", "currency")

	entry := set.entries["price_positive"]
	c.Assert(entry.Check, qt.IsTrue)
	c.Assert(entry.Columns, qt.DeepEquals, []string{"price", "currency"})

	// A check constraint sharing a name with a key constraint gains the
	// flag but keeps the key fetch's column order.
	set.addKeyColumn("mixed", "a", "UNIQUE", "")
	set.addCheck("mixed", "b")
	mixed := set.entries["mixed"]
	c.Assert(mixed.Check, qt.IsTrue)
	c.Assert(mixed.Unique, qt.IsTrue)
	c.Assert(mixed.Columns, qt.DeepEquals, []string{"a"})
}

func TestConstraintSet_IndexMergesWithBackingConstraint(t *testing.T) {
	c := qt.New(t)
	set := newConstraintSet()

	// Primary key recorded first, then the index that backs it under the
	// same name: one entry, union of flags, original column order.
	set.addKeyColumn("users_pkey", "id", "PRIMARY KEY", "")
	set.addIndex("users_pkey", []string{"id"}, true, true)

	// A hand-written unique index with its own name stays a separate entry.
	set.addIndex("users_email_idx", []string{"email"}, true, false)

	c.Assert(set.entries, qt.HasLen, 2)

	pk := set.entries["users_pkey"]
	c.Assert(pk.PrimaryKey, qt.IsTrue)
	c.Assert(pk.Unique, qt.IsTrue)
	c.Assert(pk.Index, qt.IsTrue)
	c.Assert(pk.Columns, qt.DeepEquals, []string{"id"})

	idx := set.entries["users_email_idx"]
	c.Assert(idx.Index, qt.IsTrue)
	c.Assert(idx.Unique, qt.IsTrue)
	c.Assert(idx.PrimaryKey, qt.IsFalse)
	c.Assert(idx.Check, qt.IsFalse)
}

func TestConstraintSet_PKUniqueAndCheckAreDistinctEntries(t *testing.T) {
	c := qt.New(t)
	set := newConstraintSet()

	set.addKeyColumn("items_pkey", "id", "PRIMARY KEY", "")
	set.addCheck("items_qty_check", "qty")
	set.addIndex("items_pkey", []string{"id"}, true, true)
	set.addIndex("items_sku_key", []string{"sku"}, true, false)

	c.Assert(set.entries, qt.HasLen, 3)
	c.Assert(set.entries["items_pkey"].PrimaryKey, qt.IsTrue)
	c.Assert(set.entries["items_qty_check"].Check, qt.IsTrue)
	c.Assert(set.entries["items_sku_key"].Unique, qt.IsTrue)
}

func TestNewReader_IgnoredTables(t *testing.T) {
	c := qt.New(t)

	r := NewReader(nil)
	_, ok := r.ignoredTables[MigrationsTable]
	c.Assert(ok, qt.IsTrue)

	r = NewReader(nil, WithIgnoredTables("audit_log"))
	_, ok = r.ignoredTables["audit_log"]
	c.Assert(ok, qt.IsTrue)
	_, ok = r.ignoredTables[MigrationsTable]
	c.Assert(ok, qt.IsFalse)
}
