package migrator_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"testing/fstest"

	qt "github.com/frankban/quicktest"

	"github.com/fatboystring/tenantkit/dbschema"
	"github.com/fatboystring/tenantkit/migration/migrator"
)

// fakeConn implements migrator.Conn over an in-memory schema set. Only the
// methods ApplyToSchema reaches before migrating are live.
type fakeConn struct {
	schema   string
	schemas  map[string]bool
	executed []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{schema: "public", schemas: map[string]bool{"public": true}}
}

func (f *fakeConn) SchemaName() string { return f.schema }

func (f *fakeConn) SetSchemaChecked(_ context.Context, name string) error {
	if !f.schemas[name] {
		return fmt.Errorf("%w: %s", dbschema.ErrSchemaDoesNotExist, name)
	}
	f.schema = name
	return nil
}

func (f *fakeConn) SetSchemaToPublic(_ context.Context) error {
	f.schema = "public"
	return nil
}

func (f *fakeConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.executed = append(f.executed, query)
	return nil, nil
}

func (f *fakeConn) QueryContext(_ context.Context, _ string, _ ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeConn) QueryRowContext(_ context.Context, _ string, _ ...any) *sql.Row {
	return nil
}

func (f *fakeConn) BeginTransaction(_ context.Context) error { return errors.New("not implemented") }
func (f *fakeConn) CommitTransaction() error                 { return errors.New("not implemented") }
func (f *fakeConn) RollbackTransaction() error               { return errors.New("not implemented") }

func TestNewMigrator(t *testing.T) {
	c := qt.New(t)

	provider := migrator.NewRegisteredMigrationProvider()

	m := migrator.NewMigrator(nil, provider)
	c.Assert(m, qt.IsNotNil)
	c.Assert(m.MigrationProvider(), qt.Equals, provider)
}

func TestNewFSMigrator_Success(t *testing.T) {
	c := qt.New(t)

	fsys := fstest.MapFS{
		"0000000001_create_customers.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE customers (id SERIAL PRIMARY KEY);"),
		},
		"0000000001_create_customers.down.sql": &fstest.MapFile{
			Data: []byte("DROP TABLE customers;"),
		},
	}

	m, err := migrator.NewFSMigrator(nil, fsys)
	c.Assert(err, qt.IsNil)
	c.Assert(m, qt.IsNotNil)
	c.Assert(m.MigrationProvider().Migrations(), qt.HasLen, 1)
}

func TestNewFSMigrator_IncompleteMigration(t *testing.T) {
	c := qt.New(t)

	// Missing down file.
	fsys := fstest.MapFS{
		"0000000001_create_customers.up.sql": &fstest.MapFile{
			Data: []byte("CREATE TABLE customers (id SERIAL PRIMARY KEY);"),
		},
	}

	m, err := migrator.NewFSMigrator(nil, fsys)
	c.Assert(err, qt.IsNotNil)
	c.Assert(m, qt.IsNil)
	c.Assert(err.Error(), qt.Contains, "incomplete migrations found")
}

func TestMigrator_ApplyToSchema_MissingSchema(t *testing.T) {
	c := qt.New(t)

	conn := newFakeConn()
	migration := migrator.CreateMigrationFromSQL(1, "create_orders",
		"CREATE TABLE orders (id SERIAL PRIMARY KEY)", "DROP TABLE orders")
	m := migrator.NewMigrator(conn, migrator.NewRegisteredMigrationProvider(migration))

	err := m.ApplyToSchema(context.Background(), "missing")
	c.Assert(err, qt.ErrorIs, dbschema.ErrSchemaDoesNotExist)

	// Nothing ran and the context never left public; without the existence
	// check the migrations would land in the public schema.
	c.Assert(conn.executed, qt.HasLen, 0)
	c.Assert(conn.SchemaName(), qt.Equals, "public")
}

func TestMigrator_WithLogger(t *testing.T) {
	c := qt.New(t)

	provider := migrator.NewRegisteredMigrationProvider()
	m := migrator.NewMigrator(nil, provider)

	m2 := m.WithLogger(slog.Default())
	c.Assert(m2, qt.IsNotNil)
	c.Assert(m2, qt.Not(qt.Equals), m)
}

func TestSplitSQLStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "two statements",
			input:    "CREATE TABLE a (id INT); CREATE TABLE b (id INT);",
			expected: []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
		{
			name:     "semicolon inside string literal",
			input:    "INSERT INTO t (v) VALUES ('a;b'); DELETE FROM t",
			expected: []string{"INSERT INTO t (v) VALUES ('a;b')", "DELETE FROM t"},
		},
		{
			name:     "semicolon inside quoted identifier",
			input:    `CREATE TABLE "odd;name" (id INT)`,
			expected: []string{`CREATE TABLE "odd;name" (id INT)`},
		},
		{
			name:  "semicolon inside dollar-quoted body",
			input: "CREATE FUNCTION f() RETURNS void AS $$ BEGIN NULL; END $$ LANGUAGE plpgsql; SELECT 1",
			expected: []string{
				"CREATE FUNCTION f() RETURNS void AS $$ BEGIN NULL; END $$ LANGUAGE plpgsql",
				"SELECT 1",
			},
		},
		{
			name:     "semicolon inside line comment",
			input:    "SELECT 1 -- not a separator;\n; SELECT 2",
			expected: []string{"SELECT 1 -- not a separator;", "SELECT 2"},
		},
		{
			name:     "empty statements are dropped",
			input:    ";;  ;",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(migrator.SplitSQLStatements(tt.input), qt.DeepEquals, tt.expected)
		})
	}
}
