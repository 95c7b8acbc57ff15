package migrator_test

import (
	"testing"
	"testing/fstest"

	qt "github.com/frankban/quicktest"

	"github.com/fatboystring/tenantkit/migration/migrator"
)

func TestParseMigrationFileName(t *testing.T) {
	c := qt.New(t)

	mf, err := migrator.ParseMigrationFileName("0000000042_add_orders.up.sql")
	c.Assert(err, qt.IsNil)
	c.Assert(mf.Version, qt.Equals, 42)
	c.Assert(mf.Name, qt.Equals, "add_orders")
	c.Assert(mf.Direction, qt.Equals, "up")

	mf, err = migrator.ParseMigrationFileName("1700000000_drop_orders.down.sql")
	c.Assert(err, qt.IsNil)
	c.Assert(mf.Direction, qt.Equals, "down")

	for _, name := range []string{
		"README.md",
		"42_add_orders.up.sql",               // version not zero-padded to 10 digits
		"0000000042_add_orders.sideways.sql", // bad direction
		"0000000042_add_orders.up.txt",
	} {
		_, err := migrator.ParseMigrationFileName(name)
		c.Assert(err, qt.IsNotNil, qt.Commentf("expected %q to be rejected", name))
	}
}

func TestRegisteredMigrationProvider_SortsByVersion(t *testing.T) {
	c := qt.New(t)

	p := migrator.NewRegisteredMigrationProvider(
		migrator.CreateMigrationFromSQL(3, "third", "SELECT 3", "SELECT 3"),
		migrator.CreateMigrationFromSQL(1, "first", "SELECT 1", "SELECT 1"),
	)
	p.Register(migrator.CreateMigrationFromSQL(2, "second", "SELECT 2", "SELECT 2"))

	migrations := p.Migrations()
	c.Assert(migrations, qt.HasLen, 3)
	c.Assert(migrations[0].Version, qt.Equals, 1)
	c.Assert(migrations[1].Version, qt.Equals, 2)
	c.Assert(migrations[2].Version, qt.Equals, 3)
}

func TestFSMigrationProvider_LoadsAndSorts(t *testing.T) {
	c := qt.New(t)

	fsys := fstest.MapFS{
		"0000000002_add_domains.up.sql":    &fstest.MapFile{Data: []byte("CREATE TABLE domains (id INT);")},
		"0000000002_add_domains.down.sql":  &fstest.MapFile{Data: []byte("DROP TABLE domains;")},
		"0000000001_add_tenants.up.sql":    &fstest.MapFile{Data: []byte("CREATE TABLE tenants (id INT);")},
		"0000000001_add_tenants.down.sql":  &fstest.MapFile{Data: []byte("DROP TABLE tenants;")},
		"notes.txt":                        &fstest.MapFile{Data: []byte("ignored")},
	}

	p, err := migrator.NewFSMigrationProvider(fsys)
	c.Assert(err, qt.IsNil)

	migrations := p.Migrations()
	c.Assert(migrations, qt.HasLen, 2)
	c.Assert(migrations[0].Version, qt.Equals, 1)
	c.Assert(migrations[0].Description, qt.Equals, "add_tenants")
	c.Assert(migrations[1].Version, qt.Equals, 2)
	c.Assert(migrations[1].Description, qt.Equals, "add_domains")
}
