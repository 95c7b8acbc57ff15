package migrator

import (
	"fmt"
	"io/fs"
	"maps"
	"regexp"
	"slices"
	"sort"
	"strconv"
)

// MigrationProvider provides a list of migrations.
type MigrationProvider interface {
	// Migrations provides a list of migrations sorted by version in ascending order
	Migrations() []*Migration
}

// RegisteredMigrationProvider is a simple in-memory implementation of MigrationProvider.
type RegisteredMigrationProvider struct {
	migrations []*Migration
	sorted     bool
}

// NewRegisteredMigrationProvider creates a new in-memory migration provider
// with the given migrations.
func NewRegisteredMigrationProvider(migrations ...*Migration) *RegisteredMigrationProvider {
	return &RegisteredMigrationProvider{
		migrations: migrations,
	}
}

// Register adds a migration to the provider.
func (p *RegisteredMigrationProvider) Register(migration *Migration) {
	p.migrations = append(p.migrations, migration)
	p.sorted = false
}

// Migrations returns the list of migrations sorted by version in ascending order.
func (p *RegisteredMigrationProvider) Migrations() []*Migration {
	p.maybeSort()
	return p.migrations
}

func (p *RegisteredMigrationProvider) maybeSort() {
	if p.sorted {
		return
	}
	sortMigrations(p.migrations)
	p.sorted = true
}

// MigrationFile is a parsed migration file name.
type MigrationFile struct {
	Version   int
	Name      string
	Direction string
}

var migrationFileRe = regexp.MustCompile(`^(\d{10})_([A-Za-z0-9_-]+)\.(up|down)\.sql$`)

// ParseMigrationFileName parses a migration file name of the form
// NNNNNNNNNN_description.up.sql / NNNNNNNNNN_description.down.sql.
func ParseMigrationFileName(name string) (*MigrationFile, error) {
	m := migrationFileRe.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("not a migration file name: %s", name)
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid migration version in %s: %w", name, err)
	}
	return &MigrationFile{
		Version:   version,
		Name:      m[2],
		Direction: m[3],
	}, nil
}

// FSMigrationProvider is a migration provider that loads migrations from a
// filesystem following the NNNNNNNNNN_description.{up,down}.sql convention.
type FSMigrationProvider struct {
	fsys       fs.FS
	migrations []*Migration
}

// NewFSMigrationProvider creates a new filesystem-based migration provider.
// It scans the provided filesystem for migration files and validates that
// all migrations have both up and down files.
func NewFSMigrationProvider(fsys fs.FS) (*FSMigrationProvider, error) {
	p := &FSMigrationProvider{fsys: fsys}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Migrations returns the migrations loaded from the filesystem, sorted by
// version in ascending order.
func (p *FSMigrationProvider) Migrations() []*Migration {
	return p.migrations
}

func (p *FSMigrationProvider) load() error {
	migrationsMap := make(map[int]*Migration) // version -> migration
	hasUp := make(map[int]bool)
	hasDown := make(map[int]bool)

	err := fs.WalkDir(p.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		migrationFile, err := ParseMigrationFileName(d.Name())
		if err != nil {
			// Skip files that don't match the migration pattern.
			return nil
		}

		if _, exists := migrationsMap[migrationFile.Version]; !exists {
			migrationsMap[migrationFile.Version] = &Migration{
				Version:     migrationFile.Version,
				Description: migrationFile.Name,
				Up:          NoopMigrationFunc,
				Down:        NoopMigrationFunc,
			}
		}

		switch migrationFile.Direction {
		case "up":
			migrationsMap[migrationFile.Version].Up = MigrationFuncFromSQLFilename(path, p.fsys)
			hasUp[migrationFile.Version] = true
		case "down":
			migrationsMap[migrationFile.Version].Down = MigrationFuncFromSQLFilename(path, p.fsys)
			hasDown[migrationFile.Version] = true
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan migrations directory: %w", err)
	}

	var incompleteMigrations []int
	for version := range migrationsMap {
		if !hasUp[version] || !hasDown[version] {
			incompleteMigrations = append(incompleteMigrations, version)
		}
	}
	if len(incompleteMigrations) > 0 {
		sort.Ints(incompleteMigrations)
		return fmt.Errorf("incomplete migrations found (missing up or down files): %v", incompleteMigrations)
	}

	p.migrations = slices.Collect(maps.Values(migrationsMap))
	sortMigrations(p.migrations)

	return nil
}

func sortMigrations(migrations []*Migration) {
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
}
