// Package migrator applies versioned SQL migrations inside tenant schemas.
//
// Each schema carries its own schema_migrations bookkeeping table, so every
// tenant progresses through the same migration sequence independently.
// ApplyToSchema is the entry point the tenant lifecycle uses: it switches
// the connection's schema context, brings that schema up to date and
// restores the public context before returning.
package migrator

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
)

// Conn is the database surface migrations run against. A
// *dbschema.DatabaseConnection satisfies it.
type Conn interface {
	SchemaName() string
	SetSchemaChecked(ctx context.Context, name string) error
	SetSchemaToPublic(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTransaction(ctx context.Context) error
	CommitTransaction() error
	RollbackTransaction() error
}

// MigrationStatus represents the migration state of one schema.
type MigrationStatus struct {
	Schema            string `json:"schema"`
	CurrentVersion    int    `json:"current_version"`
	PendingMigrations []int  `json:"pending_migrations"`
	TotalMigrations   int    `json:"total_migrations"`
	HasPendingChanges bool   `json:"has_pending_changes"`
}

// Migrator applies migrations to the schema the connection is currently
// switched to.
type Migrator struct {
	conn              Conn
	migrationProvider MigrationProvider
	logger            *slog.Logger
}

// NewMigrator creates a new migrator with the given database connection.
func NewMigrator(conn Conn, provider MigrationProvider) *Migrator {
	return &Migrator{
		conn:              conn,
		migrationProvider: provider,
		logger:            slog.Default(),
	}
}

// NewFSMigrator creates a migrator that loads migrations from a filesystem
// following the NNNNNNNNNN_description.{up,down}.sql naming convention.
func NewFSMigrator(conn Conn, fsys fs.FS) (*Migrator, error) {
	provider, err := NewFSMigrationProvider(fsys)
	if err != nil {
		return nil, err
	}
	return NewMigrator(conn, provider), nil
}

// WithLogger returns a copy of the migrator using the given logger.
func (m *Migrator) WithLogger(l *slog.Logger) *Migrator {
	tmp := *m
	tmp.logger = l
	return &tmp
}

// MigrationProvider returns the migration provider.
func (m *Migrator) MigrationProvider() MigrationProvider {
	return m.migrationProvider
}

// ApplyToSchema migrates the named schema up to the latest version. The
// connection is switched to that schema for the duration and restored to
// the public schema on exit, even when migration fails; the migration error
// still propagates after the reset.
//
// The switch verifies the schema exists first. PostgreSQL accepts a search
// path naming a missing schema and silently resolves everything against
// public, which would apply tenant migrations to the public schema.
func (m *Migrator) ApplyToSchema(ctx context.Context, schemaName string) error {
	if err := m.conn.SetSchemaChecked(ctx, schemaName); err != nil {
		return err
	}

	migErr := m.MigrateUp(ctx)

	if err := m.conn.SetSchemaToPublic(ctx); err != nil {
		if migErr != nil {
			return migErr
		}
		return err
	}
	return migErr
}

// Initialize creates the schema_migrations table in the current schema if
// it does not exist. Idempotent; the bookkeeping table is per schema, so it
// runs again after every schema switch.
func (m *Migrator) Initialize(ctx context.Context) error {
	if _, err := m.conn.ExecContext(ctx, migrationsSchemaSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the current migration version of the current
// schema, 0 when no migrations are applied.
func (m *Migrator) GetCurrentVersion(ctx context.Context) (int, error) {
	if err := m.Initialize(ctx); err != nil {
		return 0, err
	}

	var version int
	row := m.conn.QueryRowContext(ctx, getVersionSQL)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, nil
}

// GetAppliedMigrations returns the applied migration versions in ascending order.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) ([]int, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	rows, err := m.conn.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []int
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied = append(applied, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration rows: %w", err)
	}

	return applied, nil
}

// GetPendingMigrations returns the pending migration versions in ascending order.
func (m *Migrator) GetPendingMigrations(ctx context.Context) ([]int, error) {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	var pending []int
	for _, migration := range m.migrationProvider.Migrations() {
		if migration.Version > currentVersion {
			pending = append(pending, migration.Version)
		}
	}

	sort.Ints(pending)
	return pending, nil
}

// GetMigrationStatus returns the migration status of the current schema.
func (m *Migrator) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	pendingMigrations, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return nil, err
	}

	return &MigrationStatus{
		Schema:            m.conn.SchemaName(),
		CurrentVersion:    currentVersion,
		PendingMigrations: pendingMigrations,
		TotalMigrations:   len(m.migrationProvider.Migrations()),
		HasPendingChanges: len(pendingMigrations) > 0,
	}, nil
}

// MigrateUp migrates the current schema up to the latest version. Each
// migration runs in its own transaction together with its bookkeeping row.
func (m *Migrator) MigrateUp(ctx context.Context) error {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}

	migrations := m.migrationProvider.Migrations()
	m.logger.Info("Migrating up",
		"schema", m.conn.SchemaName(), "currentVersion", currentVersion, "totalMigrations", len(migrations))

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}
		if err := m.applyOne(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}

func (m *Migrator) applyOne(ctx context.Context, migration *Migration) error {
	m.logger.Info("Applying migration",
		"schema", m.conn.SchemaName(), "version", migration.Version, "description", migration.Description)

	if err := m.conn.BeginTransaction(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
	}

	if err := migration.Up(ctx, m.conn); err != nil {
		_ = m.conn.RollbackTransaction()
		return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
	}

	if _, err := m.conn.ExecContext(ctx, recordMigrationSQL, migration.Version, migration.Description); err != nil {
		_ = m.conn.RollbackTransaction()
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := m.conn.CommitTransaction(); err != nil {
		return fmt.Errorf("failed to commit transaction for migration %d: %w", migration.Version, err)
	}

	return nil
}

// MigrateDown rolls the current schema back by one migration.
func (m *Migrator) MigrateDown(ctx context.Context) error {
	targetVersion, err := m.GetPreviousMigrationVersion(ctx)
	if err != nil {
		return err
	}
	return m.MigrateDownTo(ctx, targetVersion)
}

// MigrateDownTo rolls the current schema back to the given target version.
func (m *Migrator) MigrateDownTo(ctx context.Context, targetVersion int) error {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}

	if targetVersion >= currentVersion {
		m.logger.Info("Already at or below target version",
			"schema", m.conn.SchemaName(), "targetVersion", targetVersion, "currentVersion", currentVersion)
		return nil
	}

	migrations := make([]*Migration, len(m.migrationProvider.Migrations()))
	copy(migrations, m.migrationProvider.Migrations())
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version > migrations[j].Version
	})

	for _, migration := range migrations {
		if migration.Version <= targetVersion || migration.Version > currentVersion {
			continue
		}

		m.logger.Info("Rolling back migration",
			"schema", m.conn.SchemaName(), "version", migration.Version, "description", migration.Description)

		if err := m.conn.BeginTransaction(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Down(ctx, m.conn); err != nil {
			_ = m.conn.RollbackTransaction()
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, err)
		}

		if _, err := m.conn.ExecContext(ctx, deleteMigrationSQL, migration.Version); err != nil {
			_ = m.conn.RollbackTransaction()
			return fmt.Errorf("failed to record migration reversion %d: %w", migration.Version, err)
		}

		if err := m.conn.CommitTransaction(); err != nil {
			return fmt.Errorf("failed to commit transaction for migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetPreviousMigrationVersion finds the migration version preceding the
// current one. Returns -1 and an error when no previous migration exists.
func (m *Migrator) GetPreviousMigrationVersion(ctx context.Context) (int, error) {
	currentVersion, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return -1, err
	}
	if currentVersion == 0 {
		return -1, fmt.Errorf("no previous migrations exist")
	}

	previousVersion := 0
	for _, migration := range m.migrationProvider.Migrations() {
		if migration.Version >= currentVersion {
			break
		}
		previousVersion = migration.Version
	}

	return previousVersion, nil
}
