// Package cmdutil wires configuration, the database connection and the
// tenant lifecycle components for the CLI commands.
package cmdutil

import (
	"fmt"
	"os"

	"github.com/fatboystring/tenantkit/config"
	"github.com/fatboystring/tenantkit/dbschema"
	"github.com/fatboystring/tenantkit/migration/migrator"
	"github.com/fatboystring/tenantkit/tenant"
)

// Env bundles the components a management command operates on.
type Env struct {
	Cfg      *config.Config
	Conn     *dbschema.DatabaseConnection
	Store    *tenant.Store
	Service  *tenant.Service
	Migrator *migrator.Migrator // nil when no migrations directory exists
}

// Setup loads configuration, connects to the database and builds the
// tenant components. Callers must Close the returned Env.
func Setup(cfgFile string) (*Env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := dbschema.ConnectToDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	store := tenant.NewStore(conn)

	var m *migrator.Migrator
	if _, err := os.Stat(cfg.MigrationsDir); err == nil {
		m, err = migrator.NewFSMigrator(conn, os.DirFS(cfg.MigrationsDir))
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to load migrations from %s: %w", cfg.MigrationsDir, err)
		}
	}

	env := &Env{
		Cfg:   cfg,
		Conn:  conn,
		Store: store,
	}
	if m != nil {
		env.Migrator = m
		env.Service = tenant.NewService(conn, store, m)
	} else {
		env.Service = tenant.NewService(conn, store, nil)
	}

	return env, nil
}

// Close releases the database connection.
func (e *Env) Close() error {
	return e.Conn.Close()
}
