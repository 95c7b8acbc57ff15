package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fatboystring/tenantkit/core/schemaname"
)

// MigrationRunner applies migrations inside a named schema. It is expected
// to leave the connection's schema context on public when it returns.
type MigrationRunner interface {
	ApplyToSchema(ctx context.Context, schemaName string) error
}

// TenantStore is the row-persistence surface the lifecycle service needs.
type TenantStore interface {
	Insert(ctx context.Context, t *Tenant) error
	Update(ctx context.Context, t *Tenant) error
	Delete(ctx context.Context, t *Tenant) error
}

// Service couples tenant row lifecycle to physical schema lifecycle. It is
// the only component that issues CREATE SCHEMA or DROP SCHEMA; every
// mutation is guarded by a schema-context check so code running under the
// wrong search path cannot corrupt tenant metadata.
type Service struct {
	conn     Conn
	store    TenantStore
	migrator MigrationRunner
	logger   *slog.Logger
}

// NewService creates a lifecycle service. The migrator may be nil, in which
// case schemas are created empty.
func NewService(conn Conn, store TenantStore, migrator MigrationRunner) *Service {
	return &Service{
		conn:     conn,
		store:    store,
		migrator: migrator,
		logger:   slog.Default(),
	}
}

// WithLogger returns a copy of the service using the given logger.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	tmp := *s
	tmp.logger = l
	return &tmp
}

// CreateTenant persists a new tenant and, when AutoCreateSchema is set,
// creates and migrates its physical schema. If anything fails after the row
// is inserted the row is deleted again and the original error returns; a
// tenant row never outlives a failed schema creation.
//
// New tenants may only be created from the public schema context.
func (s *Service) CreateTenant(ctx context.Context, t *Tenant) error {
	if current := s.conn.SchemaName(); current != schemaname.PublicSchema {
		return &ContextViolationError{Op: "create", CurrentSchema: current,
			Allowed: []string{schemaname.PublicSchema}}
	}
	if err := schemaname.ValidateOrPublic(t.SchemaName); err != nil {
		return err
	}
	// The physical schema is created lowercase; the stored row must match
	// it or later lookups and context checks compare different names.
	t.SchemaName = schemaname.Normalize(t.SchemaName)

	if err := s.store.Insert(ctx, t); err != nil {
		return err
	}

	// The public tenant rides on the already-existing public schema.
	if !t.AutoCreateSchema || t.SchemaName == schemaname.PublicSchema {
		return nil
	}

	if _, err := s.CreateSchema(ctx, t, true, true); err != nil {
		s.compensateFailedCreate(ctx, t)
		return err
	}
	return nil
}

// compensateFailedCreate undoes a partially created tenant: the physical
// schema is dropped if present and the row is removed. Failures here are
// logged, not returned, so the original creation error stays visible.
func (s *Service) compensateFailedCreate(ctx context.Context, t *Tenant) {
	if err := s.dropPhysicalSchema(ctx, t.SchemaName); err != nil {
		s.logger.Error("failed to drop schema while rolling back tenant creation",
			"schema", t.SchemaName, "error", err)
	}
	if err := s.store.Delete(ctx, t); err != nil {
		s.logger.Error("failed to delete tenant row while rolling back tenant creation",
			"schema", t.SchemaName, "error", err)
	}
}

// UpdateTenant persists changes to an existing tenant. Allowed only from
// the tenant's own schema context or public.
func (s *Service) UpdateTenant(ctx context.Context, t *Tenant) error {
	if err := s.checkOwnOrPublicContext("update", t); err != nil {
		return err
	}
	return s.store.Update(ctx, t)
}

// DeleteTenant removes the tenant row. When the physical schema exists and
// the tenant has AutoDropSchema set, or forceDrop is given, the schema is
// dropped with everything in it before the row goes. Allowed only from the
// tenant's own schema context or public.
func (s *Service) DeleteTenant(ctx context.Context, t *Tenant, forceDrop bool) error {
	if err := s.checkOwnOrPublicContext("delete", t); err != nil {
		return err
	}

	if t.SchemaName != schemaname.PublicSchema && (t.AutoDropSchema || forceDrop) {
		if err := s.dropPhysicalSchema(ctx, t.SchemaName); err != nil {
			return err
		}
	}

	return s.store.Delete(ctx, t)
}

// CreateSchema creates the tenant's physical schema. With checkIfExists an
// existing schema short-circuits to (false, nil). With applyMigrations the
// migration collaborator runs scoped to the new schema. The connection's
// schema context is always restored to public before returning, even when
// migration fails; the failure still propagates after the reset. The
// returned bool reports whether a new schema was actually created.
func (s *Service) CreateSchema(ctx context.Context, t *Tenant, checkIfExists, applyMigrations bool) (bool, error) {
	// Safety check: the name is spliced into DDL below.
	if err := schemaname.Validate(t.SchemaName); err != nil {
		return false, err
	}

	if checkIfExists {
		exists, err := s.conn.SchemaExists(ctx, t.SchemaName)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	createSQL, err := schemaname.CreateSchemaSQL(t.SchemaName)
	if err != nil {
		return false, err
	}
	if _, err := s.conn.ExecContext(ctx, createSQL); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P06" {
			return false, fmt.Errorf("%w: %s", ErrSchemaAlreadyExists, t.SchemaName)
		}
		return false, fmt.Errorf("failed to create schema %q: %w", t.SchemaName, err)
	}
	s.logger.Info("created schema", "schema", t.SchemaName)

	var applyErr error
	if applyMigrations && s.migrator != nil {
		if err := s.migrator.ApplyToSchema(ctx, t.SchemaName); err != nil {
			applyErr = &MigrationError{SchemaName: t.SchemaName, Err: err}
		}
	}

	if err := s.conn.SetSchemaToPublic(ctx); err != nil && applyErr == nil {
		applyErr = err
	}
	if applyErr != nil {
		return false, applyErr
	}
	return true, nil
}

// dropPhysicalSchema drops the named schema with CASCADE if it exists.
func (s *Service) dropPhysicalSchema(ctx context.Context, schemaName string) error {
	exists, err := s.conn.SchemaExists(ctx, schemaName)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	dropSQL, err := schemaname.DropSchemaSQL(schemaName)
	if err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("failed to drop schema %q: %w", schemaName, err)
	}
	s.logger.Info("dropped schema", "schema", schemaName)
	return nil
}

func (s *Service) checkOwnOrPublicContext(op string, t *Tenant) error {
	current := s.conn.SchemaName()
	if current == t.SchemaName || current == schemaname.PublicSchema {
		return nil
	}
	return &ContextViolationError{Op: op, CurrentSchema: current,
		Allowed: []string{t.SchemaName, schemaname.PublicSchema}}
}
