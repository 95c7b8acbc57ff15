package tenant

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fatboystring/tenantkit/core/schemaname"
)

// Conn is the subset of dbschema.DatabaseConnection the tenant packages
// need: schema-context control plus plain statement execution.
type Conn interface {
	SchemaName() string
	SetSchema(ctx context.Context, name string) error
	SetSchemaToPublic(ctx context.Context) error
	SchemaExists(ctx context.Context, name string) (bool, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists tenants and domains. Both tables live in the public
// schema and are addressed schema-qualified, so the store works no matter
// which tenant schema the connection is currently switched to.
type Store struct {
	conn Conn
}

// NewStore creates a tenant store on the given connection.
func NewStore(conn Conn) *Store {
	return &Store{conn: conn}
}

//go:embed schema.sql
var metadataSchemaSQL string

// EnsureSchema creates the tenant and domain metadata tables in the public
// schema if they do not exist. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(metadataSchemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return wrapStorageError("create metadata tables", err)
		}
	}
	return nil
}

const tenantColumns = "id, schema_name, name, created_on, auto_create_schema, auto_drop_schema"

// Insert persists a new tenant row. A zero ID is assigned and a zero
// CreatedOn is stamped with the current time.
func (s *Store) Insert(ctx context.Context, t *Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedOn.IsZero() {
		t.CreatedOn = time.Now().UTC()
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO public.tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.SchemaName, t.Name, t.CreatedOn, t.AutoCreateSchema, t.AutoDropSchema)
	if err != nil {
		return wrapStorageError("insert tenant", err)
	}
	return nil
}

// Update persists mutable tenant fields. The schema name and creation date
// are immutable after the first save.
func (s *Store) Update(ctx context.Context, t *Tenant) error {
	_, err := s.conn.ExecContext(ctx, `
		UPDATE public.tenants
		SET name = $2, auto_create_schema = $3, auto_drop_schema = $4
		WHERE id = $1`,
		t.ID, t.Name, t.AutoCreateSchema, t.AutoDropSchema)
	if err != nil {
		return wrapStorageError("update tenant", err)
	}
	return nil
}

// Delete removes the tenant row and its domains. The physical schema is
// not touched here; that is the lifecycle service's job.
func (s *Store) Delete(ctx context.Context, t *Tenant) error {
	if _, err := s.conn.ExecContext(ctx,
		"DELETE FROM public.domains WHERE tenant_id = $1", t.ID); err != nil {
		return wrapStorageError("delete tenant domains", err)
	}
	if _, err := s.conn.ExecContext(ctx,
		"DELETE FROM public.tenants WHERE id = $1", t.ID); err != nil {
		return wrapStorageError("delete tenant", err)
	}
	return nil
}

// GetBySchemaName returns the tenant owning the given schema.
func (s *Store) GetBySchemaName(ctx context.Context, schemaName string) (*Tenant, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT `+tenantColumns+`
		FROM public.tenants WHERE schema_name = $1`, schemaName)
	return scanTenant(row)
}

// GetPublic returns the designated public tenant: the row whose schema name
// is the public schema itself.
func (s *Store) GetPublic(ctx context.Context) (*Tenant, error) {
	return s.GetBySchemaName(ctx, schemaname.PublicSchema)
}

// GetForDomain returns the tenant owning the given domain, matched
// case-insensitively. Unregistered domains resolve to the public tenant.
func (s *Store) GetForDomain(ctx context.Context, domain string) (*Tenant, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT `+tenantColumns+`
		FROM public.tenants t
		JOIN public.domains d ON d.tenant_id = t.id
		WHERE d.domain = $1`, NormalizeDomain(domain))

	t, err := scanTenant(row)
	if errors.Is(err, ErrNotFound) {
		return s.GetPublic(ctx)
	}
	return t, err
}

// List returns all tenants ordered by schema name.
func (s *Store) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+tenantColumns+`
		FROM public.tenants ORDER BY schema_name`)
	if err != nil {
		return nil, wrapStorageError("list tenants", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// AddDomain attaches a domain to the tenant with get-or-create semantics.
// The stored value is always the normalized (lowercase) form.
func (s *Store) AddDomain(ctx context.Context, t *Tenant, domain string) (*Domain, error) {
	normalized := NormalizeDomain(domain)

	existing := &Domain{}
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, domain FROM public.domains
		WHERE tenant_id = $1 AND domain = $2`, t.ID, normalized).
		Scan(&existing.ID, &existing.TenantID, &existing.Domain)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapStorageError("get domain", err)
	}

	d := &Domain{ID: uuid.New(), TenantID: t.ID, Domain: normalized}
	if _, err := s.conn.ExecContext(ctx, `
		INSERT INTO public.domains (id, tenant_id, domain)
		VALUES ($1, $2, $3)`, d.ID, d.TenantID, d.Domain); err != nil {
		return nil, wrapStorageError("add domain", err)
	}
	return d, nil
}

// RemoveDomain detaches a domain from the tenant, matched case-insensitively.
func (s *Store) RemoveDomain(ctx context.Context, t *Tenant, domain string) error {
	_, err := s.conn.ExecContext(ctx, `
		DELETE FROM public.domains
		WHERE tenant_id = $1 AND domain = $2`, t.ID, NormalizeDomain(domain))
	if err != nil {
		return wrapStorageError("remove domain", err)
	}
	return nil
}

// Domains returns the tenant's domains in lexical order.
func (s *Store) Domains(ctx context.Context, t *Tenant) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT domain FROM public.domains
		WHERE tenant_id = $1 ORDER BY domain`, t.ID)
	if err != nil {
		return nil, wrapStorageError("list domains", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, wrapStorageError("scan domain", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// ExportRow is one line of the tenant export listing.
type ExportRow struct {
	SchemaName string
	Domains    string // comma-joined, lexically ordered
}

// Export returns all tenants with their comma-joined domain lists, a
// read-only reporting view ordered by schema name.
func (s *Store) Export(ctx context.Context) ([]ExportRow, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT t.schema_name,
		       COALESCE(string_agg(d.domain, ', ' ORDER BY d.domain), '')
		FROM public.tenants t
		LEFT JOIN public.domains d ON d.tenant_id = t.id
		GROUP BY t.schema_name
		ORDER BY t.schema_name`)
	if err != nil {
		return nil, wrapStorageError("export tenants", err)
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.SchemaName, &r.Domains); err != nil {
			return nil, wrapStorageError("scan export row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*Tenant, error) {
	t := &Tenant{}
	err := row.Scan(&t.ID, &t.SchemaName, &t.Name, &t.CreatedOn, &t.AutoCreateSchema, &t.AutoDropSchema)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapStorageError("scan tenant", err)
	}
	return t, nil
}

// wrapStorageError maps PostgreSQL unique violations (SQLSTATE 23505) onto
// ErrIntegrityViolation; everything else surfaces with operation context.
func wrapStorageError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s: %s", ErrIntegrityViolation, op, pgErr.Message)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
