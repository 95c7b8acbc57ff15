// Package dbschema manages PostgreSQL connections whose search path is
// switched between tenant schemas.
//
// A DatabaseConnection pins a single physical connection out of the pool and
// tracks which schema is current on it. The search-path mutation is a
// connection-level side effect, not a transaction-scoped one, so a connection
// and its current schema must be treated as a unit for the duration of one
// logical operation; two tenant contexts must never interleave on the same
// connection.
package dbschema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver

	"github.com/fatboystring/tenantkit/core/schemaname"
	"github.com/fatboystring/tenantkit/dbschema/types"
)

// ErrSchemaDoesNotExist is returned by SetSchemaChecked when the requested
// schema is absent from the database.
var ErrSchemaDoesNotExist = errors.New("schema does not exist")

// DatabaseConnection is a single database connection with a tracked schema
// context. All statements issued through it resolve unqualified table
// references against the current schema until the next switch.
type DatabaseConnection struct {
	db     *sql.DB
	conn   *sql.Conn
	info   types.DBInfo
	schema string
	tx     *sql.Tx
}

// ConnectToDatabase connects to the database at the given URL and pins one
// connection for schema-scoped work. The schema context starts at public.
func ConnectToDatabase(dbURL string) (*DatabaseConnection, error) {
	return Connect(context.Background(), dbURL)
}

// Connect is like ConnectToDatabase but honors the provided context during
// connection establishment.
func Connect(ctx context.Context, dbURL string) (*DatabaseConnection, error) {
	cleanURL := removePostgresPoolParams(dbURL)

	db, err := sql.Open("pgx", cleanURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	c := &DatabaseConnection{
		db:     db,
		conn:   conn,
		schema: schemaname.PublicSchema,
		info: types.DBInfo{
			Dialect: "postgres",
			Schema:  schemaname.PublicSchema,
			URL:     cleanURL,
		},
	}

	if err := conn.QueryRowContext(ctx, "SELECT version()").Scan(&c.info.Version); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to query server version: %w", err)
	}

	return c, nil
}

// Close releases the pinned connection and the underlying pool.
func (c *DatabaseConnection) Close() error {
	var errs []error
	if c.conn != nil {
		errs = append(errs, c.conn.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}

// Info returns connection metadata reflecting the current schema context.
func (c *DatabaseConnection) Info() types.DBInfo {
	info := c.info
	info.Schema = c.schema
	return info
}

// SchemaName returns the schema the connection is currently switched to.
func (c *DatabaseConnection) SchemaName() string {
	return c.schema
}

// SetSchema switches the connection's search path to the given schema with
// the public schema as fallback. A failed switch leaves the previous context
// unchanged. The caller is responsible for restoring the context; it is not
// reset when a statement completes.
func (c *DatabaseConnection) SetSchema(ctx context.Context, name string) error {
	stmt, err := schemaname.SearchPathSQL(name)
	if err != nil {
		return err
	}
	if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to set search path to %q: %w", name, err)
	}
	c.schema = schemaname.Normalize(name)
	return nil
}

// SetSchemaChecked is SetSchema with a pre-flight existence check.
func (c *DatabaseConnection) SetSchemaChecked(ctx context.Context, name string) error {
	exists, err := c.SchemaExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSchemaDoesNotExist, name)
	}
	return c.SetSchema(ctx, name)
}

// SetSchemaToPublic resets the search path to the public schema. It is
// idempotent and safe to call with no prior schema set.
func (c *DatabaseConnection) SetSchemaToPublic(ctx context.Context) error {
	return c.SetSchema(ctx, schemaname.PublicSchema)
}

// SchemaExists reports whether the named schema exists in the database.
func (c *DatabaseConnection) SchemaExists(ctx context.Context, name string) (bool, error) {
	if err := schemaname.ValidateOrPublic(name); err != nil {
		return false, err
	}
	var exists bool
	err := c.conn.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		schemaname.Normalize(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check schema existence: %w", err)
	}
	return exists, nil
}

// ExecContext executes a statement on the pinned connection, inside the
// open transaction when one has been started.
func (c *DatabaseConnection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.tx != nil {
		return c.tx.ExecContext(ctx, query, args...)
	}
	return c.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the pinned connection, inside the open
// transaction when one has been started.
func (c *DatabaseConnection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c.tx != nil {
		return c.tx.QueryContext(ctx, query, args...)
	}
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the pinned connection, inside
// the open transaction when one has been started.
func (c *DatabaseConnection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if c.tx != nil {
		return c.tx.QueryRowContext(ctx, query, args...)
	}
	return c.conn.QueryRowContext(ctx, query, args...)
}

// BeginTransaction starts a transaction on the pinned connection. Session
// settings such as the search path remain in effect inside it. Transactions
// do not nest.
func (c *DatabaseConnection) BeginTransaction(ctx context.Context) error {
	if c.tx != nil {
		return errors.New("transaction already in progress")
	}
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.tx = tx
	return nil
}

// CommitTransaction commits the open transaction.
func (c *DatabaseConnection) CommitTransaction() error {
	if c.tx == nil {
		return errors.New("no transaction in progress")
	}
	err := c.tx.Commit()
	c.tx = nil
	return err
}

// RollbackTransaction rolls back the open transaction.
func (c *DatabaseConnection) RollbackTransaction() error {
	if c.tx == nil {
		return errors.New("no transaction in progress")
	}
	err := c.tx.Rollback()
	c.tx = nil
	return err
}

// removePostgresPoolParams strips pgxpool-specific query parameters from a
// database URL. Deployments often share one URL between pgxpool consumers
// and this package; database/sql drivers reject the pool_* parameters.
func removePostgresPoolParams(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil {
		return dbURL
	}

	q := u.Query()
	if !q.Has("pool_max_conns") && !q.Has("pool_min_conns") {
		return dbURL
	}
	q.Del("pool_max_conns")
	q.Del("pool_min_conns")
	u.RawQuery = q.Encode()

	return u.String()
}
