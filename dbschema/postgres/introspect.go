// Package postgres introspects tables, constraints and indexes in the
// schema a connection is currently switched to.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fatboystring/tenantkit/core/schemaname"
	"github.com/fatboystring/tenantkit/dbschema"
	"github.com/fatboystring/tenantkit/dbschema/types"
)

// MigrationsTable is the per-schema bookkeeping table ignored by default.
const MigrationsTable = "schema_migrations"

// Reader reads schema metadata from a PostgreSQL database. It deliberately
// never accepts a schema name: every query is scoped to the connection's
// current schema, so callers must switch the schema context first.
type Reader struct {
	conn          *dbschema.DatabaseConnection
	ignoredTables map[string]struct{}
}

// Option configures a Reader.
type Option func(*Reader)

// WithIgnoredTables replaces the default ignore list with the given table
// names. Ignored tables are excluded from ListTables results.
func WithIgnoredTables(names ...string) Option {
	return func(r *Reader) {
		r.ignoredTables = make(map[string]struct{}, len(names))
		for _, name := range names {
			r.ignoredTables[name] = struct{}{}
		}
	}
}

// NewReader creates a schema reader bound to the given connection.
func NewReader(conn *dbschema.DatabaseConnection, opts ...Option) *Reader {
	r := &Reader{
		conn:          conn,
		ignoredTables: map[string]struct{}{MigrationsTable: {}},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListTables returns the tables and views in the connection's current
// schema, excluding the ignore list. The schema name cannot be bound as a
// parameter here, so it passes through the identifier validator before
// being spliced as a literal.
func (r *Reader) ListTables(ctx context.Context) ([]types.TableInfo, error) {
	schema := r.conn.SchemaName()
	if err := schemaname.ValidateOrPublic(schema); err != nil {
		return nil, err
	}

	tablesQuery := fmt.Sprintf(`
		SELECT c.relname, c.relkind
		FROM pg_catalog.pg_class c
		LEFT JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'v')
		AND n.nspname = %s
		AND pg_catalog.pg_table_is_visible(c.oid)
		ORDER BY c.relname`, schemaname.QuoteLiteral(schema))

	rows, err := r.conn.QueryContext(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []types.TableInfo
	for rows.Next() {
		var name, relkind string
		if err := rows.Scan(&name, &relkind); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		if _, ignored := r.ignoredTables[name]; ignored {
			continue
		}
		kind := types.KindTable
		if relkind == "v" {
			kind = types.KindView
		}
		tables = append(tables, types.TableInfo{Name: name, Kind: kind})
	}

	return tables, rows.Err()
}

// Constraints returns every constraint and index on the named table in the
// connection's current schema, keyed by constraint name. Three independent
// fetches are merged: key-column constraints (primary key, unique, foreign
// key), CHECK constraints, and indexes. Entries are deduplicated on name
// across the fetches with a union of boolean flags; the column order from
// the earliest fetch wins.
func (r *Reader) Constraints(ctx context.Context, tableName string) (map[string]types.ConstraintInfo, error) {
	schema := r.conn.SchemaName()
	set := newConstraintSet()

	if err := r.readKeyColumns(ctx, set, schema, tableName); err != nil {
		return nil, err
	}
	if err := r.readCheckConstraints(ctx, set, schema, tableName); err != nil {
		return nil, err
	}
	if err := r.readIndexes(ctx, set, schema, tableName); err != nil {
		return nil, err
	}

	return set.entries, nil
}

// readKeyColumns collects primary key, unique and foreign key constraints,
// ordered by ordinal position.
func (r *Reader) readKeyColumns(ctx context.Context, set *constraintSet, schema, tableName string) error {
	keyColumnsQuery := `
		SELECT
			kc.constraint_name,
			kc.column_name,
			c.constraint_type,
			(array(SELECT table_name::text || '.' || column_name::text
			       FROM information_schema.constraint_column_usage
			       WHERE constraint_name = kc.constraint_name))[1]
		FROM information_schema.key_column_usage AS kc
		JOIN information_schema.table_constraints AS c ON
			kc.table_schema = c.table_schema AND
			kc.table_name = c.table_name AND
			kc.constraint_name = c.constraint_name
		WHERE
			kc.table_schema = $1 AND
			kc.table_name = $2
		ORDER BY kc.ordinal_position ASC`

	rows, err := r.conn.QueryContext(ctx, keyColumnsQuery, schema, tableName)
	if err != nil {
		return fmt.Errorf("failed to query key-column constraints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, column, kind string
		var referenced sql.NullString
		if err := rows.Scan(&name, &column, &kind, &referenced); err != nil {
			return fmt.Errorf("failed to scan key-column constraint: %w", err)
		}
		set.addKeyColumn(name, column, kind, referenced.String)
	}

	return rows.Err()
}

// readCheckConstraints collects CHECK constraints and their columns.
func (r *Reader) readCheckConstraints(ctx context.Context, set *constraintSet, schema, tableName string) error {
	checkQuery := `
		SELECT kc.constraint_name, kc.column_name
		FROM information_schema.constraint_column_usage AS kc
		JOIN information_schema.table_constraints AS c ON
			kc.table_schema = c.table_schema AND
			kc.table_name = c.table_name AND
			kc.constraint_name = c.constraint_name
		WHERE
			c.constraint_type = 'CHECK' AND
			kc.table_schema = $1 AND
			kc.table_name = $2`

	rows, err := r.conn.QueryContext(ctx, checkQuery, schema, tableName)
	if err != nil {
		return fmt.Errorf("failed to query check constraints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return fmt.Errorf("failed to scan check constraint: %w", err)
		}
		set.addCheck(name, column)
	}

	return rows.Err()
}

// readIndexes collects indexes, including ones that do not back a
// constraint, with their column order resolved per index key position.
func (r *Reader) readIndexes(ctx context.Context, set *constraintSet, schema, tableName string) error {
	indexesQuery := `
		SELECT
			c2.relname,
			array_to_string(ARRAY(
				SELECT (SELECT attname FROM pg_catalog.pg_attribute
				        WHERE attnum = i AND attrelid = c.oid)
				FROM unnest(idx.indkey) i
			), ','),
			idx.indisunique,
			idx.indisprimary
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_index idx ON c.oid = idx.indrelid
		JOIN pg_catalog.pg_class c2 ON idx.indexrelid = c2.oid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1 AND n.nspname = $2`

	rows, err := r.conn.QueryContext(ctx, indexesQuery, tableName, schema)
	if err != nil {
		return fmt.Errorf("failed to query indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, columns string
		var unique, primary bool
		if err := rows.Scan(&name, &columns, &unique, &primary); err != nil {
			return fmt.Errorf("failed to scan index: %w", err)
		}
		set.addIndex(name, parseIndexColumns(columns), unique, primary)
	}

	return rows.Err()
}

// constraintSet accumulates constraint entries keyed by name while tracking
// which fetch created each entry, so columns from a later fetch never mix
// into an entry created by an earlier one.
type constraintSet struct {
	entries map[string]types.ConstraintInfo
	origin  map[string]int
}

const (
	originKeyColumn = iota
	originCheck
	originIndex
)

func newConstraintSet() *constraintSet {
	return &constraintSet{
		entries: make(map[string]types.ConstraintInfo),
		origin:  make(map[string]int),
	}
}

// addKeyColumn records one (constraint, column) row from the key-usage
// fetch. Rows arrive in ordinal-position order, so appending preserves the
// column order of multi-column constraints.
func (s *constraintSet) addKeyColumn(name, column, kind, referenced string) {
	entry, ok := s.entries[name]
	if !ok {
		kind = strings.ToLower(kind)
		entry = types.ConstraintInfo{
			PrimaryKey: kind == "primary key",
			Unique:     kind == "primary key" || kind == "unique",
		}
		if kind == "foreign key" {
			entry.ForeignKey = splitReference(referenced)
		}
		s.origin[name] = originKeyColumn
	}
	entry.Columns = append(entry.Columns, column)
	s.entries[name] = entry
}

// addCheck records one (constraint, column) row from the CHECK fetch. A
// name already recorded by the key-column fetch only gains the check flag.
func (s *constraintSet) addCheck(name, column string) {
	entry, ok := s.entries[name]
	if !ok {
		entry = types.ConstraintInfo{Check: true}
		s.origin[name] = originCheck
		entry.Columns = append(entry.Columns, column)
		s.entries[name] = entry
		return
	}
	entry.Check = true
	if s.origin[name] == originCheck {
		entry.Columns = append(entry.Columns, column)
	}
	s.entries[name] = entry
}

// addIndex records one index. When the index backs a constraint recorded by
// an earlier fetch the two share a name; the flags are unioned and the
// earlier column order is kept.
func (s *constraintSet) addIndex(name string, columns []string, unique, primary bool) {
	entry, ok := s.entries[name]
	if !ok {
		s.entries[name] = types.ConstraintInfo{
			Columns:    columns,
			PrimaryKey: primary,
			Unique:     unique,
			Index:      true,
		}
		s.origin[name] = originIndex
		return
	}
	entry.Index = true
	entry.Unique = entry.Unique || unique
	entry.PrimaryKey = entry.PrimaryKey || primary
	s.entries[name] = entry
}

// splitReference decomposes a "table.column" reference into its parts,
// splitting on the first dot only so column names containing dots survive.
func splitReference(referenced string) *types.ForeignKeyRef {
	if referenced == "" {
		return nil
	}
	parts := strings.SplitN(referenced, ".", 2)
	if len(parts) != 2 {
		return nil
	}
	return &types.ForeignKeyRef{Table: parts[0], Column: parts[1]}
}

// parseIndexColumns splits the comma-joined column list produced by the
// index query. Expression index positions resolve to NULL attribute names,
// which array_to_string omits, so only plain column names appear here.
func parseIndexColumns(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
