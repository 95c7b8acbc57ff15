package migrator

import (
	"context"
	_ "embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed base/schema.sql
var migrationsSchemaSQL string

//go:embed base/get_version.sql
var getVersionSQL string

//go:embed base/record_migration.sql
var recordMigrationSQL string

//go:embed base/delete_migration.sql
var deleteMigrationSQL string

// MigrationFunc represents a migration function that operates on a database
// connection. It runs with the connection's search path already pointing at
// the schema being migrated, so unqualified table names land there.
type MigrationFunc func(context.Context, Conn) error

// Migration represents one versioned schema change.
type Migration struct {
	Version     int
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// NoopMigrationFunc is a no-op migration function.
func NoopMigrationFunc(_ context.Context, _ Conn) error {
	return nil
}

// MigrationFuncFromSQLFilename returns a migration function that reads SQL
// from a file in the provided filesystem and executes it statement by
// statement on the database connection.
func MigrationFuncFromSQLFilename(filename string, fsys fs.FS) MigrationFunc {
	return func(ctx context.Context, conn Conn) error {
		sql, err := fs.ReadFile(fsys, filename)
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}
		return executeSQLStatements(ctx, conn, string(sql))
	}
}

// CreateMigrationFromSQL creates a migration from up and down SQL strings.
// This is useful for programmatically registering migrations.
func CreateMigrationFromSQL(version int, description, upSQL, downSQL string) *Migration {
	return &Migration{
		Version:     version,
		Description: description,
		Up: func(ctx context.Context, conn Conn) error {
			return executeSQLStatements(ctx, conn, upSQL)
		},
		Down: func(ctx context.Context, conn Conn) error {
			return executeSQLStatements(ctx, conn, downSQL)
		},
	}
}

func executeSQLStatements(ctx context.Context, conn Conn, sql string) error {
	for _, stmt := range SplitSQLStatements(sql) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

// SplitSQLStatements splits a SQL script into individual statements. The
// driver executes statements one at a time, so multi-statement migration
// files must be split first. Semicolons inside single-quoted literals,
// double-quoted identifiers, dollar-quoted bodies and line comments are not
// treated as separators.
func SplitSQLStatements(script string) []string {
	var statements []string
	var current strings.Builder

	var inSingle, inDouble, inLineComment bool
	var dollarTag string

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	for i := 0; i < len(script); i++ {
		ch := script[i]

		switch {
		case inLineComment:
			if ch == '\n' {
				inLineComment = false
			}
			current.WriteByte(ch)
			continue
		case dollarTag != "":
			current.WriteByte(ch)
			if ch == '$' && strings.HasSuffix(current.String(), dollarTag) {
				dollarTag = ""
			}
			continue
		case inSingle:
			current.WriteByte(ch)
			if ch == '\'' {
				inSingle = false
			}
			continue
		case inDouble:
			current.WriteByte(ch)
			if ch == '"' {
				inDouble = false
			}
			continue
		}

		switch ch {
		case '\'':
			inSingle = true
		case '"':
			inDouble = true
		case '-':
			if i+1 < len(script) && script[i+1] == '-' {
				inLineComment = true
			}
		case '$':
			if tag, ok := readDollarTag(script[i:]); ok {
				dollarTag = tag
				current.WriteString(tag)
				i += len(tag) - 1
				continue
			}
		case ';':
			flush()
			continue
		}
		current.WriteByte(ch)
	}
	flush()

	return statements
}

// readDollarTag reads a dollar-quote tag like $$ or $body$ from the start
// of s. Returns false when s does not begin a dollar quote.
func readDollarTag(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
			return "", false
		}
	}
	return "", false
}
