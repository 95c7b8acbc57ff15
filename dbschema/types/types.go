package types

// TableKind discriminates relations returned by the introspector.
type TableKind string

const (
	KindTable TableKind = "t"
	KindView  TableKind = "v"
)

// TableInfo describes one relation in the connection's current schema.
type TableInfo struct {
	Name string    `json:"name"`
	Kind TableKind `json:"kind"`
}

// ForeignKeyRef is the target of a foreign key constraint.
type ForeignKeyRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// ConstraintInfo describes a constraint or index on a table. A single entry
// can carry several flags at once: the index backing a primary key shares
// the constraint's name and resolves to the same entry.
type ConstraintInfo struct {
	Columns    []string       `json:"columns"`
	PrimaryKey bool           `json:"primary_key"`
	Unique     bool           `json:"unique"`
	ForeignKey *ForeignKeyRef `json:"foreign_key,omitempty"`
	Check      bool           `json:"check"`
	Index      bool           `json:"index"`
}

// DBInfo contains connection metadata.
type DBInfo struct {
	Dialect string `json:"dialect"`
	Version string `json:"version"`
	Schema  string `json:"schema"` // current search-path schema
	URL     string `json:"url"`
}
