package datalog

import (
	"strings"
)

// Type is a declared SQL column type.
type Type string

// Supported column types. Each maps to one of SQLite's affinity classes;
// constants and inserted rows are checked against the class, not the exact
// spelling, so INT and INTEGER columns accept the same literals.
const (
	TypeInteger Type = "INTEGER"
	TypeInt     Type = "INT"
	TypeBigInt  Type = "BIGINT"
	TypeReal    Type = "REAL"
	TypeFloat   Type = "FLOAT"
	TypeDouble  Type = "DOUBLE"
	TypeText    Type = "TEXT"
	TypeVarchar Type = "VARCHAR"
	TypeChar    Type = "CHAR"
	TypeBlob    Type = "BLOB"
	TypeBoolean Type = "BOOLEAN"
	TypeNumeric Type = "NUMERIC"
)

// Affinity is the checking class a column type belongs to.
type Affinity int

const (
	AffinityInvalid Affinity = iota
	AffinityInteger
	AffinityReal
	AffinityText
	AffinityBlob
	AffinityNumeric
)

var typeAffinity = map[Type]Affinity{
	TypeInteger: AffinityInteger,
	TypeInt:     AffinityInteger,
	TypeBigInt:  AffinityInteger,
	TypeBoolean: AffinityInteger,
	TypeReal:    AffinityReal,
	TypeFloat:   AffinityReal,
	TypeDouble:  AffinityReal,
	TypeText:    AffinityText,
	TypeVarchar: AffinityText,
	TypeChar:    AffinityText,
	TypeBlob:    AffinityBlob,
	TypeNumeric: AffinityNumeric,
}

// Affinity returns the checking class for t, or AffinityInvalid if t is not
// a supported type.
func (t Type) Affinity() Affinity {
	return typeAffinity[Type(strings.ToUpper(string(t)))]
}

// accepts reports whether a value of affinity got may bind a column of
// affinity want. NUMERIC columns accept integer and real literals.
func (want Affinity) accepts(got Affinity) bool {
	if want == got {
		return true
	}
	if want == AffinityNumeric {
		return got == AffinityInteger || got == AffinityReal
	}
	// Integer literals widen into real columns, matching SQLite's own
	// storage behavior for REAL affinity.
	if want == AffinityReal && got == AffinityInteger {
		return true
	}
	return false
}

// Column is one (name, type) pair of a relation schema.
type Column struct {
	Name string
	Type Type
}

// Col is shorthand for a Column literal.
func Col(name string, typ Type) Column {
	return Column{Name: name, Type: typ}
}

// Relation describes a named, typed table: a base relation (externally
// populated, never a rule target) or a derived relation set (computed by
// rules, full-row primary key for deduplicating inserts). Relations are
// immutable value descriptions; the store owns the live tables.
type Relation struct {
	Name    string
	Columns []Column
	Derived bool
}

// NewRelation declares a base relation schema.
func NewRelation(name string, cols ...Column) (*Relation, error) {
	return newRelation(name, cols, false)
}

// NewRelationSet declares a derived relation schema. Its table carries a
// primary key over all columns; that uniqueness constraint is what makes
// duplicate-ignoring inserts, and therefore fixpoint detection, sound.
func NewRelationSet(name string, cols ...Column) (*Relation, error) {
	return newRelation(name, cols, true)
}

func newRelation(name string, cols []Column, derived bool) (*Relation, error) {
	if !validIdent(name) {
		return nil, &SchemaError{Relation: name, Msg: "name is not a valid SQL identifier"}
	}
	if len(cols) == 0 {
		return nil, &SchemaError{Relation: name, Msg: "relation needs at least one column"}
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if !validIdent(c.Name) {
			return nil, &SchemaError{Relation: name, Msg: "column name " + c.Name + " is not a valid SQL identifier"}
		}
		if seen[c.Name] {
			return nil, &SchemaError{Relation: name, Msg: "duplicate column " + c.Name}
		}
		seen[c.Name] = true
		if c.Type.Affinity() == AffinityInvalid {
			return nil, &SchemaError{Relation: name, Msg: "unsupported column type " + string(c.Type)}
		}
	}
	out := &Relation{Name: name, Columns: append([]Column(nil), cols...), Derived: derived}
	return out, nil
}

// Arity returns the number of columns.
func (r *Relation) Arity() int { return len(r.Columns) }

// CreateSQL returns the DDL statement backing this relation.
func (r *Relation) CreateSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(r.Name)
	b.WriteString(" (")
	for i, c := range r.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
		b.WriteByte(' ')
		b.WriteString(string(c.Type))
	}
	// Relations have set semantics: a full-row uniqueness constraint on
	// every table makes OR IGNORE inserts idempotent. Derived tables use a
	// primary key (they are the fixpoint targets); base tables a UNIQUE
	// constraint, which avoids SQLite's rowid-alias special case for a
	// single INTEGER primary key column.
	if r.Derived {
		b.WriteString(", PRIMARY KEY (")
	} else {
		b.WriteString(", UNIQUE (")
	}
	for i, c := range r.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
	}
	b.WriteString("))")
	return b.String()
}

// InsertSQL returns the positional bulk-insert statement for this relation.
// OR IGNORE drops duplicate rows against the table's uniqueness constraint.
func (r *Relation) InsertSQL() string {
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(r.Name)
	b.WriteString(" VALUES (")
	for i := range r.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
	}
	b.WriteString(")")
	return b.String()
}

// CheckRow validates one literal row against the schema before it is bound.
func (r *Relation) CheckRow(row []any) error {
	if len(row) != len(r.Columns) {
		return &ArityError{Relation: r.Name, Want: len(r.Columns), Got: len(row)}
	}
	for i, v := range row {
		got := affinityOf(v)
		if got == AffinityInvalid {
			return &TypeError{Relation: r.Name, Column: r.Columns[i].Name, Msg: "unbindable Go value"}
		}
		if !r.Columns[i].Type.Affinity().accepts(got) {
			return &TypeError{Relation: r.Name, Column: r.Columns[i].Name, Msg: "value does not match declared type " + string(r.Columns[i].Type)}
		}
	}
	return nil
}

// validIdent accepts the identifier shape shared by table and column names:
// a letter or underscore followed by letters, digits, or underscores. It
// deliberately rejects anything needing quoting, since identifiers are
// spliced into generated SQL.
func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return !reservedIdent[strings.ToLower(s)]
}

// reservedIdent blocks the handful of names the generated SQL uses itself.
var reservedIdent = map[string]bool{
	"select": true, "from": true, "where": true, "insert": true,
	"into": true, "union": true, "distinct": true, "table": true,
	"create": true, "values": true, "and": true, "or": true, "as": true,
}
