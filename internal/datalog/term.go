// Package datalog implements the positive, monotone Datalog core:
// a term algebra (variables and constants), relation schemas, a rule
// algebra (atoms, conjunctions, disjunctions, rules), and a compiler
// that lowers the algebra to parameterized SQL statements.
//
// The package is pure: nothing here touches a database. Execution lives
// in internal/store, which feeds compiled statements to SQLite.
package datalog

import "fmt"

// Term is a variable or a constant appearing in an atom's argument list.
// The interface is sealed; Var and Const are the only implementations.
type Term interface {
	isTerm()
	String() string
}

// Var is a rule-local variable identified by name. Two occurrences of the
// same name inside one rule denote the same value; reusing a name across
// unrelated rules is harmless.
type Var struct {
	Name string
}

func (Var) isTerm() {}

func (v Var) String() string { return v.Name }

// Vars produces one fresh variable per name.
func Vars(names ...string) []Var {
	vs := make([]Var, len(names))
	for i, n := range names {
		vs[i] = Var{Name: n}
	}
	return vs
}

// Const is a literal term. Its SQL affinity is inferred from the Go value
// at construction and checked against the column it binds to.
type Const struct {
	Value    any
	Affinity Affinity
}

func (Const) isTerm() {}

func (c Const) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", c.Value)
}

// Lit wraps a Go literal as a constant term. The supported literal types
// mirror what the sqlite3 driver binds natively. An unsupported type is
// reported lazily, when the constant is applied to a column.
func Lit(value any) Const {
	return Const{Value: value, Affinity: affinityOf(value)}
}

// affinityOf maps a Go literal to its SQL affinity class.
// AffinityInvalid marks values the driver cannot bind.
func affinityOf(value any) Affinity {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return AffinityInteger
	case bool:
		return AffinityInteger
	case float32, float64:
		return AffinityReal
	case string:
		return AffinityText
	case []byte:
		return AffinityBlob
	case nil:
		return AffinityInvalid
	default:
		return AffinityInvalid
	}
}

// term normalizes a caller-supplied argument into a Term: Vars and Consts
// pass through, raw Go literals become constants.
func term(arg any) Term {
	switch t := arg.(type) {
	case Var:
		return t
	case Const:
		return t
	case Term:
		return t
	default:
		return Lit(arg)
	}
}
