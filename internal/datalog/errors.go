package datalog

import "fmt"

// The error taxonomy mirrors the construction pipeline: schema and arity
// problems surface when relations and atoms are built, type problems when
// literals meet columns, range-restriction and malformed-tree problems when
// rules are built or compiled. Nothing in this package reaches a database,
// so every error here is raised before any SQL executes.

// SchemaError reports an invalid or conflicting relation declaration:
// bad identifiers, unsupported column types, name collisions, or a rule
// head targeting a base relation.
type SchemaError struct {
	Relation string
	Msg      string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: relation %q: %s", e.Relation, e.Msg)
}

// ArityError reports an atom applied to the wrong number of terms.
type ArityError struct {
	Relation string
	Want     int
	Got      int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("arity error: relation %q has %d columns, got %d terms", e.Relation, e.Want, e.Got)
}

// TypeError reports a literal whose affinity does not match the column it
// binds to, or a Go value the driver cannot bind at all.
type TypeError struct {
	Relation string
	Column   string
	Msg      string
}

func (e *TypeError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("type error: relation %q: %s", e.Relation, e.Msg)
	}
	return fmt.Sprintf("type error: relation %q column %q: %s", e.Relation, e.Column, e.Msg)
}

// RangeRestrictionError reports a projected variable that some disjunct of
// the body never binds. Compiling such a projection would emit an unsafe
// query, so it is rejected before lowering.
type RangeRestrictionError struct {
	Variable string
	Relation string
}

func (e *RangeRestrictionError) Error() string {
	if e.Relation == "" {
		return fmt.Sprintf("range restriction violated: projected variable %q is not bound in every disjunct of the body", e.Variable)
	}
	return fmt.Sprintf("range restriction violated: variable %q of %q is not bound in every disjunct of the body", e.Variable, e.Relation)
}

// CompileError reports a malformed algebra node: an empty conjunction or
// disjunction, or a non-variable term in a rule head.
type CompileError struct {
	Msg string
}

func (e *CompileError) Error() string {
	return "compile error: " + e.Msg
}
