package datalog

import (
	"fmt"
	"strings"
)

// Statement is a compiled SQL statement with its bound parameters, in
// binding order. Compilation is deterministic and side-effect-free; the
// same algebra tree always lowers to the same statement.
type Statement struct {
	SQL  string
	Args []any
}

// joinPlan is the lowering of one conjunction: aliased table scans, the
// first-binding site of every variable, equality predicates, and constant
// parameters.
type joinPlan struct {
	from     []string          // "rel AS tN" in atom order
	bindings map[string]string // variable name -> "tN.col" of first occurrence
	where    []string
	args     []any
}

// lowerConjunction builds the join plan for a flat conjunction. Every atom
// gets a fresh per-occurrence alias, so the same relation may appear twice
// in one body (self-joins). Predicates are emitted in term order: a
// repeated variable equates against its first binding site, a constant
// compares its column against a bound parameter.
func lowerConjunction(c *Conjunction) (*joinPlan, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	p := &joinPlan{bindings: make(map[string]string)}
	for i, atom := range c.Atoms {
		alias := fmt.Sprintf("t%d", i)
		p.from = append(p.from, atom.Rel.Name+" AS "+alias)
		for j, t := range atom.Terms {
			col := alias + "." + atom.Rel.Columns[j].Name
			switch term := t.(type) {
			case Var:
				if first, ok := p.bindings[term.Name]; ok {
					p.where = append(p.where, col+" = "+first)
				} else {
					p.bindings[term.Name] = col
				}
			case Const:
				p.where = append(p.where, col+" = ?")
				p.args = append(p.args, term.Value)
			}
		}
	}
	return p, nil
}

// selectSQL renders the plan as a SELECT DISTINCT over the given variable
// names, projecting each from its first binding site.
func (p *joinPlan) selectSQL(names []string) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT DISTINCT ")
	for i, name := range names {
		// Variable names become SQL column aliases, so they are held to
		// the same identifier rules as schema names.
		if !validIdent(name) {
			return "", &CompileError{Msg: "variable name " + name + " is not a valid SQL identifier"}
		}
		col, ok := p.bindings[name]
		if !ok {
			return "", &RangeRestrictionError{Variable: name}
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col)
		b.WriteString(" AS ")
		b.WriteString(name)
	}
	b.WriteString(" FROM ")
	b.WriteString(strings.Join(p.from, ", "))
	if len(p.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(p.where, " AND "))
	}
	return b.String(), nil
}

// lowerBody compiles a body to a SELECT over the given variable names:
// one SELECT per disjunct, combined with UNION so duplicate derivations
// collapse across alternatives.
func lowerBody(body Body, names []string) (Statement, error) {
	alts := body.disjuncts()
	if len(alts) == 0 {
		return Statement{}, &CompileError{Msg: "body has no disjuncts"}
	}
	selects := make([]string, 0, len(alts))
	var args []any
	for _, alt := range alts {
		plan, err := lowerConjunction(alt)
		if err != nil {
			return Statement{}, err
		}
		sel, err := plan.selectSQL(names)
		if err != nil {
			return Statement{}, err
		}
		selects = append(selects, sel)
		args = append(args, plan.args...)
	}
	return Statement{SQL: strings.Join(selects, "\nUNION\n"), Args: args}, nil
}

// CompileRule lowers a rule to its duplicate-ignoring insert statement:
//
//	INSERT OR IGNORE INTO head (cols) SELECT DISTINCT ... UNION ...
//
// Executing the statement performs one fixpoint pass; the rows-affected
// count of the execution is the number of genuinely new rows, because the
// head table's primary key drops re-derived tuples.
func CompileRule(r *Rule) (Statement, error) {
	body, err := lowerBody(r.Body, r.headVars)
	if err != nil {
		return Statement{}, err
	}
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(r.Head.Rel.Name)
	b.WriteString(" (")
	for i, c := range r.Head.Rel.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Name)
	}
	b.WriteString(")\n")
	b.WriteString(body.SQL)
	return Statement{SQL: b.String(), Args: body.Args}, nil
}

// CompileSelect lowers a read-back query: project the given variables out
// of the body. Every projected variable must be bound in every disjunct.
func CompileSelect(vars []Var, body Body) (Statement, error) {
	if len(vars) == 0 {
		return Statement{}, &CompileError{Msg: "selection needs at least one variable"}
	}
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return lowerBody(body, names)
}
