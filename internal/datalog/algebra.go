package datalog

import (
	"strings"
)

// Body is a rule body fragment: an Atom, a Conjunction, or a Disjunction.
// Every body normalizes to a disjunction of flat conjunctions before
// compilation.
type Body interface {
	disjuncts() []*Conjunction
	String() string
}

// Atom applies a relation to an ordered term list. Positional terms bind
// the relation's columns in declared order.
type Atom struct {
	Rel   *Relation
	Terms []Term
}

// Apply builds an atom over r. Arguments may be Vars, Consts, or raw Go
// literals (wrapped as constants). Arity and constant affinity are checked
// here, before any SQL exists.
func (r *Relation) Apply(args ...any) (*Atom, error) {
	if len(args) != len(r.Columns) {
		return nil, &ArityError{Relation: r.Name, Want: len(r.Columns), Got: len(args)}
	}
	terms := make([]Term, len(args))
	for i, a := range args {
		t := term(a)
		if c, ok := t.(Const); ok {
			if c.Affinity == AffinityInvalid {
				return nil, &TypeError{Relation: r.Name, Column: r.Columns[i].Name, Msg: "unbindable Go literal"}
			}
			if !r.Columns[i].Type.Affinity().accepts(c.Affinity) {
				return nil, &TypeError{Relation: r.Name, Column: r.Columns[i].Name, Msg: "literal does not match declared type " + string(r.Columns[i].Type)}
			}
		}
		terms[i] = t
	}
	return &Atom{Rel: r, Terms: terms}, nil
}

// MustApply is Apply for statically known-good atoms, typically in tests
// and examples.
func (r *Relation) MustApply(args ...any) *Atom {
	a, err := r.Apply(args...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Atom) disjuncts() []*Conjunction {
	return []*Conjunction{{Atoms: []*Atom{a}}}
}

func (a *Atom) String() string {
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = t.String()
	}
	return a.Rel.Name + "(" + strings.Join(parts, ", ") + ")"
}

// And conjoins this atom with more body fragments.
func (a *Atom) And(others ...Body) *Conjunction {
	return And(append([]Body{a}, others...)...)
}

// Or disjoins this atom with alternative bodies.
func (a *Atom) Or(others ...Body) *Disjunction {
	return Or(append([]Body{a}, others...)...)
}

// vars returns the names of variables bound by this atom.
func (a *Atom) vars() map[string]bool {
	out := make(map[string]bool)
	for _, t := range a.Terms {
		if v, ok := t.(Var); ok {
			out[v.Name] = true
		}
	}
	return out
}

// Conjunction is a flat list of atoms that must hold simultaneously,
// joined on shared variable names. Compilation sees one flat join list;
// And flattens nested conjunctions rather than nesting them.
type Conjunction struct {
	Atoms []*Atom

	// invalid marks a tree where And received a disjunction operand.
	// Construction stays infallible for builder chaining; check reports
	// the CompileError before lowering.
	invalid bool
}

// And builds a flat conjunction from atoms and conjunctions. A disjunction
// operand is rejected at compile time; the positive fragment here never
// distributes And over Or.
func And(operands ...Body) *Conjunction {
	c := &Conjunction{}
	for _, op := range operands {
		switch o := op.(type) {
		case *Atom:
			c.Atoms = append(c.Atoms, o)
		case *Conjunction:
			c.Atoms = append(c.Atoms, o.Atoms...)
			c.invalid = c.invalid || o.invalid
		case *Disjunction:
			c.invalid = true
		}
	}
	return c
}

// And extends the conjunction.
func (c *Conjunction) And(others ...Body) *Conjunction {
	return And(append([]Body{c}, others...)...)
}

// Or disjoins this conjunction with alternative bodies.
func (c *Conjunction) Or(others ...Body) *Disjunction {
	return Or(append([]Body{c}, others...)...)
}

func (c *Conjunction) disjuncts() []*Conjunction {
	return []*Conjunction{c}
}

func (c *Conjunction) String() string {
	parts := make([]string, len(c.Atoms))
	for i, a := range c.Atoms {
		parts[i] = a.String()
	}
	return strings.Join(parts, " & ")
}

// vars returns the names of variables bound anywhere in the conjunction.
func (c *Conjunction) vars() map[string]bool {
	out := make(map[string]bool)
	for _, a := range c.Atoms {
		for name := range a.vars() {
			out[name] = true
		}
	}
	return out
}

// Disjunction is a set of alternative conjunctions, any one of which
// satisfies a rule body. Or flattens nested disjunctions.
type Disjunction struct {
	Alts []*Conjunction
}

// Or builds a flat disjunction. Atoms and conjunctions promote to
// single-alternative disjuncts.
func Or(operands ...Body) *Disjunction {
	d := &Disjunction{}
	for _, op := range operands {
		d.Alts = append(d.Alts, op.disjuncts()...)
	}
	return d
}

// Or extends the disjunction.
func (d *Disjunction) Or(others ...Body) *Disjunction {
	return Or(append([]Body{d}, others...)...)
}

func (d *Disjunction) disjuncts() []*Conjunction {
	return d.Alts
}

func (d *Disjunction) String() string {
	parts := make([]string, len(d.Alts))
	for i, c := range d.Alts {
		parts[i] = "(" + c.String() + ")"
	}
	return strings.Join(parts, " | ")
}

// Rule pairs a head atom over a derived relation with a body. Evaluating
// the rule inserts every head tuple the body entails; rows are additive
// only, duplicates are dropped by the head table's primary key.
type Rule struct {
	Head *Atom
	Body *Disjunction

	// headVars caches the per-rule symbol table: head variable names in
	// projection order, built once at construction.
	headVars []string
}

// NewRule validates and builds a rule. It fails with SchemaError if the
// head targets a base relation, CompileError if the head contains a
// non-variable term or the body is empty, and RangeRestrictionError if any
// head variable is unbound in some disjunct of the body.
func NewRule(head *Atom, body Body) (*Rule, error) {
	if head == nil || body == nil {
		return nil, &CompileError{Msg: "rule needs a head atom and a body"}
	}
	if !head.Rel.Derived {
		return nil, &SchemaError{Relation: head.Rel.Name, Msg: "base relations are never rule targets; declare a relation set"}
	}
	headVars := make([]string, len(head.Terms))
	for i, t := range head.Terms {
		v, ok := t.(Var)
		if !ok {
			return nil, &CompileError{Msg: "rule head terms must all be variables, got " + t.String()}
		}
		headVars[i] = v.Name
	}
	disj := &Disjunction{Alts: body.disjuncts()}
	if len(disj.Alts) == 0 {
		return nil, &CompileError{Msg: "rule body has no disjuncts"}
	}
	for _, alt := range disj.Alts {
		if err := alt.check(); err != nil {
			return nil, err
		}
		bound := alt.vars()
		for _, name := range headVars {
			if !bound[name] {
				return nil, &RangeRestrictionError{Variable: name, Relation: head.Rel.Name}
			}
		}
	}
	return &Rule{Head: head, Body: disj, headVars: headVars}, nil
}

// check rejects malformed conjunctions: the empty conjunction (the join
// identity has no table to scan) and trees where And swallowed a
// disjunction.
func (c *Conjunction) check() error {
	if c.invalid {
		return &CompileError{Msg: "a conjunction cannot contain a disjunction; distribute Or over the alternatives"}
	}
	if len(c.Atoms) == 0 {
		return &CompileError{Msg: "empty conjunction"}
	}
	return nil
}

func (r *Rule) String() string {
	return r.Head.String() + " <= " + r.Body.String()
}
