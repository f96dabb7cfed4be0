// Package featherlog is the public surface of the featherlog engine.
// It re-exports the rule algebra from internal/datalog and the execution
// surface from internal/store so external code can use the engine without
// violating Go's internal package encapsulation rules.
//
// Typical use:
//
//	st, _ := featherlog.Open(":memory:")
//	defer st.Close()
//
//	x, y, z := featherlog.Var{Name: "x"}, featherlog.Var{Name: "y"}, featherlog.Var{Name: "z"}
//	_ = st.Do(func(c *featherlog.Context) error {
//		edge, _ := c.Relation("edge", featherlog.Col("x", featherlog.TypeInt), featherlog.Col("y", featherlog.TypeInt))
//		path, _ := c.RelationSet("path", featherlog.Col("x", featherlog.TypeInt), featherlog.Col("y", featherlog.TypeInt))
//		_, _ = c.Insert(edge, [][]any{{1, 2}, {2, 3}})
//
//		closure, _ := featherlog.NewRule(
//			path.MustApply(x, z),
//			edge.MustApply(x, z).Or(edge.MustApply(x, y).And(path.MustApply(y, z))),
//		)
//		_, err := c.Run(closure)
//		return err
//	})
package featherlog

import (
	"featherlog/internal/config"
	"featherlog/internal/datalog"
	"featherlog/internal/store"
)

// Term algebra.
type (
	Term  = datalog.Term
	Var   = datalog.Var
	Const = datalog.Const
)

// Schema.
type (
	Type     = datalog.Type
	Column   = datalog.Column
	Relation = datalog.Relation
)

// Rule algebra.
type (
	Atom        = datalog.Atom
	Conjunction = datalog.Conjunction
	Disjunction = datalog.Disjunction
	Rule        = datalog.Rule
	Body        = datalog.Body
	Statement   = datalog.Statement
)

// Errors.
type (
	SchemaError           = datalog.SchemaError
	ArityError            = datalog.ArityError
	TypeError             = datalog.TypeError
	RangeRestrictionError = datalog.RangeRestrictionError
	CompileError          = datalog.CompileError
)

// Execution.
type (
	Store     = store.Store
	Context   = store.Context
	ResultSet = store.ResultSet
	RunStats  = store.RunStats
	Config    = config.Config
)

// Supported column types.
const (
	TypeInteger = datalog.TypeInteger
	TypeInt     = datalog.TypeInt
	TypeBigInt  = datalog.TypeBigInt
	TypeReal    = datalog.TypeReal
	TypeFloat   = datalog.TypeFloat
	TypeDouble  = datalog.TypeDouble
	TypeText    = datalog.TypeText
	TypeVarchar = datalog.TypeVarchar
	TypeChar    = datalog.TypeChar
	TypeBlob    = datalog.TypeBlob
	TypeBoolean = datalog.TypeBoolean
	TypeNumeric = datalog.TypeNumeric
)

// Constructors and helpers.
var (
	Vars           = datalog.Vars
	Lit            = datalog.Lit
	Col            = datalog.Col
	NewRelation    = datalog.NewRelation
	NewRelationSet = datalog.NewRelationSet
	And            = datalog.And
	Or             = datalog.Or
	NewRule        = datalog.NewRule
	CompileRule    = datalog.CompileRule
	CompileSelect  = datalog.CompileSelect

	Open           = store.Open
	OpenWithConfig = store.OpenWithConfig
	DefaultConfig  = config.DefaultConfig
	LoadConfig     = config.Load
)
