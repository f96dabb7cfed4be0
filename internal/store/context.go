package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"featherlog/internal/datalog"
	"featherlog/internal/logging"

	"github.com/google/uuid"
)

// Context is a scoped handle over the backing store. All statements a
// context issues run inside one transaction: Store.Do commits when the
// callback returns nil and rolls back when it returns an error or panics,
// so the session is released on scope exit either way.
//
// A context is not safe for concurrent use; the store serializes contexts.
type Context struct {
	store *Store
	tx    *sql.Tx
	id    string

	// declared holds relations cataloged in this transaction; they join
	// the store's cache only if the transaction commits.
	declared map[string]*datalog.Relation
}

// Do runs fn inside a scoped context. The store lock is held for the
// whole scope, so fn must not call back into Store methods that take it
// (Relation, Stats); use the context's own operations instead.
func (s *Store) Do(fn func(*Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	c := &Context{
		store:    s,
		tx:       tx,
		id:       uuid.NewString(),
		declared: make(map[string]*datalog.Relation),
	}
	logging.StoreDebug("[ctx:%s] transaction open", c.id)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			logging.Get(logging.CategoryStore).Error("[ctx:%s] rolled back after panic: %v", c.id, p)
			panic(p)
		}
	}()

	if err := fn(c); err != nil {
		_ = tx.Rollback()
		logging.StoreDebug("[ctx:%s] rolled back: %v", c.id, err)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	for name, rel := range c.declared {
		s.relations[name] = rel
	}
	logging.StoreDebug("[ctx:%s] committed", c.id)
	return nil
}

// Relation declares (or re-opens) a base relation: externally populated,
// never a rule target. Redeclaration with an identical schema is
// idempotent; any other collision is a SchemaError.
func (c *Context) Relation(name string, cols ...datalog.Column) (*datalog.Relation, error) {
	rel, err := datalog.NewRelation(name, cols...)
	if err != nil {
		return nil, err
	}
	return c.declare(rel)
}

// RelationSet declares (or re-opens) a derived relation: rows computed by
// rules, full-row primary key for deduplicating inserts.
func (c *Context) RelationSet(name string, cols ...datalog.Column) (*datalog.Relation, error) {
	rel, err := datalog.NewRelationSet(name, cols...)
	if err != nil {
		return nil, err
	}
	return c.declare(rel)
}

func (c *Context) declare(rel *datalog.Relation) (*datalog.Relation, error) {
	timer := logging.StartTimer(logging.CategorySchema, "Declare "+rel.Name)
	defer timer.Stop()

	if rel.Name == catalogTable {
		return nil, &datalog.SchemaError{Relation: rel.Name, Msg: "name is reserved"}
	}

	if existing, ok := c.lookup(rel.Name); ok {
		if sameSchema(existing, rel) {
			logging.SchemaDebug("[ctx:%s] relation %s already cataloged", c.id, rel.Name)
			return existing, nil
		}
		return nil, &datalog.SchemaError{Relation: rel.Name, Msg: "name already declared with a different schema"}
	}

	if _, err := c.tx.Exec(rel.CreateSQL()); err != nil {
		return nil, fmt.Errorf("failed to create table for %q: %w", rel.Name, err)
	}
	colsJSON, err := json.Marshal(rel.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema for %q: %w", rel.Name, err)
	}
	kind := "base"
	if rel.Derived {
		kind = "derived"
	}
	if _, err := c.tx.Exec(
		"INSERT INTO "+catalogTable+" (name, kind, columns) VALUES (?, ?, ?)",
		rel.Name, kind, string(colsJSON),
	); err != nil {
		return nil, fmt.Errorf("failed to catalog %q: %w", rel.Name, err)
	}

	c.declared[rel.Name] = rel
	logging.Schema("[ctx:%s] declared %s relation %s%v", c.id, kind, rel.Name, rel.Columns)
	return rel, nil
}

// lookup finds a relation in this transaction's declarations or the
// store's committed cache. Store.mu is held for the whole Do scope.
func (c *Context) lookup(name string) (*datalog.Relation, bool) {
	if rel, ok := c.declared[name]; ok {
		return rel, true
	}
	rel, ok := c.store.relations[name]
	return rel, ok
}

func sameSchema(a, b *datalog.Relation) bool {
	if a.Derived != b.Derived || len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}

// Insert bulk-inserts literal rows. Every row is checked against the
// schema before any SQL executes; a bad row fails the whole call with a
// TypeError (or ArityError) and nothing is written. Returns the number of
// rows actually stored; duplicates are silently dropped.
func (c *Context) Insert(rel *datalog.Relation, rows [][]any) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Insert "+rel.Name)
	defer timer.Stop()

	for _, row := range rows {
		if err := rel.CheckRow(row); err != nil {
			return 0, err
		}
	}

	stmt, err := c.tx.Prepare(rel.InsertSQL())
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert for %q: %w", rel.Name, err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		res, err := stmt.Exec(row...)
		if err != nil {
			return inserted, fmt.Errorf("insert into %q: %w", rel.Name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("insert into %q: %w", rel.Name, err)
		}
		inserted += n
	}
	logging.StoreDebug("[ctx:%s] inserted %d/%d rows into %s", c.id, inserted, len(rows), rel.Name)
	return inserted, nil
}

// Select compiles a read-back query over the body and returns a lazy
// result set. The result set is valid only within the enclosing Do scope.
func (c *Context) Select(vars []datalog.Var, body datalog.Body) (*ResultSet, error) {
	stmt, err := datalog.CompileSelect(vars, body)
	if err != nil {
		return nil, err
	}
	logging.CompileDebug("[ctx:%s] select: %s", c.id, stmt.SQL)
	return &ResultSet{ctx: c, stmt: stmt, width: len(vars)}, nil
}

// ResultSet is a lazy, finite, restartable sequence of result tuples.
// Each call to Rows or Each re-executes the compiled query; row order is
// arbitrary.
type ResultSet struct {
	ctx   *Context
	stmt  datalog.Statement
	width int
}

// SQL returns the compiled statement, for inspection.
func (rs *ResultSet) SQL() string { return rs.stmt.SQL }

// Each streams the result tuples through fn. Returning an error from fn
// stops the iteration and propagates the error.
func (rs *ResultSet) Each(fn func(row []any) error) error {
	rows, err := rs.ctx.tx.Query(rs.stmt.SQL, rs.stmt.Args...)
	if err != nil {
		return fmt.Errorf("select failed: %w [%s]", err, rs.stmt.SQL)
	}
	defer rows.Close()

	for rows.Next() {
		row := make([]any, rs.width)
		ptrs := make([]any, rs.width)
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Rows materializes the full result.
func (rs *ResultSet) Rows() ([][]any, error) {
	var out [][]any
	err := rs.Each(func(row []any) error {
		out = append(out, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of result tuples.
func (rs *ResultSet) Count() (int64, error) {
	var n int64
	err := rs.Each(func([]any) error {
		n++
		return nil
	})
	return n, err
}
