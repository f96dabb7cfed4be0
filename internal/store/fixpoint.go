package store

import (
	"fmt"

	"featherlog/internal/datalog"
	"featherlog/internal/logging"
)

// RunStats reports the outcome of a fixpoint run.
type RunStats struct {
	Passes    int   // passes executed
	Rows      int64 // total rows inserted across all passes
	Converged bool  // true if the last pass inserted zero rows
}

// Step executes one fixpoint pass: every rule's compiled insert runs once,
// in the given order, and the pass-wide total of genuinely new rows is
// returned. Because each insert is duplicate-ignoring and additive-only,
// rule order within a pass does not affect the fixpoint.
func (c *Context) Step(rules ...*datalog.Rule) (int64, error) {
	stmts, err := compileRules(rules)
	if err != nil {
		return 0, err
	}
	return c.step(rules, stmts)
}

// Run drives the rules to their least fixpoint: passes repeat until one
// inserts zero new rows. The store's configured MaxPasses bounds the run
// so a mis-specified rule set cannot loop forever.
func (c *Context) Run(rules ...*datalog.Rule) (RunStats, error) {
	return c.RunBounded(c.store.maxPasses, rules...)
}

// RunBounded is Run with a caller-supplied pass bound. A bound lower than
// the number of passes needed leaves Converged false; the rows inserted so
// far stay committed with the enclosing context (monotone semantics: rows
// are only ever added).
func (c *Context) RunBounded(maxPasses int, rules ...*datalog.Rule) (RunStats, error) {
	timer := logging.StartTimer(logging.CategoryFixpoint, "Run")
	defer timer.StopWithInfo()

	var stats RunStats
	if maxPasses <= 0 {
		return stats, &datalog.CompileError{Msg: fmt.Sprintf("pass bound must be positive, got %d", maxPasses)}
	}
	if len(rules) == 0 {
		return stats, &datalog.CompileError{Msg: "run needs at least one rule"}
	}

	stmts, err := compileRules(rules)
	if err != nil {
		return stats, err
	}

	for stats.Passes < maxPasses {
		inserted, err := c.step(rules, stmts)
		if err != nil {
			return stats, err
		}
		stats.Passes++
		stats.Rows += inserted
		logging.FixpointDebug("[ctx:%s] pass %d inserted %d rows", c.id, stats.Passes, inserted)
		if inserted == 0 {
			stats.Converged = true
			break
		}
	}

	if stats.Converged {
		logging.Fixpoint("[ctx:%s] converged after %d passes, %d rows", c.id, stats.Passes, stats.Rows)
	} else {
		logging.Get(logging.CategoryFixpoint).Warn("[ctx:%s] pass bound %d reached without convergence (%d rows)", c.id, maxPasses, stats.Rows)
	}
	return stats, nil
}

// compileRules lowers every rule up front, so a malformed rule fails the
// call before any statement reaches the database.
func compileRules(rules []*datalog.Rule) ([]datalog.Statement, error) {
	stmts := make([]datalog.Statement, len(rules))
	for i, r := range rules {
		stmt, err := datalog.CompileRule(r)
		if err != nil {
			return nil, err
		}
		logging.CompileDebug("rule %s: %s", r.Head.Rel.Name, stmt.SQL)
		stmts[i] = stmt
	}
	return stmts, nil
}

// step executes the already-compiled statements once. A backing-store
// error is fatal to the pass and reported with the offending rule's head.
func (c *Context) step(rules []*datalog.Rule, stmts []datalog.Statement) (int64, error) {
	var inserted int64
	for i, stmt := range stmts {
		res, err := c.tx.Exec(stmt.SQL, stmt.Args...)
		if err != nil {
			return inserted, fmt.Errorf("fixpoint pass on %q: %w [%s]", rules[i].Head.Rel.Name, err, stmt.SQL)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("fixpoint pass on %q: %w", rules[i].Head.Rel.Name, err)
		}
		inserted += n
	}
	return inserted, nil
}
