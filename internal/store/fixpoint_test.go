package store

import (
	"errors"
	"sort"
	"testing"

	"featherlog/internal/datalog"

	"github.com/google/go-cmp/cmp"
)

// testEdges is the chain 1->2->3->4->5 with a self-loop on 5.
var testEdges = [][]any{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 5}}

// referenceClosure computes the transitive closure of an edge list by
// plain reachability, independently of the SQL engine.
func referenceClosure(edges [][]any) [][2]int64 {
	adj := make(map[int64][]int64)
	for _, e := range edges {
		from, to := int64(e[0].(int)), int64(e[1].(int))
		adj[from] = append(adj[from], to)
	}

	var out [][2]int64
	for from := range adj {
		seen := make(map[int64]bool)
		stack := append([]int64(nil), adj[from]...)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, [2]int64{from, n})
			stack = append(stack, adj[n]...)
		}
	}
	sortPairs(out)
	return out
}

func sortPairs(pairs [][2]int64) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
}

// closureFixture declares edge/path, loads the test edges, and builds the
// rule path(x,z) <= edge(x,z) | (edge(x,y) & path(y,z)).
func closureFixture(t *testing.T, c *Context) (path *datalog.Relation, rule *datalog.Rule) {
	t.Helper()

	edge, err := c.Relation("edge", datalog.Col("x", datalog.TypeInt), datalog.Col("y", datalog.TypeInt))
	if err != nil {
		t.Fatalf("declare edge: %v", err)
	}
	path, err = c.RelationSet("path", datalog.Col("x", datalog.TypeInt), datalog.Col("y", datalog.TypeInt))
	if err != nil {
		t.Fatalf("declare path: %v", err)
	}
	if _, err := c.Insert(edge, testEdges); err != nil {
		t.Fatalf("insert edges: %v", err)
	}

	vs := datalog.Vars("x", "y", "z")
	x, y, z := vs[0], vs[1], vs[2]
	rule, err = datalog.NewRule(
		path.MustApply(x, z),
		edge.MustApply(x, z).Or(edge.MustApply(x, y).And(path.MustApply(y, z))),
	)
	if err != nil {
		t.Fatalf("build rule: %v", err)
	}
	return path, rule
}

func selectPairs(t *testing.T, c *Context, rel *datalog.Relation) [][2]int64 {
	t.Helper()
	vs := datalog.Vars("x", "y")
	rs, err := c.Select(vs, rel.MustApply(vs[0], vs[1]))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	var pairs [][2]int64
	err = rs.Each(func(row []any) error {
		pairs = append(pairs, [2]int64{row[0].(int64), row[1].(int64)})
		return nil
	})
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	sortPairs(pairs)
	return pairs
}

func TestTransitiveClosure(t *testing.T) {
	s := openTestStore(t)

	err := s.Do(func(c *Context) error {
		path, rule := closureFixture(t, c)

		stats, err := c.Run(rule)
		if err != nil {
			return err
		}
		if !stats.Converged {
			t.Errorf("Run did not converge: %+v", stats)
		}

		got := selectPairs(t, c, path)
		want := referenceClosure(testEdges)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("closure mismatch (-want +got):\n%s", diff)
		}

		// The documented witness: 3 reaches 5.
		found := false
		for _, p := range got {
			if p == [2]int64{3, 5} {
				found = true
			}
		}
		if !found {
			t.Error("(3,5) missing from closure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestRunIdempotentAfterConvergence(t *testing.T) {
	s := openTestStore(t)

	err := s.Do(func(c *Context) error {
		_, rule := closureFixture(t, c)

		if _, err := c.Run(rule); err != nil {
			return err
		}

		// With no intervening base change, a second run inserts nothing
		// and converges on its first pass.
		stats, err := c.Run(rule)
		if err != nil {
			return err
		}
		if stats.Rows != 0 || stats.Passes != 1 || !stats.Converged {
			t.Errorf("second run = %+v, want 0 rows in 1 converged pass", stats)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestStepMonotonicity(t *testing.T) {
	s := openTestStore(t)

	err := s.Do(func(c *Context) error {
		path, rule := closureFixture(t, c)

		prev := int64(-1)
		for i := 0; i < 8; i++ {
			if _, err := c.Step(rule); err != nil {
				return err
			}
			n := int64(len(selectPairs(t, c, path)))
			if n < prev {
				t.Errorf("pass %d shrank the relation set: %d -> %d", i+1, prev, n)
			}
			prev = n
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestRunBoundedStopsEarly(t *testing.T) {
	s := openTestStore(t)

	err := s.Do(func(c *Context) error {
		_, rule := closureFixture(t, c)

		// The chain needs several passes; a bound of one stops after one
		// pass without convergence instead of looping.
		stats, err := c.RunBounded(1, rule)
		if err != nil {
			return err
		}
		if stats.Passes != 1 {
			t.Errorf("Passes = %d, want 1", stats.Passes)
		}
		if stats.Converged {
			t.Error("bounded run reported convergence prematurely")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestRunBoundedValidation(t *testing.T) {
	s := openTestStore(t)

	err := s.Do(func(c *Context) error {
		_, rule := closureFixture(t, c)

		var ce *datalog.CompileError
		if _, err := c.RunBounded(0, rule); !errors.As(err, &ce) {
			t.Errorf("zero bound: want CompileError, got %v", err)
		}
		if _, err := c.Run(); !errors.As(err, &ce) {
			t.Errorf("no rules: want CompileError, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestDisjunctDeduplication(t *testing.T) {
	s := openTestStore(t)

	err := s.Do(func(c *Context) error {
		edge, err := c.Relation("edge", datalog.Col("x", datalog.TypeInt), datalog.Col("y", datalog.TypeInt))
		if err != nil {
			return err
		}
		both, err := c.RelationSet("both", datalog.Col("x", datalog.TypeInt), datalog.Col("y", datalog.TypeInt))
		if err != nil {
			return err
		}
		if _, err := c.Insert(edge, [][]any{{1, 2}}); err != nil {
			return err
		}

		// Two disjuncts derive the identical row; it is stored once.
		vs := datalog.Vars("x", "y")
		x, y := vs[0], vs[1]
		rule, err := datalog.NewRule(
			both.MustApply(x, y),
			edge.MustApply(x, y).Or(edge.MustApply(x, y)),
		)
		if err != nil {
			return err
		}
		stats, err := c.Run(rule)
		if err != nil {
			return err
		}
		if stats.Rows != 1 {
			t.Errorf("overlapping disjuncts inserted %d rows, want 1", stats.Rows)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestMutualRecursionSharedHead(t *testing.T) {
	s := openTestStore(t)

	err := s.Do(func(c *Context) error {
		edge, err := c.Relation("edge", datalog.Col("x", datalog.TypeInt), datalog.Col("y", datalog.TypeInt))
		if err != nil {
			return err
		}
		path, err := c.RelationSet("path", datalog.Col("x", datalog.TypeInt), datalog.Col("y", datalog.TypeInt))
		if err != nil {
			return err
		}
		if _, err := c.Insert(edge, testEdges); err != nil {
			return err
		}

		// The closure split into two single-disjunct rules sharing a
		// head; a pass runs both and the pass-wide total drives
		// convergence.
		vs := datalog.Vars("x", "y", "z")
		x, y, z := vs[0], vs[1], vs[2]
		base, err := datalog.NewRule(path.MustApply(x, z), edge.MustApply(x, z))
		if err != nil {
			return err
		}
		recursive, err := datalog.NewRule(
			path.MustApply(x, z),
			edge.MustApply(x, y).And(path.MustApply(y, z)),
		)
		if err != nil {
			return err
		}

		stats, err := c.Run(base, recursive)
		if err != nil {
			return err
		}
		if !stats.Converged {
			t.Errorf("Run did not converge: %+v", stats)
		}

		got := selectPairs(t, c, path)
		want := referenceClosure(testEdges)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("closure mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}

func TestRunSurvivesCommit(t *testing.T) {
	s := openTestStore(t)

	// Derivation in one context is visible to a later one; rows are
	// additive only across passes and across contexts.
	err := s.Do(func(c *Context) error {
		_, rule := closureFixture(t, c)
		_, err := c.Run(rule)
		return err
	})
	if err != nil {
		t.Fatalf("first Do failed: %v", err)
	}

	path, ok := s.Relation("path")
	if !ok {
		t.Fatal("path missing from catalog")
	}
	err = s.Do(func(c *Context) error {
		got := selectPairs(t, c, path)
		want := referenceClosure(testEdges)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("closure mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second Do failed: %v", err)
	}
}
