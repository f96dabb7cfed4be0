package featherlog_test

import (
	"testing"

	"featherlog/pkg/featherlog"
)

// TestPublicSurface drives the whole engine through the exported facade:
// declare, load, run to fixpoint, read back.
func TestPublicSurface(t *testing.T) {
	st, err := featherlog.Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	vs := featherlog.Vars("x", "y", "z")
	x, y, z := vs[0], vs[1], vs[2]

	err = st.Do(func(c *featherlog.Context) error {
		edge, err := c.Relation("edge", featherlog.Col("x", featherlog.TypeInt), featherlog.Col("y", featherlog.TypeInt))
		if err != nil {
			return err
		}
		path, err := c.RelationSet("path", featherlog.Col("x", featherlog.TypeInt), featherlog.Col("y", featherlog.TypeInt))
		if err != nil {
			return err
		}
		if _, err := c.Insert(edge, [][]any{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 5}}); err != nil {
			return err
		}

		closure, err := featherlog.NewRule(
			path.MustApply(x, z),
			edge.MustApply(x, z).Or(edge.MustApply(x, y).And(path.MustApply(y, z))),
		)
		if err != nil {
			return err
		}
		stats, err := c.Run(closure)
		if err != nil {
			return err
		}
		if !stats.Converged {
			t.Errorf("run did not converge: %+v", stats)
		}

		rs, err := c.Select([]featherlog.Var{x, y}, path.MustApply(x, y))
		if err != nil {
			return err
		}
		n, err := rs.Count()
		if err != nil {
			return err
		}
		// Closure of the 5-chain with a loop on 5: 11 pairs.
		if n != 11 {
			t.Errorf("closure has %d pairs, want 11", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
}
