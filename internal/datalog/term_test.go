package datalog

import (
	"testing"
)

func TestVars(t *testing.T) {
	vs := Vars("x", "y", "z")
	if len(vs) != 3 {
		t.Fatalf("Vars returned %d variables, want 3", len(vs))
	}
	for i, name := range []string{"x", "y", "z"} {
		if vs[i].Name != name {
			t.Errorf("Vars[%d].Name = %q, want %q", i, vs[i].Name, name)
		}
	}
}

func TestLitAffinity(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  Affinity
	}{
		{"Int", 42, AffinityInteger},
		{"Int64", int64(42), AffinityInteger},
		{"Bool", true, AffinityInteger},
		{"Float", 3.14, AffinityReal},
		{"String", "hello", AffinityText},
		{"Bytes", []byte{0x01}, AffinityBlob},
		{"Nil", nil, AffinityInvalid},
		{"Struct", struct{}{}, AffinityInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Lit(tt.value).Affinity; got != tt.want {
				t.Errorf("Lit(%v).Affinity = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestTermNormalization(t *testing.T) {
	v := Var{Name: "x"}
	if _, ok := term(v).(Var); !ok {
		t.Error("term(Var) should pass through")
	}
	if _, ok := term(42).(Const); !ok {
		t.Error("term(42) should wrap as Const")
	}
	c := Lit("s")
	if got := term(c); got != c {
		t.Errorf("term(Const) = %v, want pass-through", got)
	}
}

func TestVarIdentityByName(t *testing.T) {
	// Two Vars with the same name are the same variable for join
	// purposes; identity is by name, not by allocation.
	a := Vars("x")[0]
	b := Vars("x")[0]
	if a != b {
		t.Error("variables with the same name should compare equal")
	}
}
