package datalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRelationValidation(t *testing.T) {
	tests := []struct {
		name    string
		relName string
		cols    []Column
		wantErr bool
	}{
		{"Valid", "edge", []Column{Col("x", TypeInt), Col("y", TypeInt)}, false},
		{"EmptyName", "", []Column{Col("x", TypeInt)}, true},
		{"BadIdent", "my table", []Column{Col("x", TypeInt)}, true},
		{"LeadingDigit", "1edge", []Column{Col("x", TypeInt)}, true},
		{"ReservedWord", "select", []Column{Col("x", TypeInt)}, true},
		{"NoColumns", "edge", nil, true},
		{"DuplicateColumn", "edge", []Column{Col("x", TypeInt), Col("x", TypeInt)}, true},
		{"BadColumnName", "edge", []Column{Col("x;drop", TypeInt)}, true},
		{"UnsupportedType", "edge", []Column{Col("x", Type("JSONB"))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRelation(tt.relName, tt.cols...)
			if tt.wantErr {
				var se *SchemaError
				require.Error(t, err)
				assert.True(t, errors.As(err, &se), "want SchemaError, got %T", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateSQL(t *testing.T) {
	edge, err := NewRelation("edge", Col("x", TypeInt), Col("y", TypeInt))
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS edge (x INT, y INT, UNIQUE (x, y))",
		edge.CreateSQL())

	path, err := NewRelationSet("path", Col("x", TypeInt), Col("y", TypeInt))
	require.NoError(t, err)
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS path (x INT, y INT, PRIMARY KEY (x, y))",
		path.CreateSQL())
}

func TestInsertSQL(t *testing.T) {
	edge, err := NewRelation("edge", Col("x", TypeInt), Col("y", TypeInt))
	require.NoError(t, err)
	assert.Equal(t, "INSERT OR IGNORE INTO edge VALUES (?, ?)", edge.InsertSQL())
}

func TestCheckRow(t *testing.T) {
	rel, err := NewRelation("person", Col("name", TypeText), Col("age", TypeInt))
	require.NoError(t, err)

	assert.NoError(t, rel.CheckRow([]any{"ada", 36}))

	var ae *ArityError
	err = rel.CheckRow([]any{"ada"})
	assert.True(t, errors.As(err, &ae), "want ArityError, got %v", err)

	var te *TypeError
	err = rel.CheckRow([]any{"ada", "old"})
	assert.True(t, errors.As(err, &te), "want TypeError, got %v", err)

	err = rel.CheckRow([]any{"ada", struct{}{}})
	assert.True(t, errors.As(err, &te), "want TypeError for unbindable value, got %v", err)
}

func TestAffinityAcceptance(t *testing.T) {
	// Integer literals widen into REAL and NUMERIC columns.
	assert.True(t, AffinityReal.accepts(AffinityInteger))
	assert.True(t, AffinityNumeric.accepts(AffinityInteger))
	assert.True(t, AffinityNumeric.accepts(AffinityReal))
	assert.False(t, AffinityInteger.accepts(AffinityReal))
	assert.False(t, AffinityText.accepts(AffinityInteger))
}
