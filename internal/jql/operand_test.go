package jql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayString(t *testing.T) {
	tests := []struct {
		op   Operand
		want string
	}{
		{String("HSP"), `"HSP"`},
		{Int(42), "42"},
		{Empty, "EMPTY"},
		{List(String("a"), Int(1), Empty), `("a", 1, EMPTY)`},
		{Func("releasedVersions", "HSP", "Monkey Business"), `releasedVersions(HSP, "Monkey Business")`},
		{Func("now"), "now()"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.DisplayString())
	}
}

func TestClauseString(t *testing.T) {
	c := Clause("fixVersion", OpIn, Func("unreleasedVersions", "HSP"))
	assert.Equal(t, "fixVersion in unreleasedVersions(HSP)", c.String())
}

func TestQueryLiteral(t *testing.T) {
	s := StringLiteral(String("x"), "x")
	v, ok := s.StringValue()
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = s.IntValue()
	assert.False(t, ok)

	n := IntLiteral(Int(7), 7)
	assert.Equal(t, "7", n.AsString())

	e := EmptyLiteral(Empty)
	assert.True(t, e.IsEmpty())
	assert.Equal(t, "", e.AsString())
	assert.Equal(t, "EMPTY", e.String())
}
