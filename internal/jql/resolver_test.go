package jql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/jql"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
)

// colorsFunction returns one literal per argument, or "red" and "blue"
// without arguments. It rejects the argument "black".
type colorsFunction struct{}

func (colorsFunction) Name() string { return "colors" }
func (colorsFunction) IsList() bool { return true }

func (colorsFunction) Validate(_ context.Context, _ model.User, op jql.FunctionOperand, _ jql.TerminalClause) *errs.Collection {
	ec := errs.New()
	for _, a := range op.Args {
		if a == "black" {
			ec.AddErrorMessageWithReason("black is not a color", errs.ReasonValidationFailed)
		}
	}
	return ec
}

func (colorsFunction) Values(_ context.Context, _ model.User, op jql.FunctionOperand, _ jql.TerminalClause) ([]jql.QueryLiteral, error) {
	args := op.Args
	if len(args) == 0 {
		args = []string{"red", "blue"}
	}
	out := make([]jql.QueryLiteral, len(args))
	for i, a := range args {
		out[i] = jql.StringLiteral(op, a)
	}
	return out, nil
}

func (colorsFunction) Sanitise(_ context.Context, _ model.User, op jql.FunctionOperand) jql.FunctionOperand {
	return jql.Func(op.Function, "hidden")
}

func newResolver(t *testing.T) *jql.Resolver {
	t.Helper()
	reg, err := jql.NewFunctionRegistry(colorsFunction{}, jql.CurrentUserFunction{})
	require.NoError(t, err)
	return jql.NewResolver(reg, logger.Nop())
}

func strs(lits []jql.QueryLiteral) []string {
	out := make([]string, len(lits))
	for i, l := range lits {
		out[i] = l.String()
	}
	return out
}

func TestResolverValues(t *testing.T) {
	r := newResolver(t)
	ctx := context.Background()
	alice := model.User{Name: "alice"}
	clause := jql.Clause("color", jql.OpIn, nil)

	tests := []struct {
		name string
		op   jql.Operand
		want []string
	}{
		{"string", jql.String("green"), []string{"green"}},
		{"int", jql.Int(3), []string{"3"}},
		{"empty", jql.Empty, []string{"EMPTY"}},
		{"function", jql.Func("COLORS"), []string{"red", "blue"}},
		{"nested list", jql.List(jql.String("a"), jql.List(jql.Int(1), jql.Func("currentUser")), jql.Empty), []string{"a", "1", "alice", "EMPTY"}},
		{"unknown function", jql.Func("nope"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals, err := r.Values(ctx, alice, tt.op, clause)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, vals)
				return
			}
			assert.Equal(t, tt.want, strs(vals))
		})
	}

	vals, err := r.Values(ctx, alice, jql.String("x"), clause)
	require.NoError(t, err)
	assert.Equal(t, jql.String("x"), vals[0].Source)

	_, err = r.Values(ctx, alice, nil, clause)
	assert.Error(t, err)
}

func TestResolverValidate(t *testing.T) {
	r := newResolver(t)
	ctx := context.Background()
	clause := jql.Clause("color", jql.OpIn, nil)

	assert.False(t, r.Validate(ctx, model.User{}, jql.String("x"), clause).HasAnyErrors())
	assert.False(t, r.Validate(ctx, model.User{}, jql.Func("colors", "red"), clause).HasAnyErrors())

	ec := r.Validate(ctx, model.User{}, jql.Func("nope", "1"), clause)
	require.True(t, ec.HasAnyErrors())
	assert.Contains(t, ec.ErrorMessages()[0], "nope")
	assert.Contains(t, ec.ErrorMessages()[0], "color")

	ec = r.Validate(ctx, model.User{}, jql.List(jql.Func("colors", "black"), jql.Func("missing")), clause)
	assert.Len(t, ec.ErrorMessages(), 2)
	assert.True(t, ec.HasReason(errs.ReasonValidationFailed))

	ec = r.Validate(ctx, model.User{}, jql.Func("currentUser", "extra"), clause)
	assert.True(t, ec.HasAnyErrors())
}

func TestResolverPredicates(t *testing.T) {
	r := newResolver(t)

	assert.True(t, r.IsEmptyOperand(jql.Empty))
	assert.False(t, r.IsEmptyOperand(jql.String("")))

	assert.True(t, r.IsListOperand(jql.List()))
	assert.True(t, r.IsListOperand(jql.Func("colors")))
	assert.False(t, r.IsListOperand(jql.Func("currentUser")))
	assert.False(t, r.IsListOperand(jql.Func("nope")))

	assert.True(t, r.IsFunctionOperand(jql.Func("colors")))
	assert.False(t, r.IsFunctionOperand(jql.Func("nope")))
	assert.False(t, r.IsFunctionOperand(jql.String("colors")))

	assert.True(t, r.IsValidOperand(jql.Int(1)))
	assert.False(t, r.IsValidOperand(jql.Func("nope")))
}

func TestResolverSingleValue(t *testing.T) {
	r := newResolver(t)
	ctx := context.Background()
	clause := jql.Clause("assignee", jql.OpEquals, nil)

	lit, err := r.SingleValue(ctx, model.User{Name: "bob"}, jql.Func("currentUser"), clause)
	require.NoError(t, err)
	require.NotNil(t, lit)
	assert.Equal(t, "bob", lit.AsString())

	lit, err = r.SingleValue(ctx, model.User{}, jql.Func("currentUser"), clause)
	require.NoError(t, err)
	assert.Nil(t, lit)

	_, err = r.SingleValue(ctx, model.User{}, jql.Func("colors"), clause)
	assert.ErrorIs(t, err, jql.ErrMultipleValues)
}

func TestSanitise(t *testing.T) {
	r := newResolver(t)
	ctx := context.Background()

	assert.Equal(t, jql.Func("colors", "hidden"), r.SanitiseFunctionOperand(ctx, model.User{}, jql.Func("colors", "red")))
	assert.Equal(t, jql.Func("currentUser"), r.SanitiseFunctionOperand(ctx, model.User{}, jql.Func("currentUser")))
	assert.Equal(t, jql.Func("nope", "x"), r.SanitiseFunctionOperand(ctx, model.User{}, jql.Func("nope", "x")))

	got := r.SanitiseOperand(ctx, model.User{}, jql.List(jql.String("a"), jql.Func("colors", "red")))
	assert.Equal(t, jql.List(jql.String("a"), jql.Func("colors", "hidden")), got)
}

func TestRegistry(t *testing.T) {
	reg, err := jql.NewFunctionRegistry(jql.CurrentUserFunction{})
	require.NoError(t, err)
	assert.Error(t, reg.Register(jql.CurrentUserFunction{}))
	require.NoError(t, reg.Register(jql.NowFunction{}))
	assert.Equal(t, []string{"currentUser", "now"}, reg.Names())

	fn, ok := reg.Get("CURRENTUSER")
	require.True(t, ok)
	assert.Equal(t, "currentUser", fn.Name())
}
