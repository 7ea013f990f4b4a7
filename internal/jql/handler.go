package jql

import (
	"context"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
)

// OperandHandler resolves and validates one kind of operand.
type OperandHandler interface {
	Validate(ctx context.Context, user model.User, op Operand, clause TerminalClause) *errs.Collection
	Values(ctx context.Context, user model.User, op Operand, clause TerminalClause) ([]QueryLiteral, error)
	IsList() bool
	IsEmpty() bool
	IsFunction() bool
}

type singleValueHandler struct{}

func (singleValueHandler) Validate(context.Context, model.User, Operand, TerminalClause) *errs.Collection {
	return errs.New()
}

func (singleValueHandler) Values(_ context.Context, _ model.User, op Operand, _ TerminalClause) ([]QueryLiteral, error) {
	single := op.(SingleValueOperand)
	if n, ok := single.IntValue(); ok {
		return []QueryLiteral{IntLiteral(op, n)}, nil
	}
	s, _ := single.StringValue()
	return []QueryLiteral{StringLiteral(op, s)}, nil
}

func (singleValueHandler) IsList() bool     { return false }
func (singleValueHandler) IsEmpty() bool    { return false }
func (singleValueHandler) IsFunction() bool { return false }

type emptyHandler struct{}

func (emptyHandler) Validate(context.Context, model.User, Operand, TerminalClause) *errs.Collection {
	return errs.New()
}

func (emptyHandler) Values(_ context.Context, _ model.User, op Operand, _ TerminalClause) ([]QueryLiteral, error) {
	return []QueryLiteral{EmptyLiteral(op)}, nil
}

func (emptyHandler) IsList() bool     { return false }
func (emptyHandler) IsEmpty() bool    { return true }
func (emptyHandler) IsFunction() bool { return false }

// multiValueHandler resolves each element through the resolver so that
// lists may nest functions and other lists.
type multiValueHandler struct {
	resolver *Resolver
}

func (h multiValueHandler) Validate(ctx context.Context, user model.User, op Operand, clause TerminalClause) *errs.Collection {
	ec := errs.New()
	for _, v := range op.(MultiValueOperand).Values {
		ec.AddCollection(h.resolver.Validate(ctx, user, v, clause))
	}
	return ec
}

func (h multiValueHandler) Values(ctx context.Context, user model.User, op Operand, clause TerminalClause) ([]QueryLiteral, error) {
	var out []QueryLiteral
	for _, v := range op.(MultiValueOperand).Values {
		vals, err := h.resolver.Values(ctx, user, v, clause)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

func (multiValueHandler) IsList() bool     { return true }
func (multiValueHandler) IsEmpty() bool    { return false }
func (multiValueHandler) IsFunction() bool { return false }

// functionHandler adapts a Function to OperandHandler.
type functionHandler struct {
	fn Function
}

func (h functionHandler) Validate(ctx context.Context, user model.User, op Operand, clause TerminalClause) *errs.Collection {
	ec := h.fn.Validate(ctx, user, op.(FunctionOperand), clause)
	if ec == nil {
		return errs.New()
	}
	return ec
}

func (h functionHandler) Values(ctx context.Context, user model.User, op Operand, clause TerminalClause) ([]QueryLiteral, error) {
	return h.fn.Values(ctx, user, op.(FunctionOperand), clause)
}

func (h functionHandler) IsList() bool   { return h.fn.IsList() }
func (functionHandler) IsEmpty() bool    { return false }
func (functionHandler) IsFunction() bool { return true }
