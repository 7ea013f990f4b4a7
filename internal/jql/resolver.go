package jql

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
)

// ErrMultipleValues is returned by SingleValue when an operand resolves to
// more than one literal.
var ErrMultipleValues = errors.New("operand resolves to more than one value")

// Resolver dispatches operands to their handlers.
type Resolver struct {
	registry *FunctionRegistry
	log      *logger.Logger
}

// NewResolver creates a Resolver over the functions in registry.
func NewResolver(registry *FunctionRegistry, log *logger.Logger) *Resolver {
	return &Resolver{registry: registry, log: log}
}

// Registry returns the function registry.
func (r *Resolver) Registry() *FunctionRegistry { return r.registry }

// handler returns the handler for op, or nil for an unknown function.
func (r *Resolver) handler(op Operand) OperandHandler {
	switch o := op.(type) {
	case SingleValueOperand:
		return singleValueHandler{}
	case MultiValueOperand:
		return multiValueHandler{resolver: r}
	case EmptyOperand:
		return emptyHandler{}
	case FunctionOperand:
		if fn, ok := r.registry.Get(o.Function); ok {
			return functionHandler{fn: fn}
		}
	}
	return nil
}

// Values resolves op to literals. An unknown function resolves to nil.
func (r *Resolver) Values(ctx context.Context, user model.User, op Operand, clause TerminalClause) ([]QueryLiteral, error) {
	if op == nil {
		return nil, fmt.Errorf("resolving clause %s: nil operand", clause.Field)
	}
	h := r.handler(op)
	if h == nil {
		r.log.Debug("unknown jql function", "function", op.Name(), "clause", clause.Field)
		return nil, nil
	}
	vals, err := h.Values(ctx, user, op, clause)
	if err != nil {
		return nil, fmt.Errorf("resolving %s in clause %s: %w", op.DisplayString(), clause.Field, err)
	}
	return vals, nil
}

// Validate checks op. Unknown functions are reported by name.
func (r *Resolver) Validate(ctx context.Context, user model.User, op Operand, clause TerminalClause) *errs.Collection {
	ec := errs.New()
	if op == nil {
		ec.AddErrorMessageWithReason(fmt.Sprintf("Clause '%s' has no operand.", clause.Field), errs.ReasonValidationFailed)
		return ec
	}
	h := r.handler(op)
	if h == nil {
		ec.AddErrorMessageWithReason(
			fmt.Sprintf("Unable to find JQL function '%s' in field '%s'.", op.DisplayString(), clause.Field),
			errs.ReasonValidationFailed)
		return ec
	}
	ec.AddCollection(h.Validate(ctx, user, op, clause))
	return ec
}

// IsEmptyOperand reports whether op is EMPTY.
func (r *Resolver) IsEmptyOperand(op Operand) bool {
	h := r.handler(op)
	return h != nil && h.IsEmpty()
}

// IsListOperand reports whether op can resolve to several values.
func (r *Resolver) IsListOperand(op Operand) bool {
	h := r.handler(op)
	return h != nil && h.IsList()
}

// IsFunctionOperand reports whether op is a call to a known function.
func (r *Resolver) IsFunctionOperand(op Operand) bool {
	h := r.handler(op)
	return h != nil && h.IsFunction()
}

// IsValidOperand reports whether op has a handler.
func (r *Resolver) IsValidOperand(op Operand) bool {
	return r.handler(op) != nil
}

// SingleValue resolves op expecting at most one literal. It returns nil
// when op resolves to nothing.
func (r *Resolver) SingleValue(ctx context.Context, user model.User, op Operand, clause TerminalClause) (*QueryLiteral, error) {
	vals, err := r.Values(ctx, user, op, clause)
	if err != nil {
		return nil, err
	}
	switch len(vals) {
	case 0:
		return nil, nil
	case 1:
		return &vals[0], nil
	}
	return nil, fmt.Errorf("%s: %w", op.DisplayString(), ErrMultipleValues)
}

// SanitiseFunctionOperand lets the function rewrite arguments user may
// not see. Unknown functions and functions without a sanitiser are
// returned unchanged.
func (r *Resolver) SanitiseFunctionOperand(ctx context.Context, user model.User, op FunctionOperand) FunctionOperand {
	fn, ok := r.registry.Get(op.Function)
	if !ok {
		return op
	}
	s, ok := fn.(Sanitiser)
	if !ok {
		return op
	}
	return s.Sanitise(ctx, user, op)
}

// SanitiseOperand applies SanitiseFunctionOperand to every function in
// op, descending into lists.
func (r *Resolver) SanitiseOperand(ctx context.Context, user model.User, op Operand) Operand {
	switch o := op.(type) {
	case FunctionOperand:
		return r.SanitiseFunctionOperand(ctx, user, o)
	case MultiValueOperand:
		out := make([]Operand, len(o.Values))
		for i, v := range o.Values {
			out[i] = r.SanitiseOperand(ctx, user, v)
		}
		return MultiValueOperand{Values: out}
	}
	return op
}
