package jql

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
)

// Function implements a JQL function such as currentUser().
type Function interface {
	// Name is the function name used in queries.
	Name() string
	// IsList reports whether the function may yield several values.
	IsList() bool
	Validate(ctx context.Context, user model.User, op FunctionOperand, clause TerminalClause) *errs.Collection
	Values(ctx context.Context, user model.User, op FunctionOperand, clause TerminalClause) ([]QueryLiteral, error)
}

// Sanitiser is implemented by functions whose arguments may reveal
// information a user is not allowed to see. Sanitise returns the operand
// with such arguments rewritten.
type Sanitiser interface {
	Sanitise(ctx context.Context, user model.User, op FunctionOperand) FunctionOperand
}

// FunctionRegistry holds the available functions keyed by
// case-insensitive name.
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry returns a registry holding fns.
func NewFunctionRegistry(fns ...Function) (*FunctionRegistry, error) {
	r := &FunctionRegistry{funcs: make(map[string]Function)}
	for _, fn := range fns {
		if err := r.Register(fn); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds fn. Names must be unique ignoring case.
func (r *FunctionRegistry) Register(fn Function) error {
	key := strings.ToLower(fn.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[key]; ok {
		return fmt.Errorf("jql function %q already registered", fn.Name())
	}
	r.funcs[key] = fn
	return nil
}

// Get returns the function called name.
func (r *FunctionRegistry) Get(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[strings.ToLower(name)]
	return fn, ok
}

// Names lists the registered function names in sorted order.
func (r *FunctionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for _, fn := range r.funcs {
		out = append(out, fn.Name())
	}
	sort.Strings(out)
	return out
}

// argCount records an error unless op has between lo and hi
// arguments; hi < 0 means unbounded.
func argCount(ec *errs.Collection, op FunctionOperand, lo, hi int) bool {
	n := len(op.Args)
	switch {
	case hi == 0 && n > 0:
		ec.AddErrorMessageWithReason(
			fmt.Sprintf("Function '%s' expected no arguments but received %d.", op.Function, n),
			errs.ReasonValidationFailed)
	case n < lo:
		ec.AddErrorMessageWithReason(
			fmt.Sprintf("Function '%s' expected at least %d %s but received %d.", op.Function, lo, pluralArgs(lo), n),
			errs.ReasonValidationFailed)
	case hi > 0 && n > hi:
		ec.AddErrorMessageWithReason(
			fmt.Sprintf("Function '%s' expected at most %d %s but received %d.", op.Function, hi, pluralArgs(hi), n),
			errs.ReasonValidationFailed)
	default:
		return true
	}
	return false
}

func pluralArgs(n int) string {
	if n == 1 {
		return "argument"
	}
	return "arguments"
}
