// Package jql resolves the operands of JQL clauses to literal values.
//
// An operand is the right-hand side of a clause such as
// fixVersion in releasedVersions(HSP). Resolution turns it into the
// QueryLiterals a search is built from, dispatching on whether the
// operand is a single value, a list, a function call or EMPTY.
package jql

import (
	"strconv"
	"strings"
)

// Operand is the right-hand side of a clause.
type Operand interface {
	// Name identifies the operand kind; for functions it is the function
	// name.
	Name() string
	// DisplayString renders the operand as it would appear in a query.
	DisplayString() string
	operand()
}

// SingleValueOperand is a string or integer literal.
type SingleValueOperand struct {
	str *string
	num *int64
}

// String returns a string operand.
func String(s string) SingleValueOperand { return SingleValueOperand{str: &s} }

// Int returns an integer operand.
func Int(n int64) SingleValueOperand { return SingleValueOperand{num: &n} }

// StringValue returns the string value and whether the operand holds one.
func (o SingleValueOperand) StringValue() (string, bool) {
	if o.str == nil {
		return "", false
	}
	return *o.str, true
}

// IntValue returns the integer value and whether the operand holds one.
func (o SingleValueOperand) IntValue() (int64, bool) {
	if o.num == nil {
		return 0, false
	}
	return *o.num, true
}

func (SingleValueOperand) Name() string { return "SingleValueOperand" }

func (o SingleValueOperand) DisplayString() string {
	if o.num != nil {
		return strconv.FormatInt(*o.num, 10)
	}
	if o.str != nil {
		return strconv.Quote(*o.str)
	}
	return `""`
}

func (SingleValueOperand) operand() {}

// MultiValueOperand is a parenthesised list of operands.
type MultiValueOperand struct {
	Values []Operand
}

// List returns a MultiValueOperand of the given operands.
func List(values ...Operand) MultiValueOperand { return MultiValueOperand{Values: values} }

// Strings returns a MultiValueOperand of string literals.
func Strings(values ...string) MultiValueOperand {
	ops := make([]Operand, len(values))
	for i, v := range values {
		ops[i] = String(v)
	}
	return MultiValueOperand{Values: ops}
}

func (MultiValueOperand) Name() string { return "MultiValueOperand" }

func (o MultiValueOperand) DisplayString() string {
	parts := make([]string, len(o.Values))
	for i, v := range o.Values {
		parts[i] = v.DisplayString()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (MultiValueOperand) operand() {}

// FunctionOperand is a call such as releasedVersions(HSP).
type FunctionOperand struct {
	Function string
	Args     []string
}

// Func returns a FunctionOperand.
func Func(name string, args ...string) FunctionOperand {
	return FunctionOperand{Function: name, Args: args}
}

func (o FunctionOperand) Name() string { return o.Function }

func (o FunctionOperand) DisplayString() string {
	args := make([]string, len(o.Args))
	for i, a := range o.Args {
		args[i] = quoteArg(a)
	}
	return o.Function + "(" + strings.Join(args, ", ") + ")"
}

func (FunctionOperand) operand() {}

func quoteArg(a string) string {
	if a != "" && !strings.ContainsAny(a, " ,()\"'") {
		return a
	}
	return strconv.Quote(a)
}

// EmptyOperand matches fields with no value.
type EmptyOperand struct{}

// Empty is the EMPTY operand.
var Empty = EmptyOperand{}

func (EmptyOperand) Name() string          { return "EMPTY" }
func (EmptyOperand) DisplayString() string { return "EMPTY" }
func (EmptyOperand) operand()              {}

// Operator joins a clause's field and operand.
type Operator string

const (
	OpEquals    Operator = "="
	OpNotEquals Operator = "!="
	OpIn        Operator = "in"
	OpNotIn     Operator = "not in"
	OpIs        Operator = "is"
	OpIsNot     Operator = "is not"
	OpLike      Operator = "~"
	OpLess      Operator = "<"
	OpGreater   Operator = ">"
)

// TerminalClause is a single field condition.
type TerminalClause struct {
	Field    string
	Operator Operator
	Operand  Operand
}

// Clause builds a TerminalClause.
func Clause(field string, op Operator, operand Operand) TerminalClause {
	return TerminalClause{Field: field, Operator: op, Operand: operand}
}

func (c TerminalClause) String() string {
	operand := "<nil>"
	if c.Operand != nil {
		operand = c.Operand.DisplayString()
	}
	return c.Field + " " + string(c.Operator) + " " + operand
}
