package jql

import "strconv"

// QueryLiteral is a resolved value tagged with the operand it came from.
// It holds a string, an integer or nothing (the empty literal).
type QueryLiteral struct {
	Source Operand
	str    *string
	num    *int64
}

// StringLiteral returns a literal holding s.
func StringLiteral(source Operand, s string) QueryLiteral {
	return QueryLiteral{Source: source, str: &s}
}

// IntLiteral returns a literal holding n.
func IntLiteral(source Operand, n int64) QueryLiteral {
	return QueryLiteral{Source: source, num: &n}
}

// EmptyLiteral returns a literal holding no value.
func EmptyLiteral(source Operand) QueryLiteral {
	return QueryLiteral{Source: source}
}

// IsEmpty reports whether the literal holds no value.
func (l QueryLiteral) IsEmpty() bool { return l.str == nil && l.num == nil }

// StringValue returns the string value and whether the literal holds one.
func (l QueryLiteral) StringValue() (string, bool) {
	if l.str == nil {
		return "", false
	}
	return *l.str, true
}

// IntValue returns the integer value and whether the literal holds one.
func (l QueryLiteral) IntValue() (int64, bool) {
	if l.num == nil {
		return 0, false
	}
	return *l.num, true
}

// AsString renders the value; the empty literal renders as "".
func (l QueryLiteral) AsString() string {
	switch {
	case l.str != nil:
		return *l.str
	case l.num != nil:
		return strconv.FormatInt(*l.num, 10)
	}
	return ""
}

func (l QueryLiteral) String() string {
	if l.IsEmpty() {
		return "EMPTY"
	}
	return l.AsString()
}
