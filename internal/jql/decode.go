package jql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidOperand is returned when an operand document matches no
// operand kind.
var ErrInvalidOperand = errors.New("invalid operand")

type operandDoc struct {
	Value    json.RawMessage   `json:"value"`
	Values   []json.RawMessage `json:"values"`
	Function string            `json:"function"`
	Args     []string          `json:"args"`
	Empty    bool              `json:"empty"`
}

// DecodeOperand parses the JSON form of an operand:
//
//	{"value": "HSP"}                 single string
//	{"value": 10}                    single integer
//	{"values": ["a", 2, {...}]}      list, elements may be operands
//	{"function": "now", "args": []}  function call
//	{"empty": true}                  EMPTY
func DecodeOperand(data []byte) (Operand, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidOperand)
	}
	switch data[0] {
	case '"', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return decodeScalar(data)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOperand, err)
		}
		return decodeList(raw)
	}

	var doc operandDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperand, err)
	}

	kinds := 0
	if doc.Value != nil {
		kinds++
	}
	if doc.Values != nil {
		kinds++
	}
	if doc.Function != "" {
		kinds++
	}
	if doc.Empty {
		kinds++
	}
	if kinds != 1 {
		return nil, fmt.Errorf("%w: exactly one of value, values, function or empty is required", ErrInvalidOperand)
	}

	switch {
	case doc.Value != nil:
		return decodeScalar(doc.Value)
	case doc.Values != nil:
		return decodeList(doc.Values)
	case doc.Function != "":
		return Func(doc.Function, doc.Args...), nil
	default:
		return Empty, nil
	}
}

func decodeScalar(data []byte) (Operand, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOperand, err)
	}
	switch t := v.(type) {
	case string:
		return String(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not an integer", ErrInvalidOperand, t)
		}
		return Int(n), nil
	default:
		return nil, fmt.Errorf("%w: unsupported value %s", ErrInvalidOperand, data)
	}
}

func decodeList(raw []json.RawMessage) (Operand, error) {
	values := make([]Operand, 0, len(raw))
	for i, r := range raw {
		op, err := DecodeOperand(r)
		if err != nil {
			return nil, fmt.Errorf("values[%d]: %w", i, err)
		}
		values = append(values, op)
	}
	return List(values...), nil
}
