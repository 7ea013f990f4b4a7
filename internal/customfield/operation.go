// Package customfield applies REST edit operations to custom field
// values and persists the result.
package customfield

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Op names an edit operation.
type Op string

const (
	OpSet    Op = "set"
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpEdit   Op = "edit"
)

// Operation is one edit applied to a field. Value is decoded JSON: a
// string, a number, a list, null, or an object carrying "id", "name" or
// "value". Edit operations take an object with "old" and "new".
type Operation struct {
	Op    Op  `json:"op"`
	Value any `json:"value"`
}

// UnmarshalJSON accepts both {"op":"add","value":x} and the REST shorthand
// {"add": x}.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if op, ok := raw["op"].(string); ok {
		o.Op = Op(op)
		o.Value = raw["value"]
		return nil
	}
	if len(raw) != 1 {
		return fmt.Errorf("operation must have exactly one verb, got %d keys", len(raw))
	}
	for k, v := range raw {
		o.Op = Op(k)
		o.Value = v
	}
	return nil
}

// Set returns a set operation.
func Set(v any) Operation { return Operation{Op: OpSet, Value: v} }

// Add returns an add operation.
func Add(v any) Operation { return Operation{Op: OpAdd, Value: v} }

// Remove returns a remove operation.
func Remove(v any) Operation { return Operation{Op: OpRemove, Value: v} }

// Edit returns an edit operation replacing from with to.
func Edit(from, to any) Operation {
	return Operation{Op: OpEdit, Value: map[string]any{"old": from, "new": to}}
}

// scalars flattens an operation value into strings. Objects contribute
// their "id", "name" or "value" member, in that order of preference.
func scalars(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}, nil
	case int:
		return []string{strconv.Itoa(t)}, nil
	case json.Number:
		return []string{t.String()}, nil
	case []string:
		return t, nil
	case []any:
		var out []string
		for _, item := range t {
			s, err := scalars(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return out, nil
	case map[string]any:
		for _, k := range []string{"id", "name", "value"} {
			if inner, ok := t[k]; ok {
				return scalars(inner)
			}
		}
		return nil, fmt.Errorf("object needs one of id, name or value")
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

// editPair extracts the old and new members of an edit operation.
func editPair(v any) (string, string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", "", fmt.Errorf("edit needs an object with old and new")
	}
	oldVals, err := scalars(m["old"])
	if err != nil {
		return "", "", err
	}
	newVals, err := scalars(m["new"])
	if err != nil {
		return "", "", err
	}
	if len(oldVals) != 1 || len(newVals) != 1 {
		return "", "", fmt.Errorf("edit needs exactly one old and one new value")
	}
	return strings.TrimSpace(oldVals[0]), strings.TrimSpace(newVals[0]), nil
}
