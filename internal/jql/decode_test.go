package jql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOperand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Operand
	}{
		{"string value", `{"value":"HSP"}`, String("HSP")},
		{"int value", `{"value":10}`, Int(10)},
		{"list", `{"values":["a",2]}`, List(String("a"), Int(2))},
		{"nested list", `{"values":[{"function":"now"},{"empty":true}]}`, List(Func("now"), Empty)},
		{"function", `{"function":"releasedVersions","args":["HSP"]}`, Func("releasedVersions", "HSP")},
		{"empty", `{"empty":true}`, Empty},
		{"bare array", `["x","y"]`, Strings("x", "y")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOperand([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want.DisplayString(), got.DisplayString())
			assert.Equal(t, tt.want.Name(), got.Name())
		})
	}
}

func TestDecodeOperandRejects(t *testing.T) {
	for _, in := range []string{
		``,
		`{}`,
		`{"value":"a","empty":true}`,
		`{"value":1.5}`,
		`{"value":true}`,
		`{"values":[{}]}`,
		`{"unknown":1}`,
	} {
		_, err := DecodeOperand([]byte(in))
		assert.ErrorIs(t, err, ErrInvalidOperand, in)
	}
}
