package issuekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "HSP-1", want: Key{Project: "HSP", Number: 1}},
		{in: " hsp-42 ", want: Key{Project: "HSP", Number: 42}},
		{in: "AB2-7", want: Key{Project: "AB2", Number: 7}},
		{in: "HSP-0", wantErr: true},
		{in: "HSP", wantErr: true},
		{in: "1HSP-3", wantErr: true},
		{in: "HSP-1 MKY-2", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, IsValid(tt.in))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "HSP-42", Key{Project: "HSP", Number: 42}.String())
}

func TestExtract(t *testing.T) {
	got := Extract("fix HSP-1 and MKY-22, again HSP-1; not hsp-3")
	assert.Equal(t, []string{"HSP-1", "MKY-22"}, got)
	assert.Nil(t, Extract("nothing here"))
}
