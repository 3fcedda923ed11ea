package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList_Value(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = StringList{"a", "b"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)
}

func TestStringList_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want StringList
	}{
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"empty array", "[]", nil},
		{"string", `["t1","t2"]`, StringList{"t1", "t2"}},
		{"bytes", []byte(`["t3"]`), StringList{"t3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l StringList
			require.NoError(t, l.Scan(tt.src))
			assert.Equal(t, tt.want, l)
		})
	}

	var l StringList
	assert.Error(t, l.Scan(42))
	assert.Error(t, l.Scan("not json"))
}
