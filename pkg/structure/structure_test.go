package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCardinality(t *testing.T) {
	tests := []struct {
		in   string
		want Cardinality
	}{
		{"single", Single},
		{"LIST", List},
		{" Set ", Set},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCardinality(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}

	_, err := ParseCardinality("bag")
	assert.Error(t, err)
}

func mustParse(t *testing.T, s string) Cardinality {
	t.Helper()
	c, err := ParseCardinality(s)
	require.NoError(t, err)
	return c
}

func TestDirection(t *testing.T) {
	assert.Equal(t, In, Out.Opposite())
	assert.Equal(t, Out, In.Opposite())
	assert.Equal(t, Both, Both.Opposite())
	assert.Equal(t, "BOTH", Both.String())
	assert.Equal(t, "Direction(7)", Direction(7).String())
}
