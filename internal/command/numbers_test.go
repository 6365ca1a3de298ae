package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"23", 23},
		{"0", 0},
		{"seven", 7},
		{"twelve", 12},
		{"twenty", 20},
		{"twenty three", 23},
		{"twenty-three", 23},
		{"forty two", 42},
		{"one hundred", 100},
		{"hundred", 100},
		{"one hundred and five", 105},
		{"three hundred twenty one", 321},
		{"two thousand", 2000},
		{"one thousand two hundred thirty four", 1234},
	}

	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.input, " ", "_"), func(t *testing.T) {
			n, err := ParseNumber(strings.Fields(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestParseNumberFailures(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
	}{
		{"empty", nil},
		{"unrecognized_word", []string{"banana"}},
		{"mixed_garbage", []string{"twenty", "banana"}},
		{"only_and", []string{"and"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNumber(tt.tokens)
			assert.Error(t, err)
		})
	}
}
