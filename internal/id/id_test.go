package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransferID(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1158218819", 1158218819},
		{"14434862430", 14434862430},
		{" 42 ", 42},
	}
	for _, tt := range tests {
		got, err := ParseTransferID(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseTransferID_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"abc",
		"12a",
	}
	for _, input := range badInputs {
		_, err := ParseTransferID(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestFormatTransferID(t *testing.T) {
	assert.Equal(t, "1158218999", FormatTransferID(1158218999))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"10", "9", 1},
		{"1158218999", "1158218999", 0},
		{"100", "abc", -1},
		{"abc", "100", 1},
		{"abc", "abd", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.a, tt.b), "Compare(%q, %q)", tt.a, tt.b)
	}
}

func TestMax(t *testing.T) {
	assert.Equal(t, "1158218999", Max("1152125621", "1158218999", "1158218819"))
	assert.Equal(t, "10", Max("9", "10", "2"))
	assert.Equal(t, "7", Max("", "7", ""))
	assert.Equal(t, "", Max())
}

func TestAfter(t *testing.T) {
	assert.True(t, After("5", ""))
	assert.True(t, After("11", "10"))
	assert.False(t, After("10", "10"))
	assert.False(t, After("9", "10"))
}
