package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimQuotes(tt.input))
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no escapes", "hello", "hello"},
		{"escaped quotes", `say ""hi""`, `say "hi"`},
		{"json array", `[""2:1"",""2:2""]`, `["2:1","2:2"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FixEscapeQuotes(tt.input))
		})
	}
}

func TestCleanArgs(t *testing.T) {
	data := []string{`"WEST"`, `"[""2:1""]"`, `true`}
	out := CleanArgs(data)
	assert.Equal(t, []string{"WEST", `["2:1"]`, "true"}, out)
	assert.Equal(t, "WEST", data[0], "modified in place")
}

func TestParseSQFStringArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
		wantErr  bool
	}{
		{"empty", "", []string{}, false},
		{"empty array", "[]", []string{}, false},
		{"refs", `["2:14","2:15"]`, []string{"2:14", "2:15"}, false},
		{"spaces", ` ["H_HelmetSpecB"] `, []string{"H_HelmetSpecB"}, false},
		{"not array", "2:14", nil, true},
		{"numbers", "[1,2]", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSQFStringArray(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseSQFBool(t *testing.T) {
	for _, in := range []string{"true", "TRUE", "1", " True "} {
		v, err := ParseSQFBool(in)
		require.NoError(t, err, in)
		assert.True(t, v, in)
	}
	for _, in := range []string{"false", "0", ""} {
		v, err := ParseSQFBool(in)
		require.NoError(t, err, in)
		assert.False(t, v, in)
	}
	_, err := ParseSQFBool("yes")
	assert.Error(t, err)
}
