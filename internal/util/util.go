// Package util provides the SQF string helpers shared by the parser and handlers.
package util

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs unwraps every argument the way callExtension delivers strings. It
// modifies data in place and returns it.
func CleanArgs(data []string) []string {
	for i, v := range data {
		data[i] = FixEscapeQuotes(TrimQuotes(v))
	}
	return data
}

// ParseSQFStringArray parses a stringified SQF array of strings such as
// ["2:14","2:15"]. An empty string or [] gives an empty slice.
func ParseSQFStringArray(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return []string{}, nil
	}
	if s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("not an SQF array: %q", s)
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("parse SQF string array %q: %w", s, err)
	}
	return out, nil
}

// ParseSQFBool accepts true/false in any case and 1/0.
func ParseSQFBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("not an SQF bool: %q", s)
}
