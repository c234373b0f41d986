package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Strip citation markers", "Masks reduce spread[12][13]. Studies agree[4].", "Masks reduce spread. Studies agree."},
		{"Newlines become spaces", "First line\nsecond line\n\nthird", "First line second line third"},
		{"Slashes and brackets become spaces", `cases/deaths [see table] a\b`, "cases deaths see table a b"},
		{"Non-breaking space", "COVID-19 pandemic", "COVID-19 pandemic"},
		{"Space after glued punctuation", "It spread.Cases rose!Why?Nobody knew.", "It spread. Cases rose! Why? Nobody knew."},
		{"Numbers keep their decimal point", "R0 was 2.5 in 2020.", "R0 was 2.5 in 2020."},
		{"Collapse whitespace", "  too   many \t spaces  ", "too many spaces"},
		{"Empty text", "", ""},
		{"Only noise", "\n/[1]\\\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Masks reduce spread[12][13].Studies agree.",
		" .NET is a framework.It runs.",
		"a\t.b and ..c",
		"Ends with a dot.  Next[1]/[2]sentence",
		"[[1]] nested [x] brackets",
		"Grüße.Über alles",
	}

	for _, input := range inputs {
		t.Run("Idempotent "+input, func(t *testing.T) {
			once := Normalize(input)
			assert.Equal(t, once, Normalize(once))
		})
	}
}
