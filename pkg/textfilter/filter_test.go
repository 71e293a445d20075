package textfilter

import (
	"testing"
)

func TestPromptFilter_FilterText(t *testing.T) {
	filter := NewPromptFilter()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single term",
			input:    "A corpse lies by the door.",
			expected: "A fallen figure lies by the door.",
		},
		{
			name:     "plural keeps suffix",
			input:    "Corpses line the hall.",
			expected: "Fallen figures line the hall.",
		},
		{
			name:     "multi-word term before its parts",
			input:    "A blood-soaked altar.",
			expected: "A battle-worn altar.",
		},
		{
			name:     "case preservation - uppercase",
			input:    "GORE everywhere",
			expected: "GRIME everywhere",
		},
		{
			name:     "case preservation - title case",
			input:    "Mutilated statues guard the gate",
			expected: "Battered statues guard the gate",
		},
		{
			name:     "mixed case",
			input:    "a GoRy scene",
			expected: "a GrIm scene",
		},
		{
			name:     "word boundaries",
			input:    "The gorge is gorgeous.",
			expected: "The gorge is gorgeous.",
		},
		{
			name:     "no flagged terms",
			input:    "A quiet meadow at dawn.",
			expected: "A quiet meadow at dawn.",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filter.FilterText(tt.input)
			if result != tt.expected {
				t.Errorf("FilterText() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestPromptFilter_ContainsFlagged(t *testing.T) {
	filter := NewPromptFilter()

	tests := []struct {
		input    string
		expected bool
	}{
		{"entrails on the floor", true},
		{"DECAPITATED king", true},
		{"a gorgeous vista", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := filter.ContainsFlagged(tt.input); got != tt.expected {
				t.Errorf("ContainsFlagged(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newlines and indentation", "A cave.\n    Water drips.\t\t", "A cave. Water drips."},
		{"leading space", "   lonely", "lonely"},
		{"control characters", "bell\x07 rings", "bell rings"},
		{"already clean", "clean text", "clean text"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CollapseWhitespace(tt.input); got != tt.expected {
				t.Errorf("CollapseWhitespace(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
