// Package status provides shared status constants and helpers for the dev
// server lifecycle.
package status

import (
	"testing"
)

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{"stopped", true},
		{"crashed", true},
		{"exited", true},
		{"STOPPED", true}, // Case insensitive
		{"Crashed", true},
		{"starting", false},
		{"ready", false},
		{"stopping", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			result := IsTerminal(tt.status)
			if result != tt.expected {
				t.Errorf("IsTerminal(%q) = %v, want %v", tt.status, result, tt.expected)
			}
		})
	}
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{"starting", true},
		{"ready", true},
		{"stopping", true},
		{"READY", true}, // Case insensitive
		{"stopped", false},
		{"crashed", false},
		{"exited", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			result := IsActive(tt.status)
			if result != tt.expected {
				t.Errorf("IsActive(%q) = %v, want %v", tt.status, result, tt.expected)
			}
		})
	}
}

func TestIsServing(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{"ready", true},
		{"Ready", true},
		{"starting", false},
		{"stopping", false},
		{"stopped", false},
		{"crashed", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			result := IsServing(tt.status)
			if result != tt.expected {
				t.Errorf("IsServing(%q) = %v, want %v", tt.status, result, tt.expected)
			}
		})
	}
}

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"starting", "⏳"},
		{"ready", "✓"},
		{"stopping", "▶"},
		{"stopped", "⊘"},
		{"crashed", "✗"},
		{"exited", "✗"},
		{"unknown", "●"},
		{"", "●"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			result := StatusIcon(tt.status)
			if result != tt.expected {
				t.Errorf("StatusIcon(%q) = %q, want %q", tt.status, result, tt.expected)
			}
		})
	}
}

func TestStatusCategory(t *testing.T) {
	tests := []struct {
		status   string
		expected string
	}{
		{"starting", "info"},
		{"stopping", "info"},
		{"ready", "success"},
		{"crashed", "error"},
		{"exited", "error"},
		{"stopped", "dim"},
		{"unknown", "dim"},
		{"", "dim"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			result := StatusCategory(tt.status)
			if result != tt.expected {
				t.Errorf("StatusCategory(%q) = %q, want %q", tt.status, result, tt.expected)
			}
		})
	}
}
