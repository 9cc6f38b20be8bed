package domain

import "testing"

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"Filled":         "FILLED",
		"  submitted  ":  "SUBMITTED",
		"":               "UNKNOWN",
		"ApiCancelled":   "APICANCELLED",
		"api cancelled ": "API CANCELLED",
	}

	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	terminal := []string{"FILLED", "Cancelled", "APICANCELLED", "API CANCELLED", "inactive"}
	for _, s := range terminal {
		if !IsTerminalStatus(s) {
			t.Errorf("expected %q to be terminal", s)
		}
	}

	nonTerminal := []string{"SUBMITTING", "SUBMITTED", "PRESUBMITTED", "PARTIALLYFILLED", "ERROR", "UNKNOWN", ""}
	for _, s := range nonTerminal {
		if IsTerminalStatus(s) {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}
