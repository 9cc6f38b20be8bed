package domain

import "strings"

// Order status vocabulary. Gateway-reported statuses are normalized to
// uppercase; SUBMITTING and ERROR are assigned locally.
const (
	StatusUnknown    = "UNKNOWN"
	StatusSubmitting = "SUBMITTING" // provisional, written before the wire call
	StatusSubmitted  = "SUBMITTED"

	StatusPendingSubmit   = "PENDINGSUBMIT"
	StatusPreSubmitted    = "PRESUBMITTED"
	StatusPartiallyFilled = "PARTIALLYFILLED"
	StatusFilled          = "FILLED"
	StatusCancelled       = "CANCELLED"
	StatusAPICancelled    = "APICANCELLED"
	StatusInactive        = "INACTIVE"

	StatusError = "ERROR"
)

// terminalStatuses is the set of statuses after which no further
// transitions are expected. "API CANCELLED" is the spaced variant some
// gateway builds report.
var terminalStatuses = map[string]bool{
	StatusFilled:       true,
	StatusCancelled:    true,
	StatusAPICancelled: true,
	"API CANCELLED":    true,
	StatusInactive:     true,
}

// NormalizeStatus maps a raw gateway status to its canonical form.
// Empty input normalizes to UNKNOWN.
func NormalizeStatus(status string) string {
	s := strings.ToUpper(strings.TrimSpace(status))
	if s == "" {
		return StatusUnknown
	}
	return s
}

// IsTerminalStatus reports whether status ends the order's lifecycle.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[NormalizeStatus(status)]
}
