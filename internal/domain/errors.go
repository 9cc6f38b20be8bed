package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a gateway transport error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "write")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrNotConnected is returned when an order is submitted before the
	// session handed out its first valid order id.
	ErrNotConnected = errors.New("session is not connected")

	// ErrConnectTimeout is returned when the gateway accepts the socket
	// but never delivers the initial order id. Retry policy belongs to
	// the caller.
	ErrConnectTimeout = errors.New("timed out waiting for next valid order id")

	// ErrSessionClosed is returned when writing to a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidPollInterval is a contract violation, rejected at the
	// boundary before any I/O.
	ErrInvalidPollInterval = errors.New("poll_interval must be positive")
)

// Facade-level error codes surfaced across the boundary. These are
// outcomes, not faults: callers branch on them.
const (
	ErrMsgConnect     = "could not connect to TWS"
	ErrMsgMaxWait     = "max_wait_exceeded"
	ErrMsgInterrupted = "interrupted"
)
