package lock

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotAcquired is matched by every *AcquisitionError
	ErrNotAcquired = errors.New("lock not acquired")

	// ErrLeaseLost is returned when a quorum of stores no longer holds the lease token
	ErrLeaseLost = errors.New("lock lease lost")
)

// AcquisitionError reports a failed acquire after all permitted attempts
type AcquisitionError struct {
	Key      string
	Attempts int
	// Cause is the last store error, if any store failed rather than being held
	Cause error
}

func (e *AcquisitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to acquire lock %q after %d attempt(s): %v", e.Key, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("failed to acquire lock %q after %d attempt(s)", e.Key, e.Attempts)
}

func (e *AcquisitionError) Is(target error) bool {
	return target == ErrNotAcquired
}

func (e *AcquisitionError) Unwrap() error {
	return e.Cause
}

// Lease is a held lock. Token proves ownership on release and extend.
type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the lease is still within its validity window
func (l *Lease) Valid() bool {
	return l != nil && time.Now().Before(l.ExpiresAt)
}

// RetryPolicy bounds acquisition. RetryCount 0 makes a single attempt.
type RetryPolicy struct {
	RetryCount int
	RetryDelay time.Duration
	// Timeout caps the total time spent acquiring; zero means no cap beyond RetryCount
	Timeout time.Duration
}

// FailFast is the policy for interactive paths: one attempt, then busy
var FailFast = RetryPolicy{}
