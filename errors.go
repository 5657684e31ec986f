package fetchstats

import (
	"fmt"
	"time"
)

// TimeoutError is returned by Do when the configured deadline elapses before
// the underlying network call settles. The in-flight call is not cancelled;
// its eventual outcome is still recorded.
type TimeoutError struct {
	URL   string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request to %s timed out after %s", e.URL, e.After)
}

// TransportError is returned by Do when the underlying network call itself
// fails (DNS, connection, etc.). The original error is preserved and
// available via Unwrap.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
