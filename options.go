package fetchstats

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Option is a functional option for the Tracker struct.
type Option func(*Tracker)

// WithTimeout configures the Tracker to use the provided per-request
// deadline. Values below 1ms are ignored.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= minTimeout {
			t.timeout.Store(d)
		}
	}
}

// WithStorageLimit configures the Tracker to keep at most n records per
// category. Values below 1 are ignored.
func WithStorageLimit(n int) Option {
	return func(t *Tracker) {
		if n >= minStorageLimit {
			t.storageLimit.Store(int64(n))
		}
	}
}

// WithHTTPClient configures the Tracker to send requests with the provided
// client. The client's own Timeout is independent of the tracker deadline; a
// client timeout surfaces as a transport error, not a tracked timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tracker) {
		if c != nil {
			t.client = c
		}
	}
}

// WithLogger configures the Tracker to log through the provided logger. The
// default logger is a no-op.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithHandler registers a stats handler at construction time.
func WithHandler(h Handler) Option {
	return func(t *Tracker) { t.RegisterHandler(h) }
}
