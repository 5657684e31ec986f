// Package fetchstats wraps an HTTP request primitive with outcome tracking:
// every tracked call races against a configurable deadline, is classified
// into one of four categories (ok, notOk, errors, timeouts), and is recorded
// into a bounded newest-first history alongside cumulative counters. A
// caller-registered handler observes the accumulated stats after every
// completed request and can signal a history reset.
package fetchstats

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// defaultTimeout is the per-request deadline used until Configure or
	// WithTimeout overrides it.
	defaultTimeout = 30 * time.Second
	// defaultStorageLimit is the per-category history cap used until
	// Configure or WithStorageLimit overrides it.
	defaultStorageLimit = 100

	// minTimeout and minStorageLimit are the validation floors for
	// Configure; values below them are ignored.
	minTimeout      = time.Millisecond
	minStorageLimit = 1
)

// Handler observes the accumulated stats after a tracked request completes.
// It receives deep copies of the tracker state. Returning reset == true
// clears the bounded history (the cumulative counters are untouched). A
// returned error is logged and discarded, never affecting the tracked
// request's result.
type Handler func(global GlobalStats, active ActiveStats) (reset bool, err error)

// Settings holds the runtime-mutable configuration of a Tracker.
type Settings struct {
	// Timeout is the per-request deadline. Each request captures the value
	// at start.
	Timeout time.Duration
	// StorageLimit is the maximum number of records kept per category.
	StorageLimit int
}

// SettingsPatch is a partial update for Configure. Nil fields and fields that
// fail validation leave the corresponding setting unchanged.
type SettingsPatch struct {
	Timeout      *time.Duration
	StorageLimit *int
}

// Tracker records the outcome of tracked HTTP requests. Construct one with
// New and share it; all methods are safe for concurrent use.
type Tracker struct {
	client *http.Client
	logger zerolog.Logger

	timeout      *atomic.Duration
	storageLimit *atomic.Int64

	mu     sync.Mutex
	global GlobalStats
	active ActiveStats

	handlerMu sync.RWMutex
	handler   Handler
}

// New creates a Tracker with default settings, empty stats, and no handler.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		client:       &http.Client{},
		logger:       zerolog.Nop(),
		timeout:      atomic.NewDuration(defaultTimeout),
		storageLimit: atomic.NewInt64(defaultStorageLimit),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Configure applies a validated settings patch. A Timeout below 1ms or a
// StorageLimit below 1 is ignored, leaving the previous value in place; no
// error is raised. Lowering the storage limit truncates the existing history
// immediately.
func (t *Tracker) Configure(patch SettingsPatch) {
	if patch.Timeout != nil && *patch.Timeout >= minTimeout {
		t.timeout.Store(*patch.Timeout)
	}
	if patch.StorageLimit != nil && *patch.StorageLimit >= minStorageLimit {
		t.storageLimit.Store(int64(*patch.StorageLimit))

		t.mu.Lock()
		t.active.truncate(*patch.StorageLimit)
		t.mu.Unlock()
	}
}

// Settings returns the current effective settings.
func (t *Tracker) Settings() Settings {
	return Settings{
		Timeout:      t.timeout.Load(),
		StorageLimit: int(t.storageLimit.Load()),
	}
}

// RegisterHandler replaces the stats handler; the last registration wins. A
// nil handler is ignored.
func (t *Tracker) RegisterHandler(h Handler) {
	if h == nil {
		return
	}
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

// ActiveStats returns a deep copy of the current bounded history.
func (t *Tracker) ActiveStats() ActiveStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active.copied()
}

// GlobalStats returns a copy of the cumulative counters.
func (t *Tracker) GlobalStats() GlobalStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global.copied()
}

// complete runs the full per-outcome bookkeeping step: record the stat, hand
// snapshots to the handler, and reset the history if the handler asks for it.
func (t *Tracker) complete(cat Category, stat FetchStat) {
	t.record(cat, stat)

	global, active := t.snapshot()
	reset, err := t.invokeHandler(global, active)
	if err != nil {
		t.logger.Warn().Err(err).Msg("stats handler failed")
	}
	if reset {
		t.resetActive()
	}
}

// invokeHandler calls the registered handler, converting a panic into an
// error. Handler failures never propagate past the caller's logging step.
func (t *Tracker) invokeHandler(global GlobalStats, active ActiveStats) (reset bool, err error) {
	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()

	if h == nil {
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			reset = false
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h(global, active)
}

// resetActive rebuilds the bounded history to four empty sequences. The
// cumulative counters are deliberately left untouched.
func (t *Tracker) resetActive() {
	t.mu.Lock()
	t.active = ActiveStats{}
	t.mu.Unlock()
}
