package fetchstats

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/xid"
)

// Category is the outcome class of a tracked request. The four categories are
// mutually exclusive per recorded observation.
type Category string

const (
	// CategoryOK marks responses with a success status (2xx).
	CategoryOK Category = "ok"
	// CategoryNotOK marks responses that settled with a non-success status.
	CategoryNotOK Category = "notOk"
	// CategoryErrors marks requests where the transport itself failed.
	CategoryErrors Category = "errors"
	// CategoryTimeouts marks requests that exceeded the configured deadline.
	CategoryTimeouts Category = "timeouts"
)

// FetchStat is a single recorded observation of a tracked request.
type FetchStat struct {
	ID   xid.ID
	Time time.Time

	// Status is the HTTP status code, or 0 when no response was received.
	Status int
	// BodyText holds the full response body text, populated only for
	// non-success responses.
	BodyText string
	// Err is the timeout or transport error, nil when a response settled.
	Err error

	URL string
	// Options is the request configuration used, stored with Body stripped
	// and Header cloned.
	Options RequestOptions
}

// fetchStat is an internal representation of a FetchStat, decoupled from the
// public struct so the error can be marshaled as its message string.
type fetchStat struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Status   int       `json:"status,omitempty"`
	BodyText string    `json:"bodyText,omitempty"`
	Error    string    `json:"error,omitempty"`
	URL      string    `json:"url"`
	Method   string    `json:"method,omitempty"`
}

// MarshalJSON implements json.Marshaler for FetchStat.
func (s FetchStat) MarshalJSON() ([]byte, error) {
	internal := fetchStat{
		ID:       s.ID.String(),
		Time:     s.Time,
		Status:   s.Status,
		BodyText: s.BodyText,
		URL:      s.URL,
		Method:   s.Options.Method,
	}
	if s.Err != nil {
		internal.Error = s.Err.Error()
	}
	return sonic.Marshal(internal)
}

// GlobalStats holds the cumulative counters of a Tracker. The counters
// survive handler-triggered resets; they only zero when the Tracker itself is
// replaced.
type GlobalStats struct {
	Count    int64 `json:"count"`
	Errors   int64 `json:"errors"`
	OK       int64 `json:"ok"`
	NotOK    int64 `json:"notOk"`
	Timeouts int64 `json:"timeouts"`

	// LastStat is the most recently recorded observation across all
	// categories, nil until the first request completes.
	LastStat *FetchStat `json:"lastStat,omitempty"`
}

// counter returns a pointer to the counter for the given category. An unknown
// category is an internal invariant violation and panics.
func (g *GlobalStats) counter(cat Category) *int64 {
	switch cat {
	case CategoryOK:
		return &g.OK
	case CategoryNotOK:
		return &g.NotOK
	case CategoryErrors:
		return &g.Errors
	case CategoryTimeouts:
		return &g.Timeouts
	default:
		panic(fmt.Sprintf("fetchstats: unknown stat category %q", cat))
	}
}

// copied returns a copy of the GlobalStats, including a copy of LastStat.
func (g *GlobalStats) copied() GlobalStats {
	out := *g
	if g.LastStat != nil {
		last := *g.LastStat
		out.LastStat = &last
	}
	return out
}

// ActiveStats holds the bounded newest-first history of a Tracker, one
// sequence per category. Each sequence is capped at the Tracker's storage
// limit; index 0 is the most recently completed request in that category.
type ActiveStats struct {
	OK       []FetchStat `json:"ok"`
	NotOK    []FetchStat `json:"notOk"`
	Errors   []FetchStat `json:"errors"`
	Timeouts []FetchStat `json:"timeouts"`
}

// sequence returns a pointer to the sequence for the given category. An
// unknown category is an internal invariant violation and panics.
func (a *ActiveStats) sequence(cat Category) *[]FetchStat {
	switch cat {
	case CategoryOK:
		return &a.OK
	case CategoryNotOK:
		return &a.NotOK
	case CategoryErrors:
		return &a.Errors
	case CategoryTimeouts:
		return &a.Timeouts
	default:
		panic(fmt.Sprintf("fetchstats: unknown stat category %q", cat))
	}
}

// copied returns a deep copy of the ActiveStats.
func (a *ActiveStats) copied() ActiveStats {
	return ActiveStats{
		OK:       append([]FetchStat(nil), a.OK...),
		NotOK:    append([]FetchStat(nil), a.NotOK...),
		Errors:   append([]FetchStat(nil), a.Errors...),
		Timeouts: append([]FetchStat(nil), a.Timeouts...),
	}
}

// truncate caps all four sequences to the given limit.
func (a *ActiveStats) truncate(limit int) {
	for _, seq := range []*[]FetchStat{&a.OK, &a.NotOK, &a.Errors, &a.Timeouts} {
		if len(*seq) > limit {
			*seq = (*seq)[:limit]
		}
	}
}

// prependCapped inserts stat at index 0 of seq and truncates the result to
// limit entries.
func prependCapped(seq []FetchStat, stat FetchStat, limit int) []FetchStat {
	size := len(seq) + 1
	if size > limit {
		size = limit
	}
	out := make([]FetchStat, 0, size)
	out = append(out, stat)
	out = append(out, seq...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// record applies one observation to the tracker state: strips the request
// body from the stored options, updates LastStat and the counters, and
// prepends the stat to the category's bounded sequence.
func (t *Tracker) record(cat Category, stat FetchStat) {
	stat.Options = stat.Options.stripped()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Read the limit under the lock so a concurrent Configure shrink is
	// never outrun by a stale larger value.
	limit := int(t.storageLimit.Load())

	last := stat
	t.global.LastStat = &last
	t.global.Count++
	counter := t.global.counter(cat)
	*counter = *counter + 1

	seq := t.active.sequence(cat)
	*seq = prependCapped(*seq, stat, limit)
}

// snapshot returns deep copies of the current global and active stats.
func (t *Tracker) snapshot() (GlobalStats, ActiveStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global.copied(), t.active.copied()
}

// statsSnapshot is the JSON export shape of a Tracker's state.
type statsSnapshot struct {
	Global GlobalStats `json:"global"`
	Active ActiveStats `json:"active"`
}

// StatsJSON returns the current global and active stats as a JSON document.
func (t *Tracker) StatsJSON() ([]byte, error) {
	global, active := t.snapshot()
	return sonic.Marshal(statsSnapshot{Global: global, Active: active})
}

// cloneHeader returns a copy of the given header, nil in nil out.
func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}
