package fetchstats

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/xid"
)

// RequestOptions is the configuration of a single tracked request. The zero
// value issues a GET with no headers and no body.
type RequestOptions struct {
	Method string
	Header http.Header
	Body   []byte
}

// stripped returns a copy safe for long-term storage: the body is dropped to
// avoid retaining large or sensitive payloads, and the header is cloned so a
// caller mutating theirs cannot alter history.
func (o RequestOptions) stripped() RequestOptions {
	return RequestOptions{
		Method: o.Method,
		Header: cloneHeader(o.Header),
	}
}

// callOutcome is the settlement of the underlying network call.
type callOutcome struct {
	resp *http.Response
	err  error
}

// Do performs a tracked HTTP request: the underlying call races against the
// tracker's deadline, the outcome is classified and recorded, and the
// registered handler runs before the result is returned.
//
// A non-success HTTP status is not an error: the response is returned
// normally and recorded as notOk with its body text captured. Do fails only
// with a *TimeoutError or a *TransportError.
//
// A timeout does not cancel the in-flight call; when the call eventually
// settles it still records its own outcome, without affecting the
// already-delivered result. Cancel ctx to abort the call itself.
func (t *Tracker) Do(ctx context.Context, rawURL string, opts RequestOptions) (*Response, error) {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	// Each request captures the deadline at start; a concurrent Configure
	// only affects requests started after it.
	timeout := t.timeout.Load()

	outcomeChan := make(chan callOutcome, 1)
	go t.execute(ctx, rawURL, opts, outcomeChan)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-outcomeChan:
		cat, stat, resp := t.classify(outcome, rawURL, opts)
		t.complete(cat, stat)
		if stat.Err != nil {
			return nil, stat.Err
		}
		return resp, nil
	case <-timer.C:
		timeoutErr := &TimeoutError{URL: rawURL, After: timeout}
		t.complete(CategoryTimeouts, FetchStat{
			ID:      xid.New(),
			Time:    time.Now(),
			Err:     timeoutErr,
			URL:     rawURL,
			Options: opts,
		})
		// The call is still in flight; its settlement does its own
		// bookkeeping.
		go t.settleLate(outcomeChan, rawURL, opts)
		return nil, timeoutErr
	}
}

// execute runs the underlying network call and delivers its settlement on
// outcomeChan.
func (t *Tracker) execute(ctx context.Context, rawURL string, opts RequestOptions, outcomeChan chan<- callOutcome) {
	var body io.Reader
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	request, err := http.NewRequestWithContext(ctx, opts.Method, rawURL, body)
	if err != nil {
		outcomeChan <- callOutcome{err: err}
		return
	}

	for key, values := range opts.Header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}

	resp, err := t.client.Do(request)
	outcomeChan <- callOutcome{resp: resp, err: err}
}

// classify turns a settlement into a category and a stat record. For
// non-success responses the full body text is captured through the caching
// Response, leaving the body consumable by the caller.
func (t *Tracker) classify(outcome callOutcome, rawURL string, opts RequestOptions) (Category, FetchStat, *Response) {
	stat := FetchStat{
		ID:      xid.New(),
		Time:    time.Now(),
		URL:     rawURL,
		Options: opts,
	}

	if outcome.err != nil {
		stat.Err = &TransportError{URL: rawURL, Err: outcome.err}
		return CategoryErrors, stat, nil
	}

	resp := newResponse(outcome.resp)
	stat.Status = resp.StatusCode()

	if resp.OK() {
		return CategoryOK, stat, resp
	}

	if data, err := resp.Data(); err == nil {
		stat.BodyText = string(data)
	} else {
		t.logger.Warn().Err(err).Str("url", rawURL).Msg("failed to capture response body")
	}
	return CategoryNotOK, stat, resp
}

// settleLate waits for a call that lost the deadline race and records its
// eventual outcome. The caller-visible result was already delivered by the
// timeout path.
func (t *Tracker) settleLate(outcomeChan <-chan callOutcome, rawURL string, opts RequestOptions) {
	outcome := <-outcomeChan

	cat, stat, resp := t.classify(outcome, rawURL, opts)
	t.complete(cat, stat)
	if resp != nil {
		resp.discard()
	}
}
