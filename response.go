package fetchstats

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"

	"go.uber.org/atomic"
)

// Response wraps an *http.Response with exactly-once body capture. The
// tracker reads non-success bodies through the same cache the caller uses, so
// capturing a body for the stats never consumes it from the caller's point of
// view.
type Response struct {
	resp *http.Response

	once     sync.Once   // ensures the body is only read once
	dataDone atomic.Bool // flags that once has run
	data     []byte
	dataErr  error

	usedReader atomic.Bool // flags that Reader() handed out the raw body
}

func newResponse(r *http.Response) *Response {
	return &Response{resp: r}
}

// OK reports whether the response status is in the success range (2xx).
func (r *Response) OK() bool {
	return r.resp.StatusCode >= 200 && r.resp.StatusCode < 300
}

// StatusCode returns the HTTP status code of the response.
func (r *Response) StatusCode() int {
	return r.resp.StatusCode
}

// Header returns the response headers.
func (r *Response) Header() http.Header {
	return r.resp.Header
}

// Data reads the entire response body into memory exactly once and then
// closes the body. Further calls return the data from memory.
func (r *Response) Data() ([]byte, error) {
	// If the caller already took the raw body, disallow Data().
	if r.usedReader.Load() {
		return nil, errors.New("cannot call Data() after Reader() was already used")
	}

	r.once.Do(func() {
		if r.resp.Body == nil {
			r.dataErr = errors.New("http.Response.Body is nil")
			return
		}
		defer r.resp.Body.Close()

		bodyBytes, err := io.ReadAll(r.resp.Body)
		if err != nil {
			r.dataErr = err
			return
		}
		r.data = bodyBytes
		r.dataDone.Store(true)
	})

	return r.data, r.dataErr
}

// Reader returns an io.ReadCloser for streaming the body. If Data() has
// already been called, an in-memory reader over the cached bytes is returned
// instead and closing it is a no-op. The caller is responsible for closing.
func (r *Response) Reader() (io.ReadCloser, error) {
	// If Data() was invoked, stream from the cache.
	if r.dataDone.Load() {
		if r.dataErr != nil {
			return nil, r.dataErr
		}
		return io.NopCloser(bytes.NewReader(r.data)), nil
	}

	// If Reader() was already called, disallow retrieving the reader again.
	if r.usedReader.Load() {
		return nil, errors.New("Reader() already called")
	}
	r.usedReader.Store(true)

	if r.resp.Body == nil {
		return nil, errors.New("http.Response.Body is nil")
	}

	return r.resp.Body, nil
}

// discard releases an unread body. Used on the late-settlement path, where no
// caller will ever consume the response.
func (r *Response) discard() {
	if r.dataDone.Load() || r.usedReader.Load() {
		return
	}
	if r.resp.Body != nil {
		_, _ = io.Copy(io.Discard, r.resp.Body)
		_ = r.resp.Body.Close()
	}
}
