package fetchstats

import (
	"io"
	"net/http"
	"time"
)

//
// Test server handlers
//

// echoHandler writes the request body back to the client.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// statusHandler responds with a fixed status and body.
func statusHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// slowHandler responds 200 OK after the given delay.
func slowHandler(delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(delay)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("late"))
	}
}

// ptr returns a pointer to the given value.
func ptr[T any](v T) *T { return &v }
