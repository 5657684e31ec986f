package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	fetchstats "github.com/PaperElectron/FetchStats"
)

func main() {
	// Create the tracker - one per process is typical, but that is the
	// caller's choice
	tracker := fetchstats.New(
		fetchstats.WithTimeout(3*time.Second),
		fetchstats.WithStorageLimit(10),
	)

	// Register a handler to observe stats after every completed request.
	// Returning true clears the bounded history; the counters keep counting.
	tracker.RegisterHandler(func(global fetchstats.GlobalStats, active fetchstats.ActiveStats) (bool, error) {
		fmt.Printf("requests so far: %d (ok %d, notOk %d, errors %d, timeouts %d)\n",
			global.Count, global.OK, global.NotOK, global.Errors, global.Timeouts)
		return global.Count%100 == 0, nil
	})

	urls := []string{
		"https://httpbin.org/status/200",
		"https://httpbin.org/status/404",
		"https://httpbin.org/delay/10", // exceeds the 3s deadline
	}
	for _, u := range urls {
		resp, err := tracker.Do(context.Background(), u, fetchstats.RequestOptions{
			Method: http.MethodGet,
		})
		if err != nil {
			fmt.Printf("request to %s failed: %v\n", u, err)
			continue
		}
		fmt.Printf("request to %s: status %d\n", u, resp.StatusCode())
		if !resp.OK() {
			// The recorded stat captured the body text, but it is still
			// readable here
			data, err := resp.Data()
			if err != nil {
				fmt.Printf("error reading data: %v\n", err)
				continue
			}
			fmt.Printf("body: %s\n", data)
		}
	}

	snapshot, err := tracker.StatsJSON()
	if err != nil {
		fmt.Printf("error exporting stats: %v\n", err)
		return
	}
	fmt.Printf("stats snapshot:\n%s\n", snapshot)
}
