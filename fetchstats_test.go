package fetchstats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNewDefaults(t *testing.T) {
	tracker := New()

	settings := tracker.Settings()
	assert.Equal(t, defaultTimeout, settings.Timeout)
	assert.Equal(t, defaultStorageLimit, settings.StorageLimit)

	global := tracker.GlobalStats()
	assert.Zero(t, global.Count)
	assert.Nil(t, global.LastStat)

	active := tracker.ActiveStats()
	assert.Empty(t, active.OK)
	assert.Empty(t, active.NotOK)
	assert.Empty(t, active.Errors)
	assert.Empty(t, active.Timeouts)
}

func TestNewOptions(t *testing.T) {
	client := &http.Client{}
	tracker := New(
		WithTimeout(2*time.Second),
		WithStorageLimit(5),
		WithHTTPClient(client),
	)

	settings := tracker.Settings()
	assert.Equal(t, 2*time.Second, settings.Timeout)
	assert.Equal(t, 5, settings.StorageLimit)
	assert.Same(t, client, tracker.client)
}

func TestConfigure(t *testing.T) {
	testCases := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "valid patch applies both settings",
			run: func(t *testing.T) {
				tracker := New()
				tracker.Configure(SettingsPatch{
					Timeout:      ptr(500 * time.Millisecond),
					StorageLimit: ptr(7),
				})
				settings := tracker.Settings()
				assert.Equal(t, 500*time.Millisecond, settings.Timeout)
				assert.Equal(t, 7, settings.StorageLimit)
			},
		},
		{
			name: "empty patch changes nothing",
			run: func(t *testing.T) {
				tracker := New()
				tracker.Configure(SettingsPatch{})
				assert.Equal(t, Settings{Timeout: defaultTimeout, StorageLimit: defaultStorageLimit}, tracker.Settings())
			},
		},
		{
			name: "sub-minimum timeout is ignored",
			run: func(t *testing.T) {
				tracker := New()
				tracker.Configure(SettingsPatch{Timeout: ptr(time.Duration(0))})
				assert.Equal(t, defaultTimeout, tracker.Settings().Timeout)

				tracker.Configure(SettingsPatch{Timeout: ptr(-time.Second)})
				assert.Equal(t, defaultTimeout, tracker.Settings().Timeout)
			},
		},
		{
			name: "sub-minimum storage limit is ignored",
			run: func(t *testing.T) {
				tracker := New()
				tracker.Configure(SettingsPatch{StorageLimit: ptr(0)})
				assert.Equal(t, defaultStorageLimit, tracker.Settings().StorageLimit)

				tracker.Configure(SettingsPatch{StorageLimit: ptr(-3)})
				assert.Equal(t, defaultStorageLimit, tracker.Settings().StorageLimit)
			},
		},
		{
			name: "partial patch leaves the other setting unchanged",
			run: func(t *testing.T) {
				tracker := New()
				tracker.Configure(SettingsPatch{Timeout: ptr(time.Second)})
				settings := tracker.Settings()
				assert.Equal(t, time.Second, settings.Timeout)
				assert.Equal(t, defaultStorageLimit, settings.StorageLimit)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, tc.run)
	}
}

func TestConfigureShrinkTruncatesHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer server.Close()

	tracker := New(WithStorageLimit(10))
	for range 5 {
		_, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
		require.NoError(t, err)
	}
	require.Len(t, tracker.ActiveStats().OK, 5)

	tracker.Configure(SettingsPatch{StorageLimit: ptr(2)})

	active := tracker.ActiveStats()
	assert.Len(t, active.OK, 2, "shrinking the limit must truncate immediately")
}

func TestRegisterHandlerNilIsNoOp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer server.Close()

	invoked := 0
	tracker := New()
	tracker.RegisterHandler(func(GlobalStats, ActiveStats) (bool, error) {
		invoked++
		return false, nil
	})
	tracker.RegisterHandler(nil)

	_, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, invoked, "nil registration must not displace the active handler")
}

func TestHandlerLastRegistrationWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer server.Close()

	var first, second int
	tracker := New(WithHandler(func(GlobalStats, ActiveStats) (bool, error) {
		first++
		return false, nil
	}))
	tracker.RegisterHandler(func(GlobalStats, ActiveStats) (bool, error) {
		second++
		return false, nil
	})

	_, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
	require.NoError(t, err)
	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}

func TestHandlerReceivesSnapshots(t *testing.T) {
	server := httptest.NewServer(statusHandler(http.StatusTeapot, "short and stout"))
	defer server.Close()

	var seenGlobal GlobalStats
	var seenActive ActiveStats
	tracker := New(WithHandler(func(g GlobalStats, a ActiveStats) (bool, error) {
		seenGlobal = g
		seenActive = a
		// Mutating the snapshot must not leak into tracker state.
		a.NotOK[0].BodyText = "tampered"
		return false, nil
	}))

	_, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), seenGlobal.Count)
	require.Len(t, seenActive.NotOK, 1)
	assert.Equal(t, http.StatusTeapot, seenActive.NotOK[0].Status)

	active := tracker.ActiveStats()
	assert.Equal(t, "short and stout", active.NotOK[0].BodyText)
}

func TestHandlerResetClearsHistoryOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer server.Close()

	resetNext := false
	tracker := New(WithHandler(func(GlobalStats, ActiveStats) (bool, error) {
		return resetNext, nil
	}))

	for range 3 {
		_, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
		require.NoError(t, err)
	}
	require.Len(t, tracker.ActiveStats().OK, 3)

	resetNext = true
	_, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
	require.NoError(t, err)

	active := tracker.ActiveStats()
	assert.Empty(t, active.OK)
	assert.Empty(t, active.NotOK)
	assert.Empty(t, active.Errors)
	assert.Empty(t, active.Timeouts)

	global := tracker.GlobalStats()
	assert.Equal(t, int64(4), global.Count, "reset must not touch the cumulative counters")
	assert.Equal(t, int64(4), global.OK)
	assert.NotNil(t, global.LastStat)
}

func TestHandlerErrorIsSuppressed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer server.Close()

	invoked := 0
	tracker := New(WithHandler(func(GlobalStats, ActiveStats) (bool, error) {
		invoked++
		return false, errors.New("handler exploded")
	}))

	for range 2 {
		resp, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
		require.NoError(t, err, "handler failures must never affect the request result")
		require.NotNil(t, resp)
	}
	assert.Equal(t, 2, invoked, "a failing handler must keep being invoked")
}

func TestHandlerPanicIsSuppressed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer server.Close()

	invoked := 0
	tracker := New(WithHandler(func(GlobalStats, ActiveStats) (bool, error) {
		invoked++
		panic("handler panic")
	}))

	for range 2 {
		resp, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
		require.NoError(t, err)
		require.NotNil(t, resp)
	}
	assert.Equal(t, 2, invoked)
}

func TestHandlerInvokedOncePerRequest(t *testing.T) {
	server := httptest.NewServer(statusHandler(http.StatusBadGateway, "bad"))
	defer server.Close()

	invocations := 0
	tracker := New(WithHandler(func(g GlobalStats, _ ActiveStats) (bool, error) {
		invocations++
		assert.Equal(t, int64(invocations), g.Count)
		return false, nil
	}))

	for range 5 {
		_, err := tracker.Do(context.Background(), server.URL, RequestOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, 5, invocations)
}

func TestConcurrentRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(echoHandler))
	defer server.Close()

	const n = 40
	const limit = 10

	tracker := New(WithStorageLimit(limit))

	var group errgroup.Group
	for i := range n {
		group.Go(func() error {
			_, err := tracker.Do(context.Background(), server.URL, RequestOptions{
				Method: http.MethodPost,
				Body:   fmt.Appendf(nil, "request %d", i),
			})
			return err
		})
	}
	require.NoError(t, group.Wait())

	global := tracker.GlobalStats()
	assert.Equal(t, int64(n), global.Count)
	assert.Equal(t, global.Count, global.OK+global.NotOK+global.Errors+global.Timeouts)
	assert.Equal(t, int64(n), global.OK)

	active := tracker.ActiveStats()
	assert.Len(t, active.OK, limit, "history must stay bounded under concurrency")
}
