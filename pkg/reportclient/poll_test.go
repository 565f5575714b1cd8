package reportclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusServer serves a scripted sequence of status responses; the last
// entry repeats once the script runs out.
func statusServer(t *testing.T, reportID string, script []ReportStatusResponse) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/reports/"+reportID+"/status" {
			http.NotFound(w, r)
			return
		}
		n := int(atomic.AddInt32(&calls, 1)) - 1
		if n >= len(script) {
			n = len(script) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(script[n])
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func fastPollConfig() PollConfig {
	return PollConfig{
		Interval:    5 * time.Millisecond,
		Multiplier:  1.5,
		MaxInterval: 20 * time.Millisecond,
		Timeout:     2 * time.Second,
	}
}

func TestWaitForReport_StopsOnCompleted(t *testing.T) {
	srv, calls := statusServer(t, "r1", []ReportStatusResponse{
		{ReportID: "r1", Status: StatusQueued},
		{ReportID: "r1", Status: StatusProcessing},
		{ReportID: "r1", Status: StatusCompleted, FullReady: true},
	})

	c := New(srv.URL, "token")
	status, err := c.WaitForReport(context.Background(), "r1", fastPollConfig())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	assert.True(t, status.FullReady)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestWaitForReport_StopsWhenArtifactReady(t *testing.T) {
	// The artifact flag alone ends polling, even if the status read raced
	// the final transition.
	srv, _ := statusServer(t, "r1", []ReportStatusResponse{
		{ReportID: "r1", Status: StatusProcessing, PreviewReady: true},
	})

	c := New(srv.URL, "token")
	status, err := c.WaitForReport(context.Background(), "r1", fastPollConfig())
	require.NoError(t, err)
	assert.True(t, status.PreviewReady)
}

func TestWaitForReport_FailedCarriesMessage(t *testing.T) {
	msg := "model quota exhausted"
	srv, _ := statusServer(t, "r1", []ReportStatusResponse{
		{ReportID: "r1", Status: StatusProcessing},
		{ReportID: "r1", Status: StatusFailed, ErrorMessage: &msg},
	})

	c := New(srv.URL, "token")
	status, err := c.WaitForReport(context.Background(), "r1", fastPollConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReportFailed)
	assert.Contains(t, err.Error(), msg)
	require.NotNil(t, status)
	assert.Equal(t, StatusFailed, status.Status)
}

func TestWaitForReport_Timeout(t *testing.T) {
	srv, _ := statusServer(t, "r1", []ReportStatusResponse{
		{ReportID: "r1", Status: StatusProcessing},
	})

	cfg := fastPollConfig()
	cfg.Timeout = 30 * time.Millisecond

	c := New(srv.URL, "token")
	status, err := c.WaitForReport(context.Background(), "r1", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	require.NotNil(t, status)
	assert.Equal(t, StatusProcessing, status.Status)
}

func TestWaitForReport_ContextCancel(t *testing.T) {
	srv, _ := statusServer(t, "r1", []ReportStatusResponse{
		{ReportID: "r1", Status: StatusProcessing},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	cfg := fastPollConfig()
	cfg.Interval = time.Second // force the wait to block on ctx

	c := New(srv.URL, "token")
	_, err := c.WaitForReport(ctx, "r1", cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitForReport_APIErrorStopsPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"Report not found"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "token")
	_, err := c.WaitForReport(context.Background(), "r1", fastPollConfig())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestWatch_ReportsEveryState(t *testing.T) {
	srv, _ := statusServer(t, "r1", []ReportStatusResponse{
		{ReportID: "r1", Status: StatusQueued},
		{ReportID: "r1", Status: StatusProcessing},
		{ReportID: "r1", Status: StatusCompleted, FullReady: true},
	})

	var seen []ReportStatus
	c := New(srv.URL, "token")
	err := c.Watch(context.Background(), "r1", 5*time.Millisecond, func(s *ReportStatusResponse) {
		seen = append(seen, s.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, []ReportStatus{
		StatusQueued,
		StatusProcessing,
		StatusCompleted,
	}, seen)
}

func TestWatch_FailedReturnsError(t *testing.T) {
	msg := "workflow crashed"
	srv, _ := statusServer(t, "r1", []ReportStatusResponse{
		{ReportID: "r1", Status: StatusFailed, ErrorMessage: &msg},
	})

	c := New(srv.URL, "token")
	err := c.Watch(context.Background(), "r1", 5*time.Millisecond, nil)
	assert.ErrorIs(t, err, ErrReportFailed)
}

func TestNextInterval_Schedule(t *testing.T) {
	cfg := DefaultPollConfig()

	// 3s growing by 1.5x per attempt, capped at 20s.
	want := []time.Duration{
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10125 * time.Millisecond,
		15187500 * time.Microsecond,
		20 * time.Second,
		20 * time.Second, // stays at the cap
	}

	interval := cfg.Interval
	for i, expected := range want {
		interval = nextInterval(interval, cfg)
		assert.Equal(t, expected, interval, "attempt %d", i+1)
	}
}

func TestWaitForReport_IntervalsGrowToCap(t *testing.T) {
	var mu sync.Mutex
	var requestTimes []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestTimes = append(requestTimes, time.Now())
		status := scriptedStatus(len(requestTimes))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}))
	t.Cleanup(srv.Close)

	cfg := PollConfig{
		Interval:    10 * time.Millisecond,
		Multiplier:  3,
		MaxInterval: 30 * time.Millisecond,
		Timeout:     5 * time.Second,
	}

	c := New(srv.URL, "token")
	_, err := c.WaitForReport(context.Background(), "r1", cfg)
	require.NoError(t, err)
	require.Len(t, requestTimes, 5)

	// Waits are at-least their scheduled length: 10ms, then 30ms once the
	// cap is reached.
	gaps := make([]time.Duration, 0, 4)
	for i := 1; i < len(requestTimes); i++ {
		gaps = append(gaps, requestTimes[i].Sub(requestTimes[i-1]))
	}
	assert.GreaterOrEqual(t, gaps[0], cfg.Interval)
	for _, gap := range gaps[1:] {
		assert.GreaterOrEqual(t, gap, cfg.MaxInterval)
	}
}

// scriptedStatus returns processing until the fifth read, then completed.
func scriptedStatus(call int) ReportStatusResponse {
	if call >= 5 {
		return ReportStatusResponse{ReportID: "r1", Status: StatusCompleted, FullReady: true}
	}
	return ReportStatusResponse{ReportID: "r1", Status: StatusProcessing}
}

func TestDefaultPollConfig(t *testing.T) {
	cfg := DefaultPollConfig()
	assert.Equal(t, 3*time.Second, cfg.Interval)
	assert.Equal(t, 1.5, cfg.Multiplier)
	assert.Equal(t, 20*time.Second, cfg.MaxInterval)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
}
