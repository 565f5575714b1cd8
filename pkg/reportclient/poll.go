package reportclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrReportFailed wraps the report's error message when polling ends on a
// failed job.
var ErrReportFailed = errors.New("report generation failed")

// PollConfig tunes the backoff poller.
type PollConfig struct {
	Interval    time.Duration // first wait
	Multiplier  float64       // growth per attempt
	MaxInterval time.Duration // cap per attempt
	Timeout     time.Duration // wall-clock ceiling
}

// DefaultPollConfig matches the production cadence: 3s growing by 1.5x,
// capped at 20s per attempt, 10 minutes overall.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    3 * time.Second,
		Multiplier:  1.5,
		MaxInterval: 20 * time.Second,
		Timeout:     10 * time.Minute,
	}
}

// WaitForReport polls with exponential backoff until the report reaches a
// terminal state or an artifact becomes available. A failed report returns
// the last status together with ErrReportFailed carrying the error
// message. Cancel via ctx; polling restarts from zero on a fresh call.
func (c *Client) WaitForReport(ctx context.Context, reportID string, cfg PollConfig) (*ReportStatusResponse, error) {
	if cfg.Interval <= 0 {
		cfg = DefaultPollConfig()
	}

	deadline := time.Now().Add(cfg.Timeout)
	interval := cfg.Interval

	for {
		status, err := c.GetStatus(ctx, reportID)
		if err != nil {
			return nil, err
		}

		if done, err := terminal(status); done {
			return status, err
		}

		if time.Now().Add(interval).After(deadline) {
			return status, fmt.Errorf("report %s timed out after %v", reportID, cfg.Timeout)
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(interval):
		}

		interval = nextInterval(interval, cfg)
	}
}

// nextInterval grows the wait geometrically up to the cap.
func nextInterval(cur time.Duration, cfg PollConfig) time.Duration {
	next := time.Duration(float64(cur) * cfg.Multiplier)
	if next > cfg.MaxInterval {
		next = cfg.MaxInterval
	}
	return next
}

// Watch polls on a fixed interval, invoking fn after every read, until
// the report is terminal or ctx is canceled. It is the simple variant of
// WaitForReport for callers that want every intermediate state.
func (c *Client) Watch(ctx context.Context, reportID string, interval time.Duration, fn func(*ReportStatusResponse)) error {
	if interval <= 0 {
		interval = 3 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.GetStatus(ctx, reportID)
		if err != nil {
			return err
		}
		if fn != nil {
			fn(status)
		}

		if done, err := terminal(status); done {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// terminal reports whether polling should stop, and with what error.
// An available artifact stops polling even if the status read raced the
// final transition.
func terminal(status *ReportStatusResponse) (bool, error) {
	if status.Status == StatusFailed {
		msg := "unknown error"
		if status.ErrorMessage != nil {
			msg = *status.ErrorMessage
		}
		return true, fmt.Errorf("%w: %s", ErrReportFailed, msg)
	}
	if status.Status == StatusCompleted || status.PreviewReady || status.FullReady {
		return true, nil
	}
	return false, nil
}
