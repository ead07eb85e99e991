package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default polling parameters applied when a handle omits them.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 10 * time.Minute
	maxPollInterval     = 30 * time.Second
)

// PollFunc reads the current status of a long-running operation.
type PollFunc func(ctx context.Context, operationID string) (OperationStatus, error)

// OperationPoller watches a long-running remote operation until it reaches a
// terminal status or its timeout elapses. The wait between polls doubles up
// to a cap. The poller holds no locks while sleeping.
type OperationPoller struct {
	poll   PollFunc
	logger *slog.Logger

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOperationPoller creates a poller that reads status through poll.
func NewOperationPoller(poll PollFunc, logger *slog.Logger) *OperationPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationPoller{
		poll:   poll,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Await polls the handle's operation until it is terminal. An elapsed
// timeout returns an *OperationTimeoutError, which is distinct from a
// remote-reported failure; both leave the decision to retry or abort with
// the caller.
func (p *OperationPoller) Await(ctx context.Context, handle OperationHandle) (OperationStatus, error) {
	interval := handle.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := handle.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	deadline := p.now().Add(timeout)

	for {
		status, err := p.poll(ctx, handle.ID)
		if err != nil {
			return OperationFailed, fmt.Errorf("poll operation %s: %w", handle.ID, err)
		}
		if status.Terminal() {
			p.logger.Debug("operation settled", "operation", handle.ID, "kind", handle.Kind, "status", status)
			return status, nil
		}

		remaining := deadline.Sub(p.now())
		if remaining <= 0 {
			return OperationFailed, &OperationTimeoutError{
				OperationID: handle.ID,
				Kind:        handle.Kind,
				Timeout:     timeout,
			}
		}
		// Clamp the wait so the last poll lands on the deadline instead of
		// giving up an interval early.
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		if err := p.sleep(ctx, wait); err != nil {
			return OperationFailed, err
		}

		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
