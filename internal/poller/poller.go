// Package poller converts the server's one-shot job status endpoint into a
// progress stream with exactly one terminal outcome.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bimaudit/bimaudit/constants"
	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/session"
)

// Progress is one observed step of a running job.
type Progress struct {
	Status  constants.JobStatus
	Percent int
	Message string
}

// Poller watches jobs at a fixed interval. No backoff and no retry: a failed
// or malformed poll terminates the watch, indistinguishable from a job the
// server reported as failed.
type Poller struct {
	client       *api.Client
	sessions     *session.Tracker
	interval     time.Duration
	initialDelay time.Duration
	logger       *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the steady-state delay between polls.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithInitialDelay sets the delay before the first poll.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

// New creates a Poller. Defaults: 1s interval, 500ms initial delay.
func New(client *api.Client, sessions *session.Tracker, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		client:       client,
		sessions:     sessions,
		interval:     1 * time.Second,
		initialDelay: 500 * time.Millisecond,
	}
	p.logger = logger
	for _, o := range opts {
		o(p)
	}
	return p
}

// Watch polls jobID until a terminal status, the context is cancelled, or the
// session is superseded. onProgress observes each non-terminal step plus the
// final 100% on success; emitted percentages never decrease. Returns nil only
// for a job that finished done.
func (p *Poller) Watch(ctx context.Context, h session.Handle, jobID string, onProgress func(Progress)) error {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	delay := p.initialDelay
	highWater := 0
	for {
		if err := wait(ctx, delay); err != nil {
			return err
		}
		delay = p.interval

		if p.sessions.Stale(h) {
			p.logger.Info("poll.abandoned", "job_id", jobID, "session_id", h.ID)
			return fmt.Errorf("watch job %s: %w", jobID, session.ErrSuperseded)
		}

		status, err := p.client.JobStatus(ctx, jobID, h.ID)
		if err != nil {
			p.logger.Error("poll.failed", "job_id", jobID, "session_id", h.ID, "error", err)
			return fmt.Errorf("watch job %s: %w", jobID, err)
		}

		// A late response for a superseded session must not reach the caller.
		if p.sessions.Stale(h) {
			p.logger.Info("poll.stale_response_dropped", "job_id", jobID, "session_id", h.ID)
			return fmt.Errorf("watch job %s: %w", jobID, session.ErrSuperseded)
		}

		if status.Progress > highWater {
			highWater = status.Progress
		}

		switch status.Status {
		case constants.JobStatusDone:
			p.logger.Info("poll.terminal", "job_id", jobID, "status", "done")
			onProgress(Progress{Status: constants.JobStatusDone, Percent: 100, Message: status.Message})
			return nil
		case constants.JobStatusError:
			p.logger.Info("poll.terminal", "job_id", jobID, "status", "error", "message", status.Message)
			return fmt.Errorf("job failed: %s", status.Message)
		default:
			onProgress(Progress{Status: status.Status, Percent: highWater, Message: status.Message})
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
