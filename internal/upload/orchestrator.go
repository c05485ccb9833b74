// Package upload drives the primary model submission: upload, job watch,
// then the dependent analysis load. One submission is a single sequential
// state machine even though the underlying fetches run concurrently.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bimaudit/bimaudit/internal/analysis"
	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/poller"
	"github.com/bimaudit/bimaudit/internal/session"
)

// State is the orchestrator's coarse lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateError      State = "error"
)

// Status is the externally visible submission state. Loaded turns true only
// after the analysis snapshot is in hand; a job the server reports done is
// necessary but not sufficient.
type Status struct {
	State    State
	Progress int
	Message  string
	Loaded   bool
}

// Resetter clears dependent state when a new submission starts.
type Resetter interface {
	Reset()
}

// Orchestrator owns the session tracker: it is the only component that
// installs new sessions.
type Orchestrator struct {
	client     *api.Client
	sessions   *session.Tracker
	poller     *poller.Poller
	aggregator *analysis.Aggregator
	dependents []Resetter
	logger     *slog.Logger
	onChange   func(Status)

	mu       sync.Mutex
	status   Status
	snapshot *analysis.Snapshot
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStatusListener registers a callback observing every status change.
func WithStatusListener(fn func(Status)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// WithDependents registers state that must be cleared when a submission starts
// (validation report, conversation transcript).
func WithDependents(deps ...Resetter) Option {
	return func(o *Orchestrator) { o.dependents = append(o.dependents, deps...) }
}

// New creates an Orchestrator.
func New(client *api.Client, sessions *session.Tracker, p *poller.Poller, agg *analysis.Aggregator, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		client:     client,
		sessions:   sessions,
		poller:     p,
		aggregator: agg,
		logger:     logger,
		status:     Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the current submission status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Snapshot returns the published analysis snapshot, or nil before a
// submission has fully loaded.
func (o *Orchestrator) Snapshot() *analysis.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

// Session returns the active session handle.
func (o *Orchestrator) Session() (session.Handle, bool) {
	return o.sessions.Current()
}

// Submit uploads the model at path and blocks until the pipeline reaches a
// terminal state. Failure at any step is terminal for this attempt; recovery
// is another Submit. Returns nil only when the snapshot was published.
func (o *Orchestrator) Submit(ctx context.Context, path string) error {
	start := time.Now()

	// Prior analysis data is invalid the moment a new upload starts.
	o.mu.Lock()
	o.snapshot = nil
	o.mu.Unlock()
	for _, d := range o.dependents {
		d.Reset()
	}
	o.setStatus(nil, Status{State: StateUploading, Progress: 5, Message: "uploading model file"})

	// Reuse the live session if one exists so the server extends it instead
	// of minting a disconnected one.
	var priorID string
	if h, ok := o.sessions.Current(); ok {
		priorID = h.ID
	}

	accepted, err := o.client.UploadModel(ctx, path, priorID)
	if err != nil {
		o.logger.Error("upload.rejected", "path", path, "error", err)
		o.setStatus(nil, Status{State: StateError, Message: err.Error()})
		return fmt.Errorf("submit model: %w", err)
	}

	h := o.sessions.Begin(accepted.SessionID)
	o.logger.Info("upload.accepted",
		"session_id", accepted.SessionID,
		"job_id", accepted.JobID,
		"file_name", accepted.FileName,
		"file_size", accepted.FileSize,
	)
	o.setStatus(&h, Status{State: StateProcessing, Progress: 10, Message: "processing started"})

	err = o.poller.Watch(ctx, h, accepted.JobID, func(p poller.Progress) {
		// Hold the bar just short of full until the snapshot is in.
		percent := p.Percent
		if percent > 99 {
			percent = 99
		}
		if percent < 10 {
			percent = 10
		}
		o.setStatus(&h, Status{State: StateProcessing, Progress: percent, Message: p.Message})
	})
	if err != nil {
		o.logger.Error("upload.job_failed", "session_id", h.ID, "job_id", accepted.JobID, "error", err)
		o.setStatus(&h, Status{State: StateError, Message: err.Error()})
		return fmt.Errorf("submit model: %w", err)
	}

	snap, err := o.aggregator.Load(ctx, h)
	if err != nil {
		o.logger.Error("upload.analysis_failed", "session_id", h.ID, "error", err)
		o.setStatus(&h, Status{State: StateError, Message: "analysis unavailable"})
		return fmt.Errorf("submit model: %w", err)
	}

	o.mu.Lock()
	if !o.sessions.Stale(h) {
		o.snapshot = snap
	}
	o.mu.Unlock()
	o.setStatus(&h, Status{State: StateDone, Progress: 100, Message: "model loaded", Loaded: true})

	o.logger.Info("upload.ok",
		"session_id", h.ID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// setStatus applies a status change unless it belongs to a superseded
// submission. h == nil marks pre-acceptance changes made synchronously by the
// newest Submit call, which are always current.
func (o *Orchestrator) setStatus(h *session.Handle, s Status) {
	if h != nil && o.sessions.Stale(*h) {
		o.logger.Info("upload.stale_status_dropped", "session_id", h.ID, "state", string(s.State))
		return
	}
	o.mu.Lock()
	o.status = s
	fn := o.onChange
	o.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}
