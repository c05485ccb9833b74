// Package analysis fans out the per-session analysis fetches and merges them
// into an all-or-nothing snapshot.
package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/common"
	"github.com/bimaudit/bimaudit/internal/session"
)

// Aggregator loads analysis snapshots. The four documents are independent
// server-side, so they are fetched concurrently; publication is atomic.
type Aggregator struct {
	client   *api.Client
	sessions *session.Tracker
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(client *api.Client, sessions *session.Tracker, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{client: client, sessions: sessions, logger: logger}
}

// Load fetches header, version, units and georef for h concurrently and
// returns the merged snapshot. If any fetch fails, or h was superseded while
// the fetches were in flight, no snapshot is returned: callers keep whatever
// state they had. Sub-fetch errors are logged individually but reported as
// one non-attributing failure.
func (a *Aggregator) Load(ctx context.Context, h session.Handle) (*Snapshot, error) {
	start := time.Now()
	snap := &Snapshot{SessionID: h.ID}

	var wg sync.WaitGroup
	errs := make([]error, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		snap.Header, errs[0] = a.client.Header(ctx, h.ID)
	}()
	go func() {
		defer wg.Done()
		snap.Version, errs[1] = a.client.Version(ctx, h.ID)
	}()
	go func() {
		defer wg.Done()
		snap.Units, errs[2] = a.client.Units(ctx, h.ID)
	}()
	go func() {
		defer wg.Done()
		snap.Georef, errs[3] = a.client.Georef(ctx, h.ID)
	}()
	wg.Wait()

	names := [4]string{"header", "version", "units", "georef"}
	failed := false
	for i, err := range errs {
		if err != nil {
			failed = true
			a.logger.Error("analysis.fetch_failed", "doc", names[i], "session_id", h.ID, "error", err)
		}
	}
	if failed {
		return nil, common.NewAppError("ANALYSIS_LOAD", "analysis unavailable", common.ErrUnavailable)
	}

	if a.sessions.Stale(h) {
		a.logger.Info("analysis.stale_round_dropped", "session_id", h.ID)
		return nil, session.ErrSuperseded
	}

	a.logger.Info("analysis.load.ok",
		"session_id", h.ID,
		"units", len(snap.Units),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

// ModelSummary fetches the spatial hierarchy and entity census. It sits
// outside the atomic four-document round; the views that need it load it
// lazily.
func (a *Aggregator) ModelSummary(ctx context.Context, h session.Handle) (api.ModelSummary, error) {
	summary, err := a.client.Summary(ctx, h.ID)
	if err != nil {
		return api.ModelSummary{}, common.WrapError(err, "load model summary")
	}
	if a.sessions.Stale(h) {
		return api.ModelSummary{}, session.ErrSuperseded
	}
	return summary, nil
}
