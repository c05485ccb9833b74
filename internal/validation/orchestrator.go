// Package validation runs the secondary workflow: a rules workbook is
// uploaded against the session's model and the resulting report is browsed
// page by page.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/common"
	"github.com/bimaudit/bimaudit/internal/session"
)

// DefaultPageSize matches the server's default issue page size.
const DefaultPageSize = 50

var (
	// ErrNoReport is returned when a page is requested before a report exists.
	ErrNoReport = errors.New("no validation report loaded")
	// ErrPageOutOfRange is returned for pages outside [1, TotalPages]. The
	// request is rejected locally; out-of-range pages are a caller error, not
	// defined server behavior.
	ErrPageOutOfRange = errors.New("issue page out of range")
)

// Orchestrator owns the single ValidationReport. All mutation goes through
// it, serialized by its own workflow even though the initial fetches run
// concurrently.
type Orchestrator struct {
	client   *api.Client
	sessions *session.Tracker
	pageSize int
	logger   *slog.Logger

	mu     sync.Mutex
	report *Report
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPageSize overrides the issue page size (server caps at 200).
func WithPageSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// New creates an Orchestrator.
func New(client *api.Client, sessions *session.Tracker, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		client:   client,
		sessions: sessions,
		pageSize: DefaultPageSize,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Report returns the published report, or nil. Callers treat it as read-only.
func (o *Orchestrator) Report() *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.report
}

// Reset discards the report and returns the workflow to its initial state.
// The session and the primary analysis snapshot are untouched.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.report = nil
	o.mu.Unlock()
}

// SubmitRulesFile uploads the workbook at path and aggregates the resulting
// report: summary, both breakdowns, and page 1 of the issue list, fetched
// concurrently. Publication is all-or-nothing; on any failure the prior
// report (or empty state) is kept.
func (o *Orchestrator) SubmitRulesFile(ctx context.Context, path string) error {
	h, ok := o.sessions.Current()
	if !ok {
		return common.ErrNoSession
	}
	start := time.Now()

	accepted, err := o.client.UploadRules(ctx, path, h.ID)
	if err != nil {
		o.logger.Error("validation.upload_rejected", "session_id", h.ID, "path", path, "error", err)
		return fmt.Errorf("submit rules file: %w", err)
	}
	o.logger.Info("validation.upload_accepted",
		"session_id", h.ID,
		"discipline", accepted.Discipline,
		"stage", accepted.Stage,
		"rules_count", accepted.RulesCount,
	)

	var (
		wg         sync.WaitGroup
		summary    api.SummaryDoc
		byEntity   map[string]api.BreakdownCell
		byProperty map[string]api.BreakdownCell
		firstPage  api.IssuesPage
		errs       = make([]error, 4)
	)
	wg.Add(4)
	go func() {
		defer wg.Done()
		summary, errs[0] = o.client.ValidationSummary(ctx, h.ID)
	}()
	go func() {
		defer wg.Done()
		byEntity, errs[1] = o.client.ValidationByEntity(ctx, h.ID)
	}()
	go func() {
		defer wg.Done()
		byProperty, errs[2] = o.client.ValidationByProperty(ctx, h.ID)
	}()
	go func() {
		defer wg.Done()
		firstPage, errs[3] = o.client.Issues(ctx, h.ID, 1, o.pageSize, api.IssueFilter{})
	}()
	wg.Wait()

	names := [4]string{"summary", "by_entity", "by_property", "issues"}
	failed := false
	for i, err := range errs {
		if err != nil {
			failed = true
			o.logger.Error("validation.fetch_failed", "doc", names[i], "session_id", h.ID, "error", err)
		}
	}
	if failed {
		return common.NewAppError("VALIDATION_LOAD", "validation unavailable", common.ErrUnavailable)
	}

	if o.sessions.Stale(h) {
		o.logger.Info("validation.stale_round_dropped", "session_id", h.ID)
		return session.ErrSuperseded
	}

	o.mu.Lock()
	o.report = &Report{
		Summary:       summary.Summary,
		Discipline:    summary.Discipline,
		Stage:         summary.Stage,
		ModelFilename: summary.ModelFilename,
		RulesFilename: summary.RulesFilename,
		ByEntity:      byEntity,
		ByProperty:    byProperty,
		Issues:        firstPage.Issues,
		Page:          firstPage.Page,
		TotalPages:    firstPage.TotalPages,
		TotalIssues:   firstPage.Total,
	}
	o.mu.Unlock()

	o.logger.Info("validation.report.ok",
		"session_id", h.ID,
		"issues_total", firstPage.Total,
		"total_pages", firstPage.TotalPages,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// LoadIssuesPage replaces the report's current issue page. Only the page
// fields change; summary and breakdowns are never refetched here.
func (o *Orchestrator) LoadIssuesPage(ctx context.Context, page int) error {
	h, ok := o.sessions.Current()
	if !ok {
		return common.ErrNoSession
	}

	o.mu.Lock()
	if o.report == nil {
		o.mu.Unlock()
		return ErrNoReport
	}
	totalPages := o.report.TotalPages
	filter := o.report.Filter
	o.mu.Unlock()

	if page < 1 || page > totalPages {
		return fmt.Errorf("page %d of %d: %w", page, totalPages, ErrPageOutOfRange)
	}

	result, err := o.client.Issues(ctx, h.ID, page, o.pageSize, filter)
	if err != nil {
		o.logger.Error("validation.page_failed", "session_id", h.ID, "page", page, "error", err)
		return fmt.Errorf("load issues page %d: %w", page, err)
	}
	if o.sessions.Stale(h) {
		return session.ErrSuperseded
	}

	o.applyPage(result, filter)
	return nil
}

// ApplyFilter narrows the issue list server-side and restarts paging at page
// 1 of the filtered set. A zero filter clears the narrowing.
func (o *Orchestrator) ApplyFilter(ctx context.Context, filter api.IssueFilter) error {
	h, ok := o.sessions.Current()
	if !ok {
		return common.ErrNoSession
	}

	o.mu.Lock()
	if o.report == nil {
		o.mu.Unlock()
		return ErrNoReport
	}
	o.mu.Unlock()

	result, err := o.client.Issues(ctx, h.ID, 1, o.pageSize, filter)
	if err != nil {
		o.logger.Error("validation.filter_failed", "session_id", h.ID, "error", err)
		return fmt.Errorf("apply issue filter: %w", err)
	}
	if o.sessions.Stale(h) {
		return session.ErrSuperseded
	}

	o.applyPage(result, filter)
	return nil
}

func (o *Orchestrator) applyPage(page api.IssuesPage, filter api.IssueFilter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.report == nil {
		return
	}
	o.report.Issues = page.Issues
	o.report.Page = page.Page
	o.report.TotalPages = page.TotalPages
	o.report.TotalIssues = page.Total
	o.report.Filter = filter
}
