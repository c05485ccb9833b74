// Package export builds local issue reports by walking every page of the
// server-side issue list. The server also offers its own export downloads;
// their URLs are passed through untouched for callers that prefer them.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/common"
	"github.com/bimaudit/bimaudit/internal/session"
)

// Service walks issue pages and renders them as a workbook or CSV.
type Service struct {
	client   *api.Client
	sessions *session.Tracker
	pageSize int
	logger   *slog.Logger
}

// NewService creates a Service fetching pageSize issues per request.
func NewService(client *api.Client, sessions *session.Tracker, pageSize int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize < 1 {
		pageSize = 50
	}
	return &Service{client: client, sessions: sessions, pageSize: pageSize, logger: logger}
}

var issueHeaders = []string{
	"GUID",
	"STEP ID",
	"Entity",
	"Name",
	"Pset",
	"Property",
	"Expected",
	"Actual",
	"Reason",
}

// IssuesXLSX returns an XLSX workbook (as bytes) holding every issue of the
// session's validation run, one row per issue, in server order.
func (s *Service) IssuesXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	issues, h, err := s.fetchAll(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Issues"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range issueHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, issue := range issues {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, issue.GlobalID)
		if issue.StepID != nil {
			write(2, *issue.StepID)
		}
		write(3, issue.EntityType)
		write(4, truncate(issue.Name, 140))
		write(5, issue.Pset)
		write(6, issue.Property)
		write(7, issue.Expected)
		if issue.Actual != nil {
			write(8, *issue.Actual)
		}
		write(9, issue.Reason)
		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 26) // guid
	_ = f.SetColWidth(sheet, "C", "C", 22) // entity
	_ = f.SetColWidth(sheet, "D", "D", 32) // name
	_ = f.SetColWidth(sheet, "E", "F", 28) // pset/property
	_ = f.SetColWidth(sheet, "G", "H", 18) // expected/actual
	_ = f.SetColWidth(sheet, "I", "I", 24) // reason

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"session_id", h.ID,
		"rows", len(issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// IssuesCSV writes every issue of the session's validation run to w.
func (s *Service) IssuesCSV(ctx context.Context, w io.Writer) error {
	start := time.Now()

	issues, h, err := s.fetchAll(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(issueHeaders); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	for _, issue := range issues {
		stepID := ""
		if issue.StepID != nil {
			stepID = fmt.Sprintf("%d", *issue.StepID)
		}
		actual := ""
		if issue.Actual != nil {
			actual = *issue.Actual
		}
		record := []string{
			issue.GlobalID,
			stepID,
			issue.EntityType,
			issue.Name,
			issue.Pset,
			issue.Property,
			issue.Expected,
			actual,
			issue.Reason,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}

	s.logger.Info("export.csv.ok",
		"session_id", h.ID,
		"rows", len(issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// ServerCSVURL returns the backend's own CSV download link for the session.
func (s *Service) ServerCSVURL() (string, error) {
	h, ok := s.sessions.Current()
	if !ok {
		return "", common.ErrNoSession
	}
	return s.client.ExportCSVURL(h.ID), nil
}

// ServerXLSXURL returns the backend's own XLSX download link for the session.
func (s *Service) ServerXLSXURL() (string, error) {
	h, ok := s.sessions.Current()
	if !ok {
		return "", common.ErrNoSession
	}
	return s.client.ExportXLSXURL(h.ID), nil
}

// fetchAll walks the issue pages in order until the reported page count is
// exhausted. Pages are fetched sequentially; order must match the server's.
func (s *Service) fetchAll(ctx context.Context) ([]api.Issue, session.Handle, error) {
	h, ok := s.sessions.Current()
	if !ok {
		return nil, session.Handle{}, common.ErrNoSession
	}

	var issues []api.Issue
	page := 1
	for {
		result, err := s.client.Issues(ctx, h.ID, page, s.pageSize, api.IssueFilter{})
		if err != nil {
			return nil, h, fmt.Errorf("fetch issues page %d: %w", page, err)
		}
		if s.sessions.Stale(h) {
			return nil, h, session.ErrSuperseded
		}
		issues = append(issues, result.Issues...)
		if page >= result.TotalPages || len(result.Issues) == 0 {
			return issues, h, nil
		}
		page++
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
