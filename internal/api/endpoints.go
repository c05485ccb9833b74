package api

import (
	"context"
	"net/url"
	"strconv"
)

// Health probes backend liveness.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.getJSON(ctx, "/health", nil, &out)
	return out, err
}

// UploadModel submits a primary model file. A non-empty sessionID asks the
// server to reuse that session instead of minting a disconnected one.
func (c *Client) UploadModel(ctx context.Context, filePath, sessionID string) (UploadAccepted, error) {
	query := url.Values{}
	if sessionID != "" {
		query.Set("session_id", sessionID)
	}
	var out UploadAccepted
	err := c.uploadFile(ctx, "/ifc/upload", query, filePath, &out)
	return out, err
}

// JobStatus polls one processing job. The body is schema-checked before it
// is trusted; a malformed body is reported as an error like any transport
// failure.
func (c *Client) JobStatus(ctx context.Context, jobID, sessionID string) (JobStatus, error) {
	var out JobStatus
	raw, err := c.getRaw(ctx, "/job/"+url.PathEscape(jobID), sessionQuery(sessionID))
	if err != nil {
		return out, err
	}
	if err := validateJobStatus(raw); err != nil {
		return out, err
	}
	err = unmarshalStrictEnough(raw, &out)
	return out, err
}

// Header fetches the model's STEP header document.
func (c *Client) Header(ctx context.Context, sessionID string) (HeaderDoc, error) {
	var out HeaderDoc
	err := c.getJSON(ctx, "/ifc/header", sessionQuery(sessionID), &out)
	return out, err
}

// Version fetches the model's schema identification.
func (c *Client) Version(ctx context.Context, sessionID string) (VersionDoc, error) {
	var out VersionDoc
	err := c.getJSON(ctx, "/ifc/version", sessionQuery(sessionID), &out)
	return out, err
}

// Units fetches the model's unit assignment table.
func (c *Client) Units(ctx context.Context, sessionID string) ([]Unit, error) {
	var out []Unit
	err := c.getJSON(ctx, "/ifc/units", sessionQuery(sessionID), &out)
	return out, err
}

// Georef fetches the model's georeferencing document.
func (c *Client) Georef(ctx context.Context, sessionID string) (GeorefDoc, error) {
	var out GeorefDoc
	err := c.getJSON(ctx, "/ifc/georef", sessionQuery(sessionID), &out)
	return out, err
}

// Summary fetches the spatial hierarchy and entity census.
func (c *Client) Summary(ctx context.Context, sessionID string) (ModelSummary, error) {
	var out ModelSummary
	err := c.getJSON(ctx, "/ifc/summary", sessionQuery(sessionID), &out)
	return out, err
}

// UploadRules submits a validation rules workbook for the session's model.
func (c *Client) UploadRules(ctx context.Context, filePath, sessionID string) (RulesAccepted, error) {
	var out RulesAccepted
	err := c.uploadFile(ctx, "/excel/upload", sessionQuery(sessionID), filePath, &out)
	return out, err
}

// ValidationSummary fetches the global counters of the session's validation run.
func (c *Client) ValidationSummary(ctx context.Context, sessionID string) (SummaryDoc, error) {
	var out SummaryDoc
	err := c.getJSON(ctx, "/validation/summary", sessionQuery(sessionID), &out)
	return out, err
}

// ValidationByEntity fetches results grouped by entity type.
func (c *Client) ValidationByEntity(ctx context.Context, sessionID string) (map[string]BreakdownCell, error) {
	var out map[string]BreakdownCell
	err := c.getJSON(ctx, "/validation/by-entity", sessionQuery(sessionID), &out)
	return out, err
}

// ValidationByProperty fetches results grouped by "Pset.Property" key.
func (c *Client) ValidationByProperty(ctx context.Context, sessionID string) (map[string]BreakdownCell, error) {
	var out map[string]BreakdownCell
	err := c.getJSON(ctx, "/validation/by-property", sessionQuery(sessionID), &out)
	return out, err
}

// IssueFilter narrows the issue list server-side. Zero value means no filter.
type IssueFilter struct {
	Entity string
	Reason string
}

// Issues fetches one page of the issue list, schema-checked.
func (c *Client) Issues(ctx context.Context, sessionID string, page, pageSize int, filter IssueFilter) (IssuesPage, error) {
	query := sessionQuery(sessionID)
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	if filter.Entity != "" {
		query.Set("entity", filter.Entity)
	}
	if filter.Reason != "" {
		query.Set("reason", filter.Reason)
	}
	var out IssuesPage
	raw, err := c.getRaw(ctx, "/validation/issues", query)
	if err != nil {
		return out, err
	}
	if err := validateIssuesPage(raw); err != nil {
		return out, err
	}
	err = unmarshalStrictEnough(raw, &out)
	return out, err
}

// Chat sends one question about the session's model.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (ChatAnswer, error) {
	body := map[string]string{
		"session_id": sessionID,
		"message":    message,
	}
	var out ChatAnswer
	err := c.postJSON(ctx, "/chat", body, &out)
	return out, err
}

// ExportCSVURL returns the passthrough download link for the CSV export.
func (c *Client) ExportCSVURL(sessionID string) string {
	return c.endpoint("/validation/export.csv", sessionQuery(sessionID))
}

// ExportXLSXURL returns the passthrough download link for the XLSX export.
func (c *Client) ExportXLSXURL(sessionID string) string {
	return c.endpoint("/validation/export.xlsx", sessionQuery(sessionID))
}

func sessionQuery(sessionID string) url.Values {
	query := url.Values{}
	query.Set("session_id", sessionID)
	return query
}
