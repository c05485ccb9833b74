package validation

import (
	"sort"

	"github.com/bimaudit/bimaudit/internal/api"
)

// Report aggregates one validation run: global counters, grouped breakdowns,
// and the currently loaded page of the issue list. Only the page fields
// change after publication; summary and breakdowns stay as fetched.
type Report struct {
	Summary       api.ValidationSummary
	Discipline    string
	Stage         string
	ModelFilename string
	RulesFilename string
	ByEntity      map[string]api.BreakdownCell
	ByProperty    map[string]api.BreakdownCell

	Issues      []api.Issue
	Page        int
	TotalPages  int
	TotalIssues int
	Filter      api.IssueFilter
}

// CompliancePercent is the share of applied checks that passed, 0 when no
// checks were applied.
func (r *Report) CompliancePercent() float64 {
	return percent(r.Summary.ConformantChecks, r.Summary.RulesApplied)
}

// PropertyStat is one row of the property breakdown with its display name.
type PropertyStat struct {
	Key  string // "Pset.Property"
	Cell api.BreakdownCell
}

// TopNonConformantProperties returns the property breakdown sorted by
// descending non-conformance count, cut to at most n entries. This is a
// display policy: the full breakdown stays in ByProperty.
func (r *Report) TopNonConformantProperties(n int) []PropertyStat {
	stats := make([]PropertyStat, 0, len(r.ByProperty))
	for key, cell := range r.ByProperty {
		stats = append(stats, PropertyStat{Key: key, Cell: cell})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Cell.NonConformant != stats[j].Cell.NonConformant {
			return stats[i].Cell.NonConformant > stats[j].Cell.NonConformant
		}
		return stats[i].Key < stats[j].Key
	})
	if n > 0 && len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// ConformancePercent computes the pass rate of one breakdown bucket.
func ConformancePercent(cell api.BreakdownCell) float64 {
	return percent(cell.Conformant, cell.Total)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
