package validation_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/common"
	"github.com/bimaudit/bimaudit/internal/session"
	"github.com/bimaudit/bimaudit/internal/validation"
)

const summaryBody = `{
	"summary": {
		"total_evaluated_elements": 40,
		"total_conforme_elements": 30,
		"total_nao_conforme_elements": 10,
		"percent_conforme": 75.0,
		"total_rules_applied": 120,
		"total_conformes": 96,
		"total_nao_conformes": 24
	},
	"discipline": "GAS",
	"stage": "COB",
	"ifc_filename": "VG076-GAS-COB01.ifc",
	"excel_filename": "rules.xlsx"
}`

func issuesBody(page, totalPages, total int) string {
	return fmt.Sprintf(`{
		"total": %d, "page": %d, "page_size": 2, "total_pages": %d,
		"issues": [
			{"global_id": "g%d-a", "step_id": 11, "entity_type": "IfcWall", "name": "Parede %d", "pset": "Pset_WallCommon", "property": "FireRating", "expected": "EI30", "actual": null, "reason": "Propriedade ausente"},
			{"global_id": "g%d-b", "step_id": 12, "entity_type": "IfcDoor", "name": "Porta %d", "pset": "Pset_DoorCommon", "property": "IsExternal", "expected": "TRUE", "actual": "FALSE", "reason": "Valor divergente"}
		]
	}`, total, page, totalPages, page, page, page, page)
}

// validationServer answers the rules upload and the four report fetches.
// failDoc marks one report path that should return 500.
func validationServer(t *testing.T, failDoc string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == failDoc {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"validation not ready"}`))
			return
		}
		switch r.URL.Path {
		case "/api/excel/upload":
			_, _ = w.Write([]byte(`{"status":"ok","discipline":"GAS","stage":"COB","summary":{},"rules_count":12}`))
		case "/api/validation/summary":
			_, _ = w.Write([]byte(summaryBody))
		case "/api/validation/by-entity":
			_, _ = w.Write([]byte(`{"IfcWall": {"total": 80, "conforme": 60, "nao_conforme": 20}, "IfcDoor": {"total": 40, "conforme": 36, "nao_conforme": 4}}`))
		case "/api/validation/by-property":
			_, _ = w.Write([]byte(`{
				"Pset_WallCommon.FireRating": {"total": 40, "conforme": 20, "nao_conforme": 20},
				"Pset_DoorCommon.IsExternal": {"total": 40, "conforme": 36, "nao_conforme": 4},
				"Pset_WallCommon.LoadBearing": {"total": 40, "conforme": 20, "nao_conforme": 20}
			}`))
		case "/api/validation/issues":
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			_, _ = w.Write([]byte(issuesBody(page, 12, 24)))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rulesFile(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"DISCIPLINA CATEGORIZADA", "CATEGORIA IFC", "Pset", "PROPRIEDADE IFC"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]string{"GAS", "IfcWall", "Pset_WallCommon", "FireRating"}))
	path := filepath.Join(t.TempDir(), "rules.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func newValidator(srv *httptest.Server, opts ...validation.Option) (*validation.Orchestrator, *session.Tracker) {
	sessions := session.NewTracker()
	return validation.New(api.NewClient(srv.URL, nil, nil), sessions, nil, opts...), sessions
}

func TestSubmitRulesFile_NoSession(t *testing.T) {
	srv := validationServer(t, "")
	o, _ := newValidator(srv)
	err := o.SubmitRulesFile(context.Background(), rulesFile(t))
	require.ErrorIs(t, err, common.ErrNoSession)
	require.Nil(t, o.Report())
}

func TestSubmitRulesFile_PublishesFullReport(t *testing.T) {
	srv := validationServer(t, "")
	o, sessions := newValidator(srv, validation.WithPageSize(2))
	sessions.Begin("s1")

	require.NoError(t, o.SubmitRulesFile(context.Background(), rulesFile(t)))

	report := o.Report()
	require.NotNil(t, report)
	require.Equal(t, "GAS", report.Discipline)
	require.Equal(t, "COB", report.Stage)
	require.Equal(t, "VG076-GAS-COB01.ifc", report.ModelFilename)
	require.Equal(t, 40, report.Summary.EvaluatedElements)
	require.Equal(t, 96, report.Summary.ConformantChecks)
	require.Len(t, report.ByEntity, 2)
	require.Len(t, report.ByProperty, 3)
	require.Equal(t, 1, report.Page)
	require.Equal(t, 12, report.TotalPages)
	require.Equal(t, 24, report.TotalIssues)
	require.Len(t, report.Issues, 2)
	require.Equal(t, "g1-a", report.Issues[0].GlobalID)

	// 96 of 120 checks passed.
	require.InDelta(t, 80.0, report.CompliancePercent(), 0.001)
}

func TestSubmitRulesFile_AnyFetchFailureKeepsPriorState(t *testing.T) {
	for _, failDoc := range []string{
		"/api/validation/summary",
		"/api/validation/by-entity",
		"/api/validation/by-property",
		"/api/validation/issues",
	} {
		t.Run(failDoc, func(t *testing.T) {
			srv := validationServer(t, failDoc)
			o, sessions := newValidator(srv)
			sessions.Begin("s1")

			err := o.SubmitRulesFile(context.Background(), rulesFile(t))
			require.ErrorIs(t, err, common.ErrUnavailable)
			require.Nil(t, o.Report(), "no partial report may be published")
		})
	}
}

func TestSubmitRulesFile_FailedRerunKeepsPriorReport(t *testing.T) {
	var failSummary atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/excel/upload":
			_, _ = w.Write([]byte(`{"status":"ok","discipline":"GAS","stage":"COB","summary":{},"rules_count":12}`))
		case "/api/validation/summary":
			if failSummary.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"detail":"validation not ready"}`))
				return
			}
			_, _ = w.Write([]byte(summaryBody))
		case "/api/validation/by-entity", "/api/validation/by-property":
			_, _ = w.Write([]byte(`{}`))
		case "/api/validation/issues":
			_, _ = w.Write([]byte(issuesBody(1, 1, 2)))
		}
	}))
	defer srv.Close()

	o, sessions := newValidator(srv, validation.WithPageSize(2))
	sessions.Begin("s1")
	require.NoError(t, o.SubmitRulesFile(context.Background(), rulesFile(t)))
	prior := o.Report()
	require.NotNil(t, prior)

	failSummary.Store(true)
	err := o.SubmitRulesFile(context.Background(), rulesFile(t))
	require.ErrorIs(t, err, common.ErrUnavailable)
	require.Same(t, prior, o.Report(), "a failed rerun must not disturb the published report")
}

func TestLoadIssuesPage_MutatesOnlyPageFields(t *testing.T) {
	srv := validationServer(t, "")
	o, sessions := newValidator(srv, validation.WithPageSize(2))
	sessions.Begin("s1")
	require.NoError(t, o.SubmitRulesFile(context.Background(), rulesFile(t)))

	before := *o.Report()
	require.NoError(t, o.LoadIssuesPage(context.Background(), 3))

	after := o.Report()
	require.Equal(t, 3, after.Page)
	require.Equal(t, "g3-a", after.Issues[0].GlobalID)

	// Everything outside the page fields is untouched.
	require.Equal(t, before.Summary, after.Summary)
	require.Equal(t, before.Discipline, after.Discipline)
	require.Equal(t, before.Stage, after.Stage)
	require.Equal(t, before.ByEntity, after.ByEntity)
	require.Equal(t, before.ByProperty, after.ByProperty)
}

func TestLoadIssuesPage_OutOfRange(t *testing.T) {
	srv := validationServer(t, "")
	o, sessions := newValidator(srv, validation.WithPageSize(2))
	sessions.Begin("s1")
	require.NoError(t, o.SubmitRulesFile(context.Background(), rulesFile(t)))

	// Rejected locally in both directions; the report keeps page 1.
	require.ErrorIs(t, o.LoadIssuesPage(context.Background(), 0), validation.ErrPageOutOfRange)
	require.ErrorIs(t, o.LoadIssuesPage(context.Background(), 13), validation.ErrPageOutOfRange)
	require.Equal(t, 1, o.Report().Page)
}

func TestLoadIssuesPage_NoReport(t *testing.T) {
	srv := validationServer(t, "")
	o, sessions := newValidator(srv)
	sessions.Begin("s1")
	require.ErrorIs(t, o.LoadIssuesPage(context.Background(), 1), validation.ErrNoReport)
}

func TestApplyFilter_RestartsAtPageOne(t *testing.T) {
	srv := validationServer(t, "")
	o, sessions := newValidator(srv, validation.WithPageSize(2))
	sessions.Begin("s1")
	require.NoError(t, o.SubmitRulesFile(context.Background(), rulesFile(t)))
	require.NoError(t, o.LoadIssuesPage(context.Background(), 5))

	filter := api.IssueFilter{Entity: "IfcWall"}
	require.NoError(t, o.ApplyFilter(context.Background(), filter))

	report := o.Report()
	require.Equal(t, 1, report.Page)
	require.Equal(t, filter, report.Filter)
}

func TestReset_DropsReport(t *testing.T) {
	srv := validationServer(t, "")
	o, sessions := newValidator(srv)
	sessions.Begin("s1")
	require.NoError(t, o.SubmitRulesFile(context.Background(), rulesFile(t)))
	require.NotNil(t, o.Report())

	o.Reset()
	require.Nil(t, o.Report())
}

func TestTopNonConformantProperties(t *testing.T) {
	report := &validation.Report{ByProperty: map[string]api.BreakdownCell{
		"Pset_WallCommon.FireRating":  {Total: 40, Conformant: 20, NonConformant: 20},
		"Pset_WallCommon.LoadBearing": {Total: 40, Conformant: 20, NonConformant: 20},
		"Pset_DoorCommon.IsExternal":  {Total: 40, Conformant: 36, NonConformant: 4},
	}}

	top := report.TopNonConformantProperties(2)
	require.Len(t, top, 2)
	// Ties break alphabetically so the order is stable.
	require.Equal(t, "Pset_WallCommon.FireRating", top[0].Key)
	require.Equal(t, "Pset_WallCommon.LoadBearing", top[1].Key)

	all := report.TopNonConformantProperties(0)
	require.Len(t, all, 3)
	require.Equal(t, "Pset_DoorCommon.IsExternal", all[2].Key)
}
