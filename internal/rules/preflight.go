// Package rules inspects a validation rules workbook before it is uploaded,
// so an obviously unusable file fails fast on the client instead of after a
// round trip.
package rules

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bimaudit/bimaudit/constants"
)

// RequiredColumns are the workbook headers the server insists on.
var RequiredColumns = []string{
	"DISCIPLINA CATEGORIZADA",
	"CATEGORIA IFC",
	"Pset",
	"PROPRIEDADE IFC",
}

// DisciplineStage extracts the discipline (characters 7-9) and stage
// (characters 11-13) encoded in a model filename.
// Example: VG076-GAS-COB01.ifc -> discipline GAS, stage COB.
func DisciplineStage(filename string) (discipline, stage string, err error) {
	base := filename
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	runes := []rune(base)
	if len(runes) < 13 {
		return "", "", fmt.Errorf("model filename %q is outside the naming convention: need at least 13 characters to read discipline (7-9) and stage (11-13)", filename)
	}
	discipline = string(runes[6:9])
	stage = string(runes[10:13])
	if !constants.KnownStage(stage) {
		return "", "", fmt.Errorf("stage %q from %q is not recognized (valid: %s)", stage, filename, strings.Join(constants.Stages, ", "))
	}
	return discipline, stage, nil
}

// Result summarizes what the workbook holds for one discipline and stage.
type Result struct {
	Discipline    string
	Stage         string
	TotalRows     int
	MatchingRules int
}

// Preflight opens the workbook at path and checks it the way the server
// will: required columns present, and at least one rule row applicable to
// the discipline. The stage column itself may be empty per row (an empty
// expected value means the rule is ignored), so only the discipline filter
// and the three identity columns gate a row here.
func Preflight(path, discipline, stage string, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{Discipline: discipline, Stage: stage}

	if !constants.IsRulesFile(path) {
		return res, fmt.Errorf("only .%s workbooks are accepted: %s", constants.RulesExtension, path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return res, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("rules.workbook_close_error", "path", path, "error", cerr)
		}
	}()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return res, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return res, fmt.Errorf("sheet %q is empty", sheet)
	}

	headers := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		headers[strings.TrimSpace(h)] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := headers[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return res, fmt.Errorf("workbook is missing required columns: %s", strings.Join(missing, ", "))
	}

	cell := func(row []string, col string) string {
		i := headers[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for _, row := range rows[1:] {
		res.TotalRows++
		if cell(row, "DISCIPLINA CATEGORIZADA") != discipline {
			continue
		}
		if cell(row, "CATEGORIA IFC") == "" || cell(row, "Pset") == "" || cell(row, "PROPRIEDADE IFC") == "" {
			continue
		}
		res.MatchingRules++
	}

	if res.MatchingRules == 0 {
		return res, fmt.Errorf("no rules found for discipline %q in %s", discipline, path)
	}

	logger.Info("rules.preflight.ok",
		"path", path,
		"discipline", discipline,
		"stage", stage,
		"rows", res.TotalRows,
		"matching_rules", res.MatchingRules,
	)
	return res, nil
}
