package constants

import "strings"

// ModelExtension is the only extension accepted for primary model uploads.
const ModelExtension = "ifc"

// RulesExtension is the only extension accepted for validation rule workbooks.
const RulesExtension = "xlsx"

// Stages are the project stages recognized in rule workbooks and model filenames.
var Stages = []string{"EMB", "TOR", "DPX", "COB", "AC", "FAC"}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsModelFile reports whether name carries the model extension.
func IsModelFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "."+ModelExtension)
}

// IsRulesFile reports whether name carries the rules workbook extension.
func IsRulesFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "."+RulesExtension)
}

// KnownStage reports whether stage is one of the recognized project stages.
func KnownStage(stage string) bool {
	for _, s := range Stages {
		if strings.EqualFold(stage, s) {
			return true
		}
	}
	return false
}
