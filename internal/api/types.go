package api

import (
	"github.com/bimaudit/bimaudit/constants"
)

// UploadAccepted is the server's acknowledgement of a model upload.
type UploadAccepted struct {
	SessionID string `json:"session_id"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
}

// JobStatus is one poll of an in-flight processing job.
type JobStatus struct {
	Status   constants.JobStatus `json:"status"`
	Progress int                 `json:"progress"`
	Message  string              `json:"message"`
}

// HeaderDoc mirrors the STEP header of the uploaded model.
type HeaderDoc struct {
	FileDescription *FileDescription `json:"file_description,omitempty"`
	FileName        *FileNameEntry   `json:"file_name,omitempty"`
	FileSchema      *FileSchema      `json:"file_schema,omitempty"`
}

type FileDescription struct {
	Description         []string `json:"description"`
	ImplementationLevel string   `json:"implementation_level"`
}

type FileNameEntry struct {
	Name                string   `json:"name"`
	TimeStamp           string   `json:"time_stamp"`
	Author              []string `json:"author"`
	Organization        []string `json:"organization"`
	PreprocessorVersion string   `json:"preprocessor_version"`
	OriginatingSystem   string   `json:"originating_system"`
	Authorization       string   `json:"authorization"`
}

type FileSchema struct {
	SchemaIdentifiers []string `json:"schema_identifiers"`
}

// VersionDoc identifies the model's schema release.
type VersionDoc struct {
	Schema           string `json:"schema"`
	SchemaIdentifier string `json:"schema_identifier"`
	VersionLabel     string `json:"version_label"`
}

// Unit is one entry of the model's unit assignment.
type Unit struct {
	Type     string `json:"type"`
	StepID   *int   `json:"step_id"`
	UnitType string `json:"unit_type"`
	Prefix   string `json:"prefix,omitempty"`
	Name     string `json:"name"`
}

// GeorefDoc aggregates the georeferencing evidence found in the model.
type GeorefDoc struct {
	HasGeoref     bool           `json:"has_georef"`
	SiteData      *SiteData      `json:"site_data"`
	MapConversion *MapConversion `json:"map_conversion"`
	ProjectedCRS  *ProjectedCRS  `json:"projected_crs"`
	Summary       []string       `json:"summary"`
}

// SiteData carries the first site's reference coordinates. Latitude and
// longitude arrive as degree/minute/second component lists.
type SiteData struct {
	Name         string    `json:"name"`
	StepID       *int      `json:"step_id"`
	GlobalID     string    `json:"global_id"`
	RefLatitude  []float64 `json:"ref_latitude,omitempty"`
	RefLongitude []float64 `json:"ref_longitude,omitempty"`
	RefElevation *float64  `json:"ref_elevation,omitempty"`
}

type MapConversion struct {
	StepID           *int     `json:"step_id"`
	Eastings         *float64 `json:"eastings"`
	Northings        *float64 `json:"northings"`
	OrthogonalHeight *float64 `json:"orthogonal_height"`
	XAxisAbscissa    *float64 `json:"x_axis_abscissa"`
	XAxisOrdinate    *float64 `json:"x_axis_ordinate"`
	Scale            *float64 `json:"scale"`
}

type ProjectedCRS struct {
	StepID        *int   `json:"step_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	GeodeticDatum string `json:"geodetic_datum"`
	VerticalDatum string `json:"vertical_datum"`
	MapProjection string `json:"map_projection"`
	MapZone       string `json:"map_zone"`
}

// ModelSummary is the lazily-loaded spatial hierarchy and entity census.
type ModelSummary struct {
	Hierarchy     Hierarchy      `json:"hierarchy"`
	EntitySummary map[string]int `json:"entity_summary"`
	ElementCount  int            `json:"element_count"`
	Filename      string         `json:"filename"`
}

type Hierarchy struct {
	Project   *SpatialNode  `json:"project"`
	Sites     []SpatialNode `json:"sites"`
	Buildings []SpatialNode `json:"buildings"`
	Storeys   []SpatialNode `json:"storeys"`
	Spaces    []SpatialNode `json:"spaces"`
}

type SpatialNode struct {
	Name        string   `json:"name"`
	GlobalID    string   `json:"global_id"`
	StepID      *int     `json:"step_id"`
	Description string   `json:"description,omitempty"`
	LongName    string   `json:"long_name,omitempty"`
	Elevation   *float64 `json:"elevation,omitempty"`
}

// RulesAccepted is the server's acknowledgement of a rules workbook upload.
type RulesAccepted struct {
	Status     string            `json:"status"`
	Discipline string            `json:"discipline"`
	Stage      string            `json:"stage"`
	Summary    ValidationSummary `json:"summary"`
	RulesCount int               `json:"rules_count"`
}

// ValidationSummary is the global counters of one validation run.
type ValidationSummary struct {
	EvaluatedElements     int     `json:"total_evaluated_elements"`
	ConformantElements    int     `json:"total_conforme_elements"`
	NonConformantElements int     `json:"total_nao_conforme_elements"`
	PercentConformant     float64 `json:"percent_conforme"`
	RulesApplied          int     `json:"total_rules_applied"`
	ConformantChecks      int     `json:"total_conformes"`
	NonConformantChecks   int     `json:"total_nao_conformes"`
}

// SummaryDoc wraps the validation summary with run metadata.
type SummaryDoc struct {
	Summary       ValidationSummary `json:"summary"`
	Discipline    string            `json:"discipline"`
	Stage         string            `json:"stage"`
	ModelFilename string            `json:"ifc_filename"`
	RulesFilename string            `json:"excel_filename"`
}

// BreakdownCell is one bucket of a grouped validation breakdown.
type BreakdownCell struct {
	Total         int `json:"total"`
	Conformant    int `json:"conforme"`
	NonConformant int `json:"nao_conforme"`
}

// Issue is one non-conformance finding, in server order.
type Issue struct {
	GlobalID   string  `json:"global_id"`
	StepID     *int    `json:"step_id"`
	EntityType string  `json:"entity_type"`
	Name       string  `json:"name"`
	Pset       string  `json:"pset"`
	Property   string  `json:"property"`
	Expected   string  `json:"expected"`
	Actual     *string `json:"actual"`
	Reason     string  `json:"reason"`
}

// IssuesPage is one server-side page of the issue list.
type IssuesPage struct {
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int     `json:"total_pages"`
	Issues     []Issue `json:"issues"`
}

// ChatAnswer is one assistant reply with its model citations.
type ChatAnswer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source cites where in the model an answer came from.
type Source struct {
	GUID   string `json:"guid"`
	StepID *int   `json:"step_id"`
	Entity string `json:"entity"`
	Path   string `json:"path"`
}

// Health is the backend liveness document.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
