package analysis

import "github.com/bimaudit/bimaudit/internal/api"

// Snapshot is the merged result of the four analysis documents fetched for
// one session. Snapshots are published whole or not at all; a partially
// fetched round never becomes visible.
type Snapshot struct {
	SessionID string
	Header    api.HeaderDoc
	Version   api.VersionDoc
	Units     []api.Unit
	Georef    api.GeorefDoc
}
