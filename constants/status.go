package constants

// JobStatus is the status the server reports for a model processing job.
type JobStatus string

// Stable values (the server returns these exact strings).
const (
	JobStatusQueued  JobStatus = "queued"  // accepted, waiting for a worker
	JobStatusRunning JobStatus = "running" // parsing in progress
	JobStatusDone    JobStatus = "done"    // terminal success
	JobStatusError   JobStatus = "error"   // terminal failure
)

// Terminal reports whether s ends the polling loop.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Known reports whether s is one of the statuses the server may return.
func (s JobStatus) Known() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusDone, JobStatusError:
		return true
	}
	return false
}
