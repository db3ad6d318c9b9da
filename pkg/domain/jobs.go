package domain

import "time"

// JobStatus is the lifecycle state of an asynchronous query job.
type JobStatus string

const (
	// JobCreated marks a job that has been recorded but not picked up.
	JobCreated JobStatus = "CREATED"
	// JobProcessing marks a job a worker is currently executing.
	JobProcessing JobStatus = "PROCESSING"
	// JobComplete marks a job whose result has been stored. Terminal.
	JobComplete JobStatus = "COMPLETE"
	// JobFailed marks a job whose execution failed. Terminal.
	JobFailed JobStatus = "FAILED"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// CanTransition reports whether the state machine permits moving to next.
// The only legal path is CREATED -> PROCESSING -> {COMPLETE, FAILED}.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobCreated:
		return next == JobProcessing
	case JobProcessing:
		return next == JobComplete || next == JobFailed
	default:
		return false
	}
}

// AsyncQueryJob tracks one asynchronous query from creation through result
// handoff. ResultLocation is set only once the job is COMPLETE and names the
// blob key holding the serialized result.
type AsyncQueryJob struct {
	ID             string    `json:"job_id"`
	CreatedAt      time.Time `json:"created_at"`
	Status         JobStatus `json:"status"`
	Query          string    `json:"query"`
	ResultLocation string    `json:"result_location,omitempty"`
	Error          string    `json:"error,omitempty"`
}
