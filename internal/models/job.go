package models

import "encoding/json"

// Job is the job queue's view of an ingestion job. The gateway never owns
// its storage; it only reads it and patches it through the job queue.
type Job struct {
	ID           string        `json:"id"`
	ResourceID   string        `json:"resourceId"` // Product id
	Version      string        `json:"version,omitempty"`
	Type         string        `json:"type"`
	Domain       string        `json:"domain,omitempty"`
	ProductType  string        `json:"productType"`
	ProductName  string        `json:"productName,omitempty"`
	Status       JobStatus     `json:"status"`
	Percentage   int           `json:"percentage"`
	Reason       string        `json:"reason,omitempty"`
	InternalID   string        `json:"internalId,omitempty"` // Catalog id for updates
	Parameters   JobParameters `json:"parameters"`
	Tasks        []Task        `json:"tasks,omitempty"`
	CreationTime string        `json:"creationTime,omitempty"`
}

// JobParameters is what an ingestion job carries for the async workers
type JobParameters struct {
	InputFiles       InputFiles        `json:"inputFiles"`
	Metadata         json.RawMessage   `json:"metadata,omitempty"`
	AdditionalParams *AdditionalParams `json:"additionalParams,omitempty"`
	CallbackURLs     []string          `json:"callbackUrls,omitempty"`
}

// AdditionalParams carries what workers need beyond the request itself
type AdditionalParams struct {
	LayerName        string          `json:"layerName"`
	Footprint        json.RawMessage `json:"footprint,omitempty"` // GeoJSON
	DisplayPath      string          `json:"displayPath,omitempty"`
	TileOutputFormat string          `json:"tileOutputFormat,omitempty"`
	SwapUpdate       bool            `json:"swapUpdate,omitempty"`
}

// Task is a unit of work inside a job
type Task struct {
	ID         string                   `json:"id"`
	JobID      string                   `json:"jobId"`
	Type       string                   `json:"type"`
	Status     JobStatus                `json:"status"`
	Attempts   int                      `json:"attempts"`
	Percentage int                      `json:"percentage"`
	Reason     string                   `json:"reason,omitempty"`
	Parameters ValidationTaskParameters `json:"parameters"`
}

// ValidationTaskParameters hold the outcome of the async validation and the
// fingerprint history of the metadata shapefile bundle
type ValidationTaskParameters struct {
	IsValid   bool              `json:"isValid"`
	Report    json.RawMessage   `json:"report,omitempty"`
	Checksums []FileFingerprint `json:"checksums"`
}

// JobStatus defines the lifecycle state of a job or task
type JobStatus string

const (
	JobStatusPending    JobStatus = "Pending"
	JobStatusInProgress JobStatus = "In-Progress"
	JobStatusCompleted  JobStatus = "Completed"
	JobStatusFailed     JobStatus = "Failed"
	JobStatusSuspended  JobStatus = "Suspended"
	JobStatusExpired    JobStatus = "Expired"
	JobStatusAborted    JobStatus = "Aborted"
)

// ActiveJobStatuses are the statuses in which an existing job blocks a new
// ingestion of the same product
var ActiveJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusInProgress,
	JobStatusFailed,
	JobStatusSuspended,
}

// IsValidJobStatus checks if the job status is recognized
func IsValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed,
		JobStatusSuspended, JobStatusExpired, JobStatusAborted:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a job in this status may be resubmitted
func (s JobStatus) IsRetryable() bool {
	return s == JobStatusFailed || s == JobStatusSuspended
}

// CanTransitionTo checks if state transition is valid
// Valid transitions:
//
//	pending -> in_progress
//	in_progress -> completed | failed | suspended
//	failed | suspended -> pending (manual retry)
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusInProgress || next == JobStatusAborted
	case JobStatusInProgress:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusSuspended
	case JobStatusFailed, JobStatusSuspended:
		return next == JobStatusPending
	default:
		return false
	}
}

// FindTaskByType returns the first task of the given type
func FindTaskByType(tasks []Task, taskType string) (Task, bool) {
	for _, task := range tasks {
		if task.Type == taskType {
			return task, true
		}
	}
	return Task{}, false
}

// CreateJobRequest is the payload submitted to the job queue
type CreateJobRequest struct {
	ResourceID  string              `json:"resourceId"`
	Version     string              `json:"version"`
	Type        string              `json:"type"`
	Domain      string              `json:"domain"`
	ProductType string              `json:"productType"`
	ProductName string              `json:"productName,omitempty"`
	InternalID  string              `json:"internalId,omitempty"`
	Status      JobStatus           `json:"status"`
	Parameters  JobParameters       `json:"parameters"`
	Tasks       []CreateTaskRequest `json:"tasks"`
}

// CreateTaskRequest is a task created together with its job
type CreateTaskRequest struct {
	Type       string                   `json:"type"`
	Parameters ValidationTaskParameters `json:"parameters"`
}

// CreateJobResponse is the job queue's answer to a job creation
type CreateJobResponse struct {
	ID      string   `json:"id"`
	TaskIDs []string `json:"taskIds"`
}

// JobUpdate is a partial update of a job. Nil fields are left untouched.
type JobUpdate struct {
	Status     *JobStatus `json:"status,omitempty"`
	Percentage *int       `json:"percentage,omitempty"`
	Reason     *string    `json:"reason,omitempty"`
}

// TaskUpdate is a partial update of a task. Nil fields are left untouched.
type TaskUpdate struct {
	Status     *JobStatus                `json:"status,omitempty"`
	Attempts   *int                      `json:"attempts,omitempty"`
	Percentage *int                      `json:"percentage,omitempty"`
	Reason     *string                   `json:"reason,omitempty"`
	Parameters *ValidationTaskParameters `json:"parameters,omitempty"`
}

// FindJobsCriteria filters jobs in the job queue
type FindJobsCriteria struct {
	ResourceID  string      `json:"resourceId,omitempty"`
	ProductType string      `json:"productType,omitempty"`
	Types       []string    `json:"types,omitempty"`
	Statuses    []JobStatus `json:"statuses,omitempty"`
}
