// Package jobs defines the queue abstraction that feeds documents to the
// pipeline workers. The interfaces allow different queue backends; the
// in-memory implementation lives in the inmemory subpackage.
package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeProcessDocument runs a document through the reconciliation
	// pipeline.
	JobTypeProcessDocument JobType = "process_document"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ProcessDocumentJob asks a worker to advance one document through the
// pipeline. Processing is idempotent, so redelivering the same job is safe.
type ProcessDocumentJob struct {
	JobID string `json:"job_id"`

	// DocumentID identifies the document to process.
	DocumentID string `json:"document_id"`

	// StorageURI is the document's object storage location.
	StorageURI string `json:"storage_uri"`

	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the last failure message.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ProcessDocumentJob) GetID() string {
	return j.JobID
}

func (j *ProcessDocumentJob) GetType() JobType {
	return JobTypeProcessDocument
}

func (j *ProcessDocumentJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher publishes jobs to a queue.
type Publisher interface {
	PublishProcessDocument(ctx context.Context, job *ProcessDocumentJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer consumes jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs; the handler is invoked for each job
	// received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error requeues the job until its
// retry budget runs out.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job execution state.
type JobStore interface {
	SaveJob(ctx context.Context, job *ProcessDocumentJob) error
	GetJob(ctx context.Context, jobID string) (*ProcessDocumentJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessDocumentJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	DocumentID string
	Status     JobStatus
	Limit      int
	Offset     int
}
