package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/receiptworks/reconciler/internal/jobs"
)

// Store keeps job state in memory. State is lost on restart; use a
// database-backed store when that matters.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ProcessDocumentJob
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.ProcessDocumentJob),
	}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.ProcessDocumentJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ProcessDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	cp := *job
	return &cp, nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ProcessDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ProcessDocumentJob
	for _, job := range s.jobs {
		if filter.DocumentID != "" && job.DocumentID != filter.DocumentID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		cp := *job
		result = append(result, &cp)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ProcessDocumentJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
