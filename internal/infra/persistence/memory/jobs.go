package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lineagecore/pkg/domain"
)

func newID() string { return uuid.NewString() }

// CreateJob records a new asynchronous query job in the CREATED state.
func (s *Store) CreateJob(ctx context.Context, query string) (domain.AsyncQueryJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := domain.AsyncQueryJob{
		ID:        s.idFn(),
		CreatedAt: s.nowFn(),
		Status:    domain.JobCreated,
		Query:     query,
	}
	s.state.jobs[job.ID] = job
	return job, nil
}

// GetJob returns the job by id, if present.
func (s *Store) GetJob(ctx context.Context, id string) (domain.AsyncQueryJob, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.state.jobs[id]
	return job, ok, nil
}

// UpdateJobStatus advances the job state machine.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.state.jobs[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityQueryJob, ID: id}
	}
	if !job.Status.CanTransition(status) {
		return domain.ErrInvalidTransition{From: job.Status, To: status}
	}
	job.Status = status
	s.state.jobs[id] = job
	return nil
}

// CompleteJob marks the job COMPLETE and records where the result lives.
func (s *Store) CompleteJob(ctx context.Context, id, resultLocation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.state.jobs[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityQueryJob, ID: id}
	}
	if !job.Status.CanTransition(domain.JobComplete) {
		return domain.ErrInvalidTransition{From: job.Status, To: domain.JobComplete}
	}
	job.Status = domain.JobComplete
	job.ResultLocation = resultLocation
	s.state.jobs[id] = job
	return nil
}

// FailJob marks the job FAILED with a diagnostic message.
func (s *Store) FailJob(ctx context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.state.jobs[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityQueryJob, ID: id}
	}
	if !job.Status.CanTransition(domain.JobFailed) {
		return domain.ErrInvalidTransition{From: job.Status, To: domain.JobFailed}
	}
	job.Status = domain.JobFailed
	job.Error = message
	s.state.jobs[id] = job
	return nil
}

// DeleteJobsOlderThan removes jobs created before the cutoff.
func (s *Store) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.state.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(s.state.jobs, id)
			removed++
		}
	}
	return removed, nil
}
