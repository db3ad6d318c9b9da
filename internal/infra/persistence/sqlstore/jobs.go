package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lineagecore/pkg/domain"
)

func newID() string { return uuid.NewString() }

// CreateJob records a new asynchronous query job in the CREATED state.
func (s *Store) CreateJob(ctx context.Context, query string) (domain.AsyncQueryJob, error) {
	job := domain.AsyncQueryJob{
		ID:        s.idFn(),
		CreatedAt: s.nowFn(),
		Status:    domain.JobCreated,
		Query:     query,
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO async_query_jobs (job_id, created_at, status, query) VALUES (?, ?, ?, ?)`),
		job.ID, timeParam(job.CreatedAt), string(job.Status), job.Query,
	)
	if err != nil {
		return domain.AsyncQueryJob{}, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// GetJob returns the job by id, if present.
func (s *Store) GetJob(ctx context.Context, id string) (domain.AsyncQueryJob, bool, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT job_id, created_at, status, query, result_location, error FROM async_query_jobs WHERE job_id = ?`), id)
	var job domain.AsyncQueryJob
	var createdAt any
	var location, message sql.NullString
	err := row.Scan(&job.ID, &createdAt, &job.Status, &job.Query, &location, &message)
	if isNoRows(err) {
		return domain.AsyncQueryJob{}, false, nil
	}
	if err != nil {
		return domain.AsyncQueryJob{}, false, fmt.Errorf("get job %s: %w", id, err)
	}
	if job.CreatedAt, err = asTime(createdAt); err != nil {
		return domain.AsyncQueryJob{}, false, fmt.Errorf("job %s: %w", id, err)
	}
	job.ResultLocation = location.String
	job.Error = message.String
	return job, true, nil
}

// UpdateJobStatus advances the job state machine with a row-scoped guard: the
// UPDATE matches only rows whose current status permits the transition, so a
// stale worker cannot move a job out of a terminal state.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus) error {
	return s.transition(ctx, id, status, `UPDATE async_query_jobs SET status = ? WHERE job_id = ? AND status = ?`, string(status), id)
}

// CompleteJob marks the job COMPLETE and records where the result lives.
func (s *Store) CompleteJob(ctx context.Context, id, resultLocation string) error {
	return s.transition(ctx, id, domain.JobComplete,
		`UPDATE async_query_jobs SET status = ?, result_location = ? WHERE job_id = ? AND status = ?`,
		string(domain.JobComplete), resultLocation, id)
}

// FailJob marks the job FAILED with a diagnostic message.
func (s *Store) FailJob(ctx context.Context, id, message string) error {
	return s.transition(ctx, id, domain.JobFailed,
		`UPDATE async_query_jobs SET status = ?, error = ? WHERE job_id = ? AND status = ?`,
		string(domain.JobFailed), message, id)
}

// transition runs a guarded status update. The final argument bound to each
// statement is the status the row must currently hold.
func (s *Store) transition(ctx context.Context, id string, next domain.JobStatus, query string, args ...any) error {
	job, ok, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityQueryJob, ID: id}
	}
	if !job.Status.CanTransition(next) {
		return domain.ErrInvalidTransition{From: job.Status, To: next}
	}
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), append(args, string(job.Status))...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// A concurrent writer advanced the row between read and update.
		return domain.ErrInvalidTransition{From: job.Status, To: next}
	}
	return nil
}

// DeleteJobsOlderThan removes jobs created before the cutoff.
func (s *Store) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`DELETE FROM async_query_jobs WHERE created_at < ?`), timeParam(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return int(n), nil
}
