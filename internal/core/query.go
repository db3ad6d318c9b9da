package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lineagecore/internal/metrics"
	"lineagecore/pkg/domain"
)

// Query runs one read-only SQL statement against the metadata store with the
// synchronous execution budget. When the budget is exhausted the query is
// converted into an async job and the caller gets the job handle instead of
// rows; the same conversion happens when no synchronous engine is available.
func (s *Service) Query(ctx context.Context, query string) (QueryResult, *AsyncQueryJob, error) {
	if err := validateReadOnly(query); err != nil {
		return QueryResult{}, nil, err
	}
	if s.engine == nil {
		job, err := s.deferQuery(ctx, query)
		return QueryResult{}, job, err
	}

	execCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	result, err := s.engine.Execute(execCtx, query)
	if err == nil {
		return result, nil, nil
	}
	if !errors.Is(err, domain.ErrQueryTimeout) {
		return QueryResult{}, nil, fmt.Errorf("execute query: %w", err)
	}

	metrics.QueryTimeouts.Inc()
	s.log.Infow("query exceeded synchronous budget, deferring", "timeout", s.queryTimeout)
	job, err := s.deferQuery(ctx, query)
	return QueryResult{}, job, err
}

func (s *Service) deferQuery(ctx context.Context, query string) (*AsyncQueryJob, error) {
	job, err := s.jobs.CreateJob(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("create query job: %w", err)
	}
	if s.enqueue != nil {
		if err := s.enqueue.Enqueue(job.ID); err != nil {
			// The job row survives; the retention sweep or a restart
			// can still pick it up.
			s.log.Warnw("enqueue query job", "job_id", job.ID, "error", err)
		}
	}
	return &job, nil
}

// validateReadOnly rejects anything other than a single SELECT or WITH
// statement. The store-level credentials are the real enforcement; this check
// exists to fail obvious mutations fast with a useful error.
func validateReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}
	if i := strings.IndexByte(trimmed, ';'); i >= 0 && strings.TrimSpace(trimmed[i+1:]) != "" {
		return fmt.Errorf("multiple statements are not allowed")
	}
	head := strings.ToUpper(trimmed)
	if !strings.HasPrefix(head, "SELECT") && !strings.HasPrefix(head, "WITH") {
		return fmt.Errorf("only read-only queries are allowed")
	}
	return nil
}
