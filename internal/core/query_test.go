package core

import (
	"context"
	"testing"
	"time"

	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/pkg/domain"
)

type stubEngine struct {
	result domain.QueryResult
	err    error
	calls  int
}

func (e *stubEngine) Execute(ctx context.Context, query string, args ...any) (domain.QueryResult, error) {
	e.calls++
	if e.err != nil {
		return domain.QueryResult{}, e.err
	}
	return e.result, nil
}

type recordingEnqueuer struct {
	ids []string
}

func (r *recordingEnqueuer) Enqueue(jobID string) error {
	r.ids = append(r.ids, jobID)
	return nil
}

func TestQueryReturnsRowsWithinBudget(t *testing.T) {
	engine := &stubEngine{result: domain.QueryResult{
		Columns: []string{"uuid"},
		Rows:    [][]any{{"b-1"}},
	}}
	store := memory.NewStore()
	svc := NewService(store, store, engine, nil)

	result, job, err := svc.Query(context.Background(), "SELECT uuid FROM bundle_versions")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if job != nil {
		t.Fatalf("expected no job for a fast query")
	}
	if len(result.Rows) != 1 || result.Rows[0][0] != "b-1" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestQueryTimeoutFallsBackToJob(t *testing.T) {
	engine := &stubEngine{err: domain.ErrQueryTimeout}
	enq := &recordingEnqueuer{}
	store := memory.NewStore()
	svc := NewService(store, store, engine, nil, WithJobEnqueuer(enq), WithQueryTimeout(50*time.Millisecond))

	_, job, err := svc.Query(context.Background(), "SELECT * FROM file_versions")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if job == nil {
		t.Fatalf("expected a job handle after timeout")
	}
	if job.Status != domain.JobCreated || job.Query != "SELECT * FROM file_versions" {
		t.Fatalf("unexpected job %+v", job)
	}
	if len(enq.ids) != 1 || enq.ids[0] != job.ID {
		t.Fatalf("expected the job to be enqueued, got %v", enq.ids)
	}

	stored, ok, err := svc.GetJob(context.Background(), job.ID)
	if err != nil || !ok {
		t.Fatalf("get job: ok=%v err=%v", ok, err)
	}
	if stored.ID != job.ID {
		t.Fatalf("unexpected stored job %+v", stored)
	}
}

func TestQueryWithoutEngineAlwaysDefers(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, store, nil, nil)

	_, job, err := svc.Query(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if job == nil {
		t.Fatalf("expected a job handle when no engine is configured")
	}
}

func TestQueryRejectsMutations(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store, store, &stubEngine{}, nil)

	for _, q := range []string{
		"",
		"DELETE FROM bundle_versions",
		"DROP TABLE file_versions",
		"SELECT 1; DELETE FROM bundle_versions",
		"update file_versions set size = 0",
	} {
		if _, _, err := svc.Query(context.Background(), q); err == nil {
			t.Fatalf("expected rejection for %q", q)
		}
	}
	// A trailing semicolon alone is fine.
	if _, _, err := svc.Query(context.Background(), "SELECT 1;"); err != nil {
		t.Fatalf("trailing semicolon: %v", err)
	}
	// CTEs are read-only and allowed.
	if _, _, err := svc.Query(context.Background(), "WITH x AS (SELECT 1) SELECT * FROM x"); err != nil {
		t.Fatalf("cte query: %v", err)
	}
}
