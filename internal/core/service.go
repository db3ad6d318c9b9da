// Package core orchestrates the ingestion, deletion, and query paths over
// the metadata store. Every write sequence runs inside one store transaction
// per logical phase; idempotent inserts let the at-least-once event transport
// converge without coordination between workers.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"lineagecore/pkg/domain"
)

const defaultQueryTimeout = 20 * time.Second

// JobEnqueuer hands a created async query job to a background executor. The
// worker adapter implements it; a nil enqueuer leaves jobs for an external
// worker to pick up.
type JobEnqueuer interface {
	Enqueue(jobID string) error
}

// Service exposes the core operation contracts to the API layer.
type Service struct {
	store   domain.MetadataStore
	jobs    domain.JobStore
	engine  domain.QueryEngine
	fetcher domain.BundleFetcher

	enqueue JobEnqueuer
	catalog *schemaCatalog
	log     *zap.SugaredLogger

	queryTimeout time.Duration
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithFetcher supplies the upstream bundle content fetcher used when
// handling raw bundle events.
func WithFetcher(f domain.BundleFetcher) Option {
	return func(s *Service) { s.fetcher = f }
}

// WithJobEnqueuer attaches the async query executor.
func WithJobEnqueuer(e JobEnqueuer) Option {
	return func(s *Service) { s.enqueue = e }
}

// WithQueryTimeout overrides the synchronous query execution budget.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// NewService constructs the core service. engine may be nil when the backend
// has no ad hoc query surface (the in-memory store); Query then always fails
// over to the async path.
func NewService(store domain.MetadataStore, jobs domain.JobStore, engine domain.QueryEngine, log *zap.SugaredLogger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Service{
		store:        store,
		jobs:         jobs,
		engine:       engine,
		catalog:      newSchemaCatalog(),
		log:          log,
		queryTimeout: defaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying metadata store.
func (s *Service) Store() domain.MetadataStore { return s.store }

// HandleBundleEvent dispatches a decoded bundle event to the matching
// pipeline, fetching content for create events.
func (s *Service) HandleBundleEvent(ctx context.Context, ev BundleEvent) error {
	if ev.Tombstone {
		return s.DropBundle(ctx, ev.BundleUUID, ev.BundleVersion)
	}
	if s.fetcher == nil {
		return fmt.Errorf("no bundle fetcher configured")
	}
	fetched, err := s.fetcher.Fetch(ctx, ev.BundleUUID, ev.BundleVersion)
	if err != nil {
		return fmt.Errorf("fetch bundle %s.%s: %w", ev.BundleUUID, ev.BundleVersion, err)
	}
	return s.IngestBundle(ctx, ev.BundleUUID, ev.BundleVersion, fetched)
}

// RefreshProjections runs the deferred projection maintenance: the
// latest-version projections for both entity kinds and the per-schema-type
// projections. Each step is idempotent and independently retriable.
func (s *Service) RefreshProjections(ctx context.Context) error {
	if err := s.store.RefreshLatestVersions(ctx, EntityBundle); err != nil {
		return err
	}
	if err := s.store.RefreshLatestVersions(ctx, EntityFile); err != nil {
		return err
	}
	return s.store.RefreshSchemaProjections(ctx)
}

// Ancestors returns the transitive closure upstream of the process.
func (s *Service) Ancestors(ctx context.Context, processUUID string) ([]string, error) {
	return s.store.Ancestors(ctx, processUUID)
}

// Descendants returns the transitive closure downstream of the process.
func (s *Service) Descendants(ctx context.Context, processUUID string) ([]string, error) {
	return s.store.Descendants(ctx, processUUID)
}

// GetJob returns the async query job by id.
func (s *Service) GetJob(ctx context.Context, id string) (AsyncQueryJob, bool, error) {
	return s.jobs.GetJob(ctx, id)
}

// schemaCatalog is a read-through cache over the store-backed schema type
// table. The table is the source of truth; the cache only short-circuits
// re-registration of types this process has already committed.
type schemaCatalog struct {
	mu    sync.RWMutex
	known map[string]struct{}
}

func newSchemaCatalog() *schemaCatalog {
	return &schemaCatalog{known: make(map[string]struct{})}
}

func (c *schemaCatalog) has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.known[name]
	return ok
}

func (c *schemaCatalog) remember(names []string) {
	if len(names) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, name := range names {
		c.known[name] = struct{}{}
	}
}
