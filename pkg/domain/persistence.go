package domain

import (
	"context"
	"time"
)

// Tx exposes the write and lookup operations a persistence implementation
// must support within one atomic scope. All puts and link inserts are
// idempotent: a duplicate key with an identical payload is a no-op, never an
// error, because the ingestion transport redelivers events at least once.
type Tx interface {
	// PutBundle upserts a bundle version. inserted is false on duplicate.
	PutBundle(b BundleVersion) (inserted bool, err error)
	// PutFile upserts a file version. inserted is false on duplicate.
	PutFile(f FileVersion) (inserted bool, err error)
	// DeleteBundles removes bundle versions by fqid. No-op on an empty list.
	DeleteBundles(fqids []string) error
	// DeleteFiles removes file versions by fqid. No-op on an empty list.
	DeleteFiles(fqids []string) error

	// RegisterSchemaType records a schema type on first sighting; isNew is
	// false when the type was already known (get-or-create semantics).
	RegisterSchemaType(name string) (isNew bool, err error)

	// LinkBundleFile records bundle membership of a file version.
	LinkBundleFile(bundleFQID, fileFQID, name string) error
	// LinkProcessFile records a process↔file association, creating the
	// process node on first sighting.
	LinkProcessFile(processUUID, fileUUID string, role ConnectionType) error
	// RecordProcessEdge records a derived parent→child adjacency. Self-loops
	// are rejected as no-ops.
	RecordProcessEdge(parentUUID, childUUID string) error
	// UnlinkBundle removes all bundle-file links owned by the bundle and
	// returns the file fqids that were linked.
	UnlinkBundle(bundleFQID string) ([]string, error)

	// FilesForBundles returns membership links for the given bundle fqids.
	FilesForBundles(bundleFQIDs []string) ([]BundleFileLink, error)
	// BundlesForFiles returns membership links for the given file fqids.
	BundlesForFiles(fileFQIDs []string) ([]BundleFileLink, error)
	// ProcessesForFiles returns the uuids of known processes linked to any of
	// the given file uuids in the given role.
	ProcessesForFiles(fileUUIDs []string, role ConnectionType) ([]string, error)
}

// MetadataStore is the durable backend for the versioned metadata store, the
// link index, the lineage graph, and the derived projections. Write sequences
// go through RunInTransaction; reads outside a transaction observe the last
// committed state.
type MetadataStore interface {
	RunInTransaction(ctx context.Context, fn func(Tx) error) error

	GetBundle(ctx context.Context, fqid string) (BundleVersion, bool, error)
	GetFile(ctx context.Context, fqid string) (FileVersion, bool, error)

	FilesForBundles(ctx context.Context, bundleFQIDs []string) ([]BundleFileLink, error)
	BundlesForFiles(ctx context.Context, fileFQIDs []string) ([]BundleFileLink, error)
	// ProcessesForFile returns processes linked to the file uuid; role nil
	// matches any connection type.
	ProcessesForFile(ctx context.Context, fileUUID string, role *ConnectionType) ([]string, error)
	DirectParents(ctx context.Context, processUUID string) ([]string, error)
	DirectChildren(ctx context.Context, processUUID string) ([]string, error)
	// Ancestors returns the transitive closure over parent edges, excluding
	// the starting process. Cycle-safe on malformed input.
	Ancestors(ctx context.Context, processUUID string) ([]string, error)
	// Descendants returns the transitive closure over child edges, excluding
	// the starting process. Cycle-safe on malformed input.
	Descendants(ctx context.Context, processUUID string) ([]string, error)

	ListSchemaTypes(ctx context.Context) ([]SchemaType, error)
	// RefreshSchemaProjections creates any missing per-type projections and
	// refreshes existing ones. Idempotent and safe to retry.
	RefreshSchemaProjections(ctx context.Context) error

	// RefreshLatestVersions rebuilds the latest-version projection for the
	// given entity kind. Explicitly triggered; readers of the projection
	// tolerate staleness between refreshes.
	RefreshLatestVersions(ctx context.Context, kind EntityKind) error
	LatestBundle(ctx context.Context, uuid string) (BundleVersion, bool, error)
	LatestFile(ctx context.Context, uuid string) (FileVersion, bool, error)
}

// JobStore manages asynchronous query job lifecycle records.
type JobStore interface {
	CreateJob(ctx context.Context, query string) (AsyncQueryJob, error)
	GetJob(ctx context.Context, id string) (AsyncQueryJob, bool, error)
	// UpdateJobStatus advances the job state machine; transitions out of a
	// terminal state return ErrInvalidTransition.
	UpdateJobStatus(ctx context.Context, id string, status JobStatus) error
	// CompleteJob marks the job COMPLETE and records the result location.
	CompleteJob(ctx context.Context, id, resultLocation string) error
	// FailJob marks the job FAILED with a diagnostic message.
	FailJob(ctx context.Context, id, message string) error
	// DeleteJobsOlderThan removes jobs created before the cutoff and returns
	// the number removed.
	DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// QueryResult carries the rows and column names of an ad hoc read query.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// QueryEngine executes read-only ad hoc queries against the relational
// backend. Implementations surface deadline expiry as ErrQueryTimeout.
type QueryEngine interface {
	Execute(ctx context.Context, query string, args ...any) (QueryResult, error)
}

// BundleFetcher retrieves the manifest and constituent file bodies for one
// bundle version from the upstream content source.
type BundleFetcher interface {
	Fetch(ctx context.Context, bundleUUID, bundleVersion string) (FetchedBundle, error)
}
