package core

import "lineagecore/pkg/domain"

type (
	EntityKind     = domain.EntityKind
	ConnectionType = domain.ConnectionType
	BundleVersion  = domain.BundleVersion
	FileVersion    = domain.FileVersion
	BundleFileLink = domain.BundleFileLink
	Manifest       = domain.Manifest
	ManifestEntry  = domain.ManifestEntry
	LinkRecord     = domain.LinkRecord
	LinksDocument  = domain.LinksDocument
	FetchedBundle  = domain.FetchedBundle
	FetchedFile    = domain.FetchedFile
	BundleEvent    = domain.BundleEvent
	SchemaType     = domain.SchemaType
	AsyncQueryJob  = domain.AsyncQueryJob
	JobStatus      = domain.JobStatus
	QueryResult    = domain.QueryResult
	MetadataStore  = domain.MetadataStore
	JobStore       = domain.JobStore
	QueryEngine    = domain.QueryEngine
	BundleFetcher  = domain.BundleFetcher
	Tx             = domain.Tx
)

const (
	EntityBundle = domain.EntityBundle
	EntityFile   = domain.EntityFile

	ConnectionInput    = domain.ConnectionInput
	ConnectionOutput   = domain.ConnectionOutput
	ConnectionProtocol = domain.ConnectionProtocol

	JobCreated    = domain.JobCreated
	JobProcessing = domain.JobProcessing
	JobComplete   = domain.JobComplete
	JobFailed     = domain.JobFailed
)
