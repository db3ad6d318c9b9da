// Package domain defines the persistent entities, identifiers, and store
// contracts shared by the lineagecore ingestion, deletion, and query layers.
package domain

import (
	"encoding/json"
	"time"
)

// EntityKind identifies the kind of versioned record held by the entity store.
type EntityKind string

const (
	// EntityBundle identifies a versioned bundle record.
	EntityBundle EntityKind = "bundle"
	// EntityFile identifies a versioned file record.
	EntityFile EntityKind = "file"
	// EntityProcess identifies a derived processing-step node.
	EntityProcess EntityKind = "process"
	// EntitySchemaType identifies a discovered metadata schema type.
	EntitySchemaType EntityKind = "schema_type"
	// EntityQueryJob identifies an asynchronous query job record.
	EntityQueryJob EntityKind = "query_job"
)

// ConnectionType classifies how a file participates in a process.
type ConnectionType string

const (
	// ConnectionInput marks a file consumed by a process.
	ConnectionInput ConnectionType = "INPUT"
	// ConnectionOutput marks a file produced by a process.
	ConnectionOutput ConnectionType = "OUTPUT"
	// ConnectionProtocol marks a protocol document governing a process.
	ConnectionProtocol ConnectionType = "PROTOCOL"
)

// ManifestEntry describes one constituent file listed by a bundle manifest.
type ManifestEntry struct {
	Name        string `json:"name"`
	UUID        string `json:"uuid"`
	Version     string `json:"version"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	Indexed     bool   `json:"indexed"`
	SHA256      string `json:"sha256,omitempty"`
}

// Manifest is the structured document a bundle carries to enumerate its files.
type Manifest struct {
	Version string          `json:"version,omitempty"`
	Files   []ManifestEntry `json:"files"`
}

// BundleVersion is one immutable version of a bundle. Its FQID is globally
// unique; historical rows never change once written and are removed only by
// the deletion pipeline.
type BundleVersion struct {
	UUID              string          `json:"uuid"`
	Version           string          `json:"version"`
	Manifest          Manifest        `json:"manifest"`
	AggregateMetadata json.RawMessage `json:"aggregate_metadata,omitempty"`
}

// FQID returns the fully-qualified identifier uuid.version.
func (b BundleVersion) FQID() string { return MakeFQID(b.UUID, b.Version) }

// FileVersion is one immutable version of a file. SchemaType is empty for
// non-metadata files; Body is nil for non-JSON payloads.
type FileVersion struct {
	UUID        string          `json:"uuid"`
	Version     string          `json:"version"`
	SchemaType  string          `json:"schema_type,omitempty"`
	SchemaMajor int             `json:"schema_major_version,omitempty"`
	SchemaMinor int             `json:"schema_minor_version,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Size        int64           `json:"size"`
	Extension   string          `json:"extension,omitempty"`
}

// FQID returns the fully-qualified identifier uuid.version.
func (f FileVersion) FQID() string { return MakeFQID(f.UUID, f.Version) }

// BundleFileLink associates a file version with the bundle version that
// contains it, under the member name the manifest used.
type BundleFileLink struct {
	BundleFQID string `json:"bundle_fqid"`
	FileFQID   string `json:"file_fqid"`
	Name       string `json:"name"`
}

// ProcessFileLink associates a process with a file uuid in a given role.
type ProcessFileLink struct {
	ProcessUUID    string         `json:"process_uuid"`
	FileUUID       string         `json:"file_uuid"`
	ConnectionType ConnectionType `json:"connection_type"`
}

// ProcessEdge is a derived parent→child adjacency between two processes. An
// edge exists when an output of the parent is an input of the child.
type ProcessEdge struct {
	ParentUUID string `json:"parent_process_uuid"`
	ChildUUID  string `json:"child_process_uuid"`
}

// SchemaType records one discovered metadata schema type. Each registered
// type backs a read-optimized projection over file versions of that type.
type SchemaType struct {
	Name         string    `json:"name"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// LinkRecord is one decoded entry from a bundle's links document, naming a
// process and the file uuids it consumes, produces, and follows.
type LinkRecord struct {
	Process   string   `json:"process"`
	Inputs    []string `json:"inputs"`
	Outputs   []string `json:"outputs"`
	Protocols []string `json:"protocols"`
}

// LinksDocument is the decoded body of a links metadata file.
type LinksDocument struct {
	Links []LinkRecord `json:"links"`
}

// FetchedFile is one constituent file returned by the bundle content fetcher.
type FetchedFile struct {
	Name        string
	UUID        string
	Version     string
	ContentType string
	Size        int64
	Body        []byte
	Indexed     bool
}

// FetchedBundle is the manifest plus file bodies for one bundle version.
type FetchedBundle struct {
	Manifest Manifest
	Files    []FetchedFile
}

// BundleEvent is a decoded bundle-create or tombstone notification. Delivery
// is at-least-once and unordered across bundles.
type BundleEvent struct {
	BundleUUID    string `json:"bundle_uuid"`
	BundleVersion string `json:"bundle_version"`
	Tombstone     bool   `json:"tombstone,omitempty"`
}
