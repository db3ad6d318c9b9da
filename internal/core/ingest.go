package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lineagecore/internal/metrics"
	"lineagecore/pkg/domain"
)

// IngestBundle writes one bundle version plus its constituent files, schema
// registrations, and link rows in a single transaction. Every step is an
// idempotent upsert, so the whole pipeline can be re-run from the top when
// the event transport redelivers. Projector and schema-projection refreshes
// are deliberately not part of this path; see RefreshProjections.
func (s *Service) IngestBundle(ctx context.Context, bundleUUID, bundleVersion string, fetched FetchedBundle) error {
	start := time.Now()
	bundleFQID := domain.MakeFQID(bundleUUID, bundleVersion)

	files := make([]FileVersion, 0, len(fetched.Files))
	var linksDocs []LinksDocument
	for _, ff := range fetched.Files {
		fv := buildFileVersion(ff)
		files = append(files, fv)
		if doc, ok := decodeLinks(fv.Body); ok {
			linksDocs = append(linksDocs, doc)
		}
	}

	bundle := BundleVersion{
		UUID:              bundleUUID,
		Version:           bundleVersion,
		Manifest:          fetched.Manifest,
		AggregateMetadata: aggregateMetadata(files),
	}

	var newTypes []string
	err := s.store.RunInTransaction(ctx, func(tx Tx) error {
		inserted, err := tx.PutBundle(bundle)
		if err != nil {
			return err
		}
		metrics.BundlesIngested.WithLabelValues(outcome(inserted)).Inc()

		for _, fv := range files {
			if fv.SchemaType != "" && !s.catalog.has(fv.SchemaType) {
				isNew, err := tx.RegisterSchemaType(fv.SchemaType)
				if err != nil {
					return err
				}
				if isNew {
					s.log.Infow("discovered schema type", "schema_type", fv.SchemaType)
				}
				newTypes = append(newTypes, fv.SchemaType)
			}
			inserted, err := tx.PutFile(fv)
			if err != nil {
				return err
			}
			metrics.FilesUpserted.WithLabelValues(outcome(inserted)).Inc()
			if err := tx.LinkBundleFile(bundleFQID, fv.FQID(), memberName(fetched, fv)); err != nil {
				return err
			}
		}

		for _, doc := range linksDocs {
			if err := s.applyLinks(tx, bundleFQID, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingest bundle %s: %w", bundleFQID, err)
	}
	// Cache only after commit so a rolled-back registration is retried.
	s.catalog.remember(newTypes)
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	s.log.Infow("ingested bundle", "bundle_fqid", bundleFQID, "files", len(files))
	return nil
}

func outcome(inserted bool) string {
	if inserted {
		return "inserted"
	}
	return "duplicate"
}

// memberName resolves the manifest name for a file version, falling back to
// the file fqid when the manifest does not mention it.
func memberName(fetched FetchedBundle, fv FileVersion) string {
	for _, entry := range fetched.Manifest.Files {
		if entry.UUID == fv.UUID && entry.Version == fv.Version {
			return entry.Name
		}
	}
	for _, ff := range fetched.Files {
		if ff.UUID == fv.UUID && ff.Version == fv.Version {
			return ff.Name
		}
	}
	return fv.FQID()
}

var schemaVersionPattern = regexp.MustCompile(`^\d+(\.\d+){0,2}$`)

// buildFileVersion derives the stored file record from fetched content,
// detecting the schema type from a describedBy-style field in JSON bodies.
func buildFileVersion(ff FetchedFile) FileVersion {
	fv := FileVersion{
		UUID:        ff.UUID,
		Version:     ff.Version,
		ContentType: ff.ContentType,
		Size:        ff.Size,
		Extension:   path.Ext(ff.Name),
	}
	if json.Valid(ff.Body) {
		fv.Body = json.RawMessage(ff.Body)
		fv.SchemaType, fv.SchemaMajor, fv.SchemaMinor = detectSchema(ff.Body)
	}
	return fv
}

// detectSchema extracts the schema type and version from the body's
// describedBy URL. The type is the final path segment; when the preceding
// segment looks like a semantic version, its major and minor parts are
// recorded.
func detectSchema(body []byte) (string, int, int) {
	var probe struct {
		DescribedBy string `json:"describedBy"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.DescribedBy == "" {
		return "", 0, 0
	}
	u, err := url.Parse(probe.DescribedBy)
	if err != nil {
		return "", 0, 0
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[len(segments)-1] == "" {
		return "", 0, 0
	}
	name := segments[len(segments)-1]
	var major, minor int
	if len(segments) > 1 && schemaVersionPattern.MatchString(segments[len(segments)-2]) {
		parts := strings.Split(segments[len(segments)-2], ".")
		major, _ = strconv.Atoi(parts[0])
		if len(parts) > 1 {
			minor, _ = strconv.Atoi(parts[1])
		}
	}
	return name, major, minor
}

// aggregateMetadata folds the bodies of all typed metadata files into one
// derived document keyed by schema type.
func aggregateMetadata(files []FileVersion) json.RawMessage {
	byType := make(map[string][]json.RawMessage)
	for _, fv := range files {
		if fv.SchemaType == "" || fv.Body == nil {
			continue
		}
		byType[fv.SchemaType] = append(byType[fv.SchemaType], fv.Body)
	}
	if len(byType) == 0 {
		return nil
	}
	out, err := json.Marshal(byType)
	if err != nil {
		return nil
	}
	return out
}
