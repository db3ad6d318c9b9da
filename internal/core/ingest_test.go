package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/pkg/domain"
)

const (
	procAlpha = "11111111-1111-1111-1111-111111111111"
	procBeta  = "22222222-2222-2222-2222-222222222222"
)

func newMemoryService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, store, nil, nil, opts...), store
}

func metadataFile(uuid, version, schemaType, body string) domain.FetchedFile {
	payload := fmt.Sprintf(`{"describedBy":"https://schema.example.org/type/10.2.1/%s",%s}`, schemaType, body)
	return domain.FetchedFile{
		Name:        schemaType + ".json",
		UUID:        uuid,
		Version:     version,
		ContentType: "application/json",
		Size:        int64(len(payload)),
		Body:        []byte(payload),
		Indexed:     true,
	}
}

func linksFile(uuid, version string, records ...domain.LinkRecord) domain.FetchedFile {
	doc := domain.LinksDocument{Links: records}
	body, _ := json.Marshal(struct {
		DescribedBy string              `json:"describedBy"`
		Links       []domain.LinkRecord `json:"links"`
	}{"https://schema.example.org/system/2.1.1/links", doc.Links})
	return domain.FetchedFile{
		Name:        "links.json",
		UUID:        uuid,
		Version:     version,
		ContentType: "application/json",
		Size:        int64(len(body)),
		Body:        body,
		Indexed:     true,
	}
}

func fetchedBundle(files ...domain.FetchedFile) domain.FetchedBundle {
	manifest := domain.Manifest{Version: "2026-01-01", Files: make([]domain.ManifestEntry, 0, len(files))}
	for _, f := range files {
		manifest.Files = append(manifest.Files, domain.ManifestEntry{
			Name: f.Name, UUID: f.UUID, Version: f.Version, ContentType: f.ContentType, Size: f.Size, Indexed: f.Indexed,
		})
	}
	return domain.FetchedBundle{Manifest: manifest, Files: files}
}

func TestIngestBundleStoresFilesAndMetadata(t *testing.T) {
	svc, store := newMemoryService(t)
	ctx := context.Background()

	bundle := fetchedBundle(
		metadataFile("f-donor", "v1", "donor_organism", `"organ":"brain"`),
		domain.FetchedFile{
			Name: "reads.fastq.gz", UUID: "f-reads", Version: "v1",
			ContentType: "application/gzip", Size: 9, Body: []byte("\x1f\x8bdata"),
		},
	)
	if err := svc.IngestBundle(ctx, "b-1", "v1", bundle); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	stored, ok, err := store.GetBundle(ctx, "b-1.v1")
	if err != nil || !ok {
		t.Fatalf("get bundle: ok=%v err=%v", ok, err)
	}
	var aggregate map[string][]map[string]any
	if err := json.Unmarshal(stored.AggregateMetadata, &aggregate); err != nil {
		t.Fatalf("decode aggregate metadata: %v", err)
	}
	if len(aggregate["donor_organism"]) != 1 || aggregate["donor_organism"][0]["organ"] != "brain" {
		t.Fatalf("unexpected aggregate metadata %s", stored.AggregateMetadata)
	}

	donor, ok, err := store.GetFile(ctx, "f-donor.v1")
	if err != nil || !ok {
		t.Fatalf("get donor file: ok=%v err=%v", ok, err)
	}
	if donor.SchemaType != "donor_organism" || donor.SchemaMajor != 10 || donor.SchemaMinor != 2 {
		t.Fatalf("unexpected schema detection %+v", donor)
	}
	if donor.Extension != ".json" {
		t.Fatalf("unexpected extension %q", donor.Extension)
	}

	reads, ok, err := store.GetFile(ctx, "f-reads.v1")
	if err != nil || !ok {
		t.Fatalf("get reads file: ok=%v err=%v", ok, err)
	}
	if reads.SchemaType != "" || reads.Body != nil {
		t.Fatalf("expected binary file without schema, got %+v", reads)
	}

	links, err := store.FilesForBundles(ctx, []string{"b-1.v1"})
	if err != nil {
		t.Fatalf("files for bundles: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected two membership links, got %+v", links)
	}

	types, err := store.ListSchemaTypes(ctx)
	if err != nil {
		t.Fatalf("list schema types: %v", err)
	}
	if len(types) != 1 || types[0].Name != "donor_organism" {
		t.Fatalf("unexpected schema types %+v", types)
	}
}

func TestIngestBundleIsIdempotent(t *testing.T) {
	svc, store := newMemoryService(t)
	ctx := context.Background()
	bundle := fetchedBundle(metadataFile("f-1", "v1", "cell_suspension", `"count":100`))

	for i := 0; i < 3; i++ {
		if err := svc.IngestBundle(ctx, "b-1", "v1", bundle); err != nil {
			t.Fatalf("ingest attempt %d: %v", i, err)
		}
	}
	links, err := store.FilesForBundles(ctx, []string{"b-1.v1"})
	if err != nil {
		t.Fatalf("files for bundles: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected a single membership link after replays, got %+v", links)
	}
}

func TestIngestDerivesProcessGraph(t *testing.T) {
	svc, store := newMemoryService(t)
	ctx := context.Background()

	// First bundle: procAlpha consumes raw and produces mid.
	first := fetchedBundle(linksFile("l-1", "v1", domain.LinkRecord{
		Process: procAlpha, Inputs: []string{"raw"}, Outputs: []string{"mid"}, Protocols: []string{"proto"},
	}))
	if err := svc.IngestBundle(ctx, "b-1", "v1", first); err != nil {
		t.Fatalf("ingest first: %v", err)
	}
	// Second bundle: procBeta consumes mid, which procAlpha produced.
	second := fetchedBundle(linksFile("l-2", "v1", domain.LinkRecord{
		Process: procBeta, Inputs: []string{"mid"}, Outputs: []string{"final"},
	}))
	if err := svc.IngestBundle(ctx, "b-2", "v1", second); err != nil {
		t.Fatalf("ingest second: %v", err)
	}

	parents, err := store.DirectParents(ctx, procBeta)
	if err != nil {
		t.Fatalf("direct parents: %v", err)
	}
	if len(parents) != 1 || parents[0] != procAlpha {
		t.Fatalf("unexpected parents %v", parents)
	}
	ancestors, err := svc.Ancestors(ctx, procBeta)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != 1 || ancestors[0] != procAlpha {
		t.Fatalf("unexpected ancestors %v", ancestors)
	}
	descendants, err := svc.Descendants(ctx, procAlpha)
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(descendants) != 1 || descendants[0] != procBeta {
		t.Fatalf("unexpected descendants %v", descendants)
	}

	role := domain.ConnectionProtocol
	procs, err := store.ProcessesForFile(ctx, "proto", &role)
	if err != nil {
		t.Fatalf("processes for protocol file: %v", err)
	}
	if len(procs) != 1 || procs[0] != procAlpha {
		t.Fatalf("unexpected protocol processes %v", procs)
	}
}

func TestIngestEdgeDerivationOrderIndependent(t *testing.T) {
	// The downstream bundle arrives before the upstream one; the edge must
	// still appear once both are in.
	svc, store := newMemoryService(t)
	ctx := context.Background()

	downstream := fetchedBundle(linksFile("l-2", "v1", domain.LinkRecord{
		Process: procBeta, Inputs: []string{"mid"}, Outputs: []string{"final"},
	}))
	upstream := fetchedBundle(linksFile("l-1", "v1", domain.LinkRecord{
		Process: procAlpha, Inputs: []string{"raw"}, Outputs: []string{"mid"},
	}))
	if err := svc.IngestBundle(ctx, "b-2", "v1", downstream); err != nil {
		t.Fatalf("ingest downstream: %v", err)
	}
	if err := svc.IngestBundle(ctx, "b-1", "v1", upstream); err != nil {
		t.Fatalf("ingest upstream: %v", err)
	}
	parents, err := store.DirectParents(ctx, procBeta)
	if err != nil {
		t.Fatalf("direct parents: %v", err)
	}
	if len(parents) != 1 || parents[0] != procAlpha {
		t.Fatalf("unexpected parents %v", parents)
	}
}

func TestIngestSkipsMalformedLinkRecords(t *testing.T) {
	svc, store := newMemoryService(t)
	ctx := context.Background()

	bundle := fetchedBundle(linksFile("l-1", "v1",
		domain.LinkRecord{Process: "not-a-uuid", Inputs: []string{"x"}},
		domain.LinkRecord{Process: procAlpha, Outputs: []string{"y"}},
	))
	if err := svc.IngestBundle(ctx, "b-1", "v1", bundle); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	procs, err := store.ProcessesForFile(ctx, "y", nil)
	if err != nil {
		t.Fatalf("processes for file: %v", err)
	}
	if len(procs) != 1 || procs[0] != procAlpha {
		t.Fatalf("expected only the well-formed record to land, got %v", procs)
	}
	if procs, _ := store.ProcessesForFile(ctx, "x", nil); len(procs) != 0 {
		t.Fatalf("expected malformed record to be skipped, got %v", procs)
	}
}

func TestDetectSchema(t *testing.T) {
	cases := []struct {
		body      string
		wantType  string
		wantMajor int
		wantMinor int
	}{
		{`{"describedBy":"https://schema.example.org/type/10.2.1/donor_organism"}`, "donor_organism", 10, 2},
		{`{"describedBy":"https://schema.example.org/system/2.1.1/links"}`, "links", 2, 1},
		{`{"describedBy":"https://schema.example.org/project"}`, "project", 0, 0},
		{`{"organ":"brain"}`, "", 0, 0},
		{`{"describedBy":""}`, "", 0, 0},
	}
	for _, tc := range cases {
		gotType, gotMajor, gotMinor := detectSchema([]byte(tc.body))
		if gotType != tc.wantType || gotMajor != tc.wantMajor || gotMinor != tc.wantMinor {
			t.Fatalf("detectSchema(%s) = (%q, %d, %d), want (%q, %d, %d)",
				tc.body, gotType, gotMajor, gotMinor, tc.wantType, tc.wantMajor, tc.wantMinor)
		}
	}
}

func TestDecodeLinksDetection(t *testing.T) {
	if _, ok := decodeLinks([]byte(`{"links":[]}`)); !ok {
		t.Fatalf("expected empty links array to be a links document")
	}
	if _, ok := decodeLinks([]byte(`{"organ":"brain"}`)); ok {
		t.Fatalf("expected plain metadata not to be a links document")
	}
	if _, ok := decodeLinks([]byte(`not json`)); ok {
		t.Fatalf("expected non-json body not to be a links document")
	}
	if _, ok := decodeLinks(nil); ok {
		t.Fatalf("expected empty body not to be a links document")
	}
}
